package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"benefitclaims/internal/types"
)

// ClaimRepository provides access to claims and their claimant details.
type ClaimRepository struct {
	db DBTX
}

// NewClaimRepository creates a new ClaimRepository.
func NewClaimRepository(db DBTX) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Get loads a claim joined with its claimant.
func (r *ClaimRepository) Get(ctx context.Context, id string) (*types.Claim, error) {
	var c types.Claim
	var cardAccountID, cardStatus *string
	cl := &c.Claimant

	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT c.id, c.claim_status, c.claim_status_timestamp, c.card_account_id, c.card_status,
		        c.card_status_timestamp, c.eligibility_override, c.created_at, c.updated_at,
		        p.first_name, p.last_name, p.nino, p.date_of_birth, COALESCE(p.email_address, ''),
		        COALESCE(p.phone_number, ''), p.address_line_1, COALESCE(p.address_line_2, ''),
		        p.town_or_city, p.postcode, p.expected_delivery_date, COALESCE(p.children_dob, '{}')
		 FROM claim c
		 JOIN claimant p ON p.id = c.claimant_id
		 WHERE c.id = $1`,
		id,
	).Scan(
		&c.ID, &c.Status, &c.StatusTimestamp, &cardAccountID, &cardStatus,
		&c.CardStatusTimestamp, &c.EligibilityOverride, &c.CreatedAt, &c.UpdatedAt,
		&cl.FirstName, &cl.LastName, &cl.NINO, &cl.DateOfBirth, &cl.EmailAddress,
		&cl.PhoneNumber, &cl.AddressLine1, &cl.AddressLine2,
		&cl.TownOrCity, &cl.Postcode, &cl.ExpectedDeliveryDate, &cl.ChildrenDOB,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundClaim, "claim not found", err, map[string]any{"claim_id": id})
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load claim", err)
	}
	if cardAccountID != nil {
		c.CardAccountID = *cardAccountID
	}
	if cardStatus != nil {
		c.CardStatus = types.CardStatus(*cardStatus)
	}
	return &c, nil
}

// UpdateCardAccount links an issued card to the claim and activates it.
func (r *ClaimRepository) UpdateCardAccount(ctx context.Context, claimID, cardAccountID string, status types.CardStatus, at time.Time) error {
	return r.exec(ctx, "failed to update claim card account",
		`UPDATE claim
		 SET card_account_id = $2, card_status = $3, card_status_timestamp = $4,
		     claim_status = $5, claim_status_timestamp = $4, updated_at = $4
		 WHERE id = $1`,
		claimID, cardAccountID, status, at, types.ClaimStatusActive,
	)
}

// UpdateStatus moves the claim to a new lifecycle state.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, claimID string, status types.ClaimStatus, at time.Time) error {
	return r.exec(ctx, "failed to update claim status",
		`UPDATE claim SET claim_status = $2, claim_status_timestamp = $3, updated_at = $3 WHERE id = $1`,
		claimID, status, at,
	)
}

// UpdateCardStatus records the issuer's view of the card.
func (r *ClaimRepository) UpdateCardStatus(ctx context.Context, claimID string, status types.CardStatus, at time.Time) error {
	return r.exec(ctx, "failed to update card status",
		`UPDATE claim SET card_status = $2, card_status_timestamp = $3, updated_at = $3 WHERE id = $1`,
		claimID, status, at,
	)
}

func (r *ClaimRepository) exec(ctx context.Context, msg string, sql string, args ...any) error {
	tag, err := conn(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, msg, err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundClaim, "claim not found", nil)
	}
	return nil
}
