package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"benefitclaims/internal/types"
)

const paymentCycleColumns = `id, claim_id, cycle_start_date, cycle_end_date, payment_cycle_status,
	eligibility_status, voucher_entitlement, children_dob, expected_due_date,
	total_entitlement_amount, card_balance, card_balance_timestamp, payment_amount,
	created_at, updated_at`

// PaymentCycleRepository provides access to payment cycles.
type PaymentCycleRepository struct {
	db DBTX
}

// NewPaymentCycleRepository creates a new PaymentCycleRepository.
func NewPaymentCycleRepository(db DBTX) *PaymentCycleRepository {
	return &PaymentCycleRepository{db: db}
}

// Get loads one payment cycle.
func (r *PaymentCycleRepository) Get(ctx context.Context, id string) (*types.PaymentCycle, error) {
	var p types.PaymentCycle
	var eligibility *string

	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+paymentCycleColumns+` FROM payment_cycle WHERE id = $1`, id,
	).Scan(
		&p.ID, &p.ClaimID, &p.CycleStartDate, &p.CycleEndDate, &p.Status,
		&eligibility, &p.Entitlement, &p.ChildrenDOB, &p.ExpectedDueDate,
		&p.TotalEntitlement, &p.CardBalance, &p.CardBalanceAt, &p.PaymentAmount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundPaymentCycle, "payment cycle not found", err, map[string]any{"payment_cycle_id": id})
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load payment cycle", err)
	}
	if eligibility != nil {
		p.EligibilityStatus = types.EligibilityStatus(*eligibility)
	}
	return &p, nil
}

// Create inserts a new payment cycle.
func (r *PaymentCycleRepository) Create(ctx context.Context, p *types.PaymentCycle) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO payment_cycle (`+paymentCycleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.ClaimID, p.CycleStartDate, p.CycleEndDate, p.Status,
		string(p.EligibilityStatus), p.Entitlement, p.ChildrenDOB, p.ExpectedDueDate,
		p.TotalEntitlement, p.CardBalance, p.CardBalanceAt, p.PaymentAmount,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create payment cycle", err)
	}
	return nil
}

// Update writes every mutable field of p.
func (r *PaymentCycleRepository) Update(ctx context.Context, p *types.PaymentCycle) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE payment_cycle
		 SET payment_cycle_status = $2, eligibility_status = NULLIF($3, ''), voucher_entitlement = $4,
		     children_dob = $5, expected_due_date = $6, total_entitlement_amount = $7,
		     card_balance = $8, card_balance_timestamp = $9, payment_amount = $10, updated_at = $11
		 WHERE id = $1`,
		p.ID, p.Status, string(p.EligibilityStatus), p.Entitlement,
		p.ChildrenDOB, p.ExpectedDueDate, p.TotalEntitlement,
		p.CardBalance, p.CardBalanceAt, p.PaymentAmount, p.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update payment cycle", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPaymentCycle, "payment cycle not found", nil)
	}
	return nil
}
