package db

import (
	"context"

	"benefitclaims/internal/types"
)

// PaymentRepository records deposit attempts, both successful and failed.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert records one payment attempt.
func (r *PaymentRepository) Insert(ctx context.Context, p *types.Payment) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO payment
		   (id, claim_id, payment_cycle_id, card_account_id, payment_amount,
		    payment_reference, payment_status, failure_reason, payment_timestamp)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9)`,
		p.ID, p.ClaimID, p.PaymentCycleID, p.CardAccountID, p.Amount,
		p.PaymentReference, p.Status, p.FailureReason, p.PaymentTimestamp,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert payment", err)
	}
	return nil
}

// ListByCycle returns every payment attempt for a cycle, oldest first.
func (r *PaymentRepository) ListByCycle(ctx context.Context, cycleID string) ([]*types.Payment, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT id, claim_id, payment_cycle_id, card_account_id, payment_amount,
		        COALESCE(payment_reference, ''), payment_status, COALESCE(failure_reason, ''), payment_timestamp
		 FROM payment
		 WHERE payment_cycle_id = $1
		 ORDER BY payment_timestamp ASC`,
		cycleID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query payments", err)
	}
	defer rows.Close()

	var out []*types.Payment
	for rows.Next() {
		var p types.Payment
		if err := rows.Scan(
			&p.ID, &p.ClaimID, &p.PaymentCycleID, &p.CardAccountID, &p.Amount,
			&p.PaymentReference, &p.Status, &p.FailureReason, &p.PaymentTimestamp,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan payment row", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating payment rows", err)
	}
	return out, nil
}
