package processors

import (
	"context"

	"benefitclaims/internal/types"
)

// MessageContextLoader resolves the entities a payload refers to.
type MessageContextLoader struct {
	claims ClaimStore
	cycles CycleStore
}

// NewMessageContextLoader creates a new MessageContextLoader.
func NewMessageContextLoader(claims ClaimStore, cycles CycleStore) *MessageContextLoader {
	return &MessageContextLoader{claims: claims, cycles: cycles}
}

// Claim loads a claim by id.
func (l *MessageContextLoader) Claim(ctx context.Context, claimID string) (*types.Claim, error) {
	return l.claims.Get(ctx, claimID)
}

// ClaimAndCycle loads a claim and one of its payment cycles. A cycle that
// belongs to another claim is a payload error.
func (l *MessageContextLoader) ClaimAndCycle(ctx context.Context, claimID, cycleID string) (*types.Claim, *types.PaymentCycle, error) {
	claim, err := l.claims.Get(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	cycle, err := l.cycles.Get(ctx, cycleID)
	if err != nil {
		return nil, nil, err
	}
	if cycle.ClaimID != claim.ID {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationPayload,
			"payment cycle does not belong to claim", nil,
			map[string]any{"claim_id": claimID, "payment_cycle_id": cycleID})
	}
	return claim, cycle, nil
}
