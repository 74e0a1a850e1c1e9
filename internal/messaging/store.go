package messaging

import (
	"context"
	"time"

	"benefitclaims/internal/types"
)

// MessageStore is the durable queue as seen by the dispatcher and the
// scheduler. Every method resolves its connection from ctx, so calls made
// inside types.TransactionManager.RunInTx join that transaction.
type MessageStore interface {
	FindReady(ctx context.Context, t types.MessageType, now time.Time, limit int) ([]*types.Message, error)
	Insert(ctx context.Context, m *types.Message) error
	// Save records m's new bookkeeping only while the stored row still has
	// prevDeliveryCount; otherwise it returns ErrCodeConflictStaleMessage.
	Save(ctx context.Context, m *types.Message, prevDeliveryCount int) error
	Delete(ctx context.Context, id string) error
	DeadLetter(ctx context.Context, m *types.Message, lastErr string, at time.Time) error
}

// FailureStore persists failure events for audit.
type FailureStore interface {
	Insert(ctx context.Context, f *types.FailureRecord) error
}

// DeadLetterArchiver copies a dead-lettered message to long-term storage.
type DeadLetterArchiver interface {
	Archive(ctx context.Context, dl *types.DeadLetter) error
}
