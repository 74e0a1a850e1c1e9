package db

import (
	"context"
	"time"

	"benefitclaims/internal/types"
)

// FailureRepository stores failure events for audit (table message_failures).
type FailureRepository struct {
	db DBTX
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db DBTX) *FailureRepository {
	return &FailureRepository{db: db}
}

// Insert records one failed attempt.
func (r *FailureRepository) Insert(ctx context.Context, f *types.FailureRecord) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO message_failures
		   (id, message_id, message_type, delivery_count, description, error_text, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.MessageID, f.MessageType, f.DeliveryCount, f.Description, f.ErrorText, f.Details, f.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert message failure", err)
	}
	return nil
}

// ListByType returns the newest failures recorded for message type t.
func (r *FailureRepository) ListByType(ctx context.Context, t types.MessageType, limit int) ([]*types.FailureRecord, error) {
	return r.list(ctx,
		`SELECT id, message_id, message_type, delivery_count, description, error_text, details, created_at
		 FROM message_failures
		 WHERE message_type = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		t, limit,
	)
}

// ListByMessage returns every failure recorded for one message, oldest first.
func (r *FailureRepository) ListByMessage(ctx context.Context, messageID string) ([]*types.FailureRecord, error) {
	return r.list(ctx,
		`SELECT id, message_id, message_type, delivery_count, description, error_text, details, created_at
		 FROM message_failures
		 WHERE message_id = $1
		 ORDER BY delivery_count ASC, created_at ASC`,
		messageID,
	)
}

// DeleteBefore removes failures recorded before cutoff.
func (r *FailureRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM message_failures WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge message failures", err)
	}
	return tag.RowsAffected(), nil
}

func (r *FailureRepository) list(ctx context.Context, sql string, args ...any) ([]*types.FailureRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query message failures", err)
	}
	defer rows.Close()

	var out []*types.FailureRecord
	for rows.Next() {
		var f types.FailureRecord
		if err := rows.Scan(
			&f.ID, &f.MessageID, &f.MessageType, &f.DeliveryCount,
			&f.Description, &f.ErrorText, &f.Details, &f.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message failure", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message failures", err)
	}
	return out, nil
}
