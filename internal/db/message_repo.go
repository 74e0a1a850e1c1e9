package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"benefitclaims/internal/types"
)

const messageColumns = `id, message_type, payload, created_timestamp, process_after, delivery_count`

// MessageRepository is the durable store behind the message queue
// (table message_queue).
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*types.Message, error) {
	var m types.Message
	err := row.Scan(
		&m.ID,
		&m.Type,
		&m.Payload,
		&m.CreatedTimestamp,
		&m.ProcessAfter,
		&m.DeliveryCount,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindReady returns up to limit pending messages of type t whose
// process_after is at or before now, oldest created_timestamp first.
func (r *MessageRepository) FindReady(ctx context.Context, t types.MessageType, now time.Time, limit int) ([]*types.Message, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+messageColumns+`
		 FROM message_queue
		 WHERE message_type = $1 AND process_after <= $2
		 ORDER BY created_timestamp ASC, id ASC
		 LIMIT $3`,
		t, now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query ready messages", err)
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message row", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message rows", err)
	}
	return out, nil
}

// Get loads a single message by id.
func (r *MessageRepository) Get(ctx context.Context, id string) (*types.Message, error) {
	m, err := scanMessage(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+messageColumns+` FROM message_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load message", err)
	}
	return m, nil
}

// Insert adds a new message to the queue.
func (r *MessageRepository) Insert(ctx context.Context, m *types.Message) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO message_queue (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Type, m.Payload, m.CreatedTimestamp, m.ProcessAfter, m.DeliveryCount,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert message", err)
	}
	return nil
}

// Save writes the delivery bookkeeping of m (delivery_count and
// process_after) provided the stored row still has prevDeliveryCount. A row
// that was deleted or already advanced by another drain yields
// ErrCodeConflictStaleMessage and nothing is written.
func (r *MessageRepository) Save(ctx context.Context, m *types.Message, prevDeliveryCount int) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE message_queue
		 SET delivery_count = $2, process_after = $3
		 WHERE id = $1 AND delivery_count = $4`,
		m.ID, m.DeliveryCount, m.ProcessAfter, prevDeliveryCount,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save message", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictStaleMessage,
			fmt.Sprintf("message %s was completed or claimed by another drain", m.ID), nil)
	}
	return nil
}

// Delete removes a completed message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM message_queue WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete message", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	return nil
}

// MarkProcessable sets process_after to now for the given ids, making them
// immediately visible to FindReady.
func (r *MessageRepository) MarkProcessable(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE message_queue SET process_after = $2 WHERE id = ANY($1) AND process_after > $2`,
		ids, now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages processable", err)
	}
	return tag.RowsAffected(), nil
}

// MarkTypeProcessable clears the scheduling delay for every pending message
// of type t.
func (r *MessageRepository) MarkTypeProcessable(ctx context.Context, t types.MessageType, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE message_queue SET process_after = $2 WHERE message_type = $1 AND process_after > $2`,
		t, now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages processable", err)
	}
	return tag.RowsAffected(), nil
}

// CountPending returns the number of queued messages per type.
func (r *MessageRepository) CountPending(ctx context.Context) (map[types.MessageType]int, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT message_type, COUNT(*) FROM message_queue GROUP BY message_type`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count messages", err)
	}
	defer rows.Close()

	counts := make(map[types.MessageType]int)
	for rows.Next() {
		var t types.MessageType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message count", err)
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message counts", err)
	}
	return counts, nil
}

// DeadLetter copies m into dead_letter_messages and removes it from the
// queue. Both statements run on the same executor; callers wrap the call in
// a transaction.
func (r *MessageRepository) DeadLetter(ctx context.Context, m *types.Message, lastErr string, at time.Time) error {
	q := conn(ctx, r.db)
	_, err := q.Exec(ctx,
		`INSERT INTO dead_letter_messages (`+messageColumns+`, last_error, dead_lettered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID, m.Type, m.Payload, m.CreatedTimestamp, m.ProcessAfter, m.DeliveryCount, lastErr, at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert dead letter", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM message_queue WHERE id = $1`, m.ID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove dead-lettered message", err)
	}
	return nil
}

// DeleteDeadLettersBefore removes dead letters moved aside before cutoff.
func (r *MessageRepository) DeleteDeadLettersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM dead_letter_messages WHERE dead_lettered_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge dead letters", err)
	}
	return tag.RowsAffected(), nil
}

// ListDeadLetters returns the most recent dead letters of type t.
func (r *MessageRepository) ListDeadLetters(ctx context.Context, t types.MessageType, limit int) ([]*types.DeadLetter, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+messageColumns+`, last_error, dead_lettered_at
		 FROM dead_letter_messages
		 WHERE message_type = $1
		 ORDER BY dead_lettered_at DESC
		 LIMIT $2`,
		t, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query dead letters", err)
	}
	defer rows.Close()

	var out []*types.DeadLetter
	for rows.Next() {
		var d types.DeadLetter
		if err := rows.Scan(
			&d.ID, &d.Type, &d.Payload, &d.CreatedTimestamp, &d.ProcessAfter, &d.DeliveryCount,
			&d.LastError, &d.DeadLetteredAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan dead letter row", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating dead letter rows", err)
	}
	return out, nil
}
