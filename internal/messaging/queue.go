package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"benefitclaims/internal/types"
)

// Inserter is the write side of the message store used for enqueueing.
type Inserter interface {
	Insert(ctx context.Context, m *types.Message) error
}

// MessageQueue is the enqueue API. It is the only way messages enter the
// store from outside the dispatcher.
//
// Enqueue resolves its connection from ctx, so a handler that enqueues a
// follow-on message with the context it was given makes the new message
// part of its own transaction.
type MessageQueue struct {
	store    Inserter
	clock    types.Clock
	validate *validator.Validate
	newID    func() string
	logger   *slog.Logger
}

// NewMessageQueue creates a MessageQueue.
func NewMessageQueue(store Inserter, clock types.Clock, logger *slog.Logger) *MessageQueue {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageQueue{
		store:    store,
		clock:    clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Enqueue adds a message of type t that is ready immediately.
func (q *MessageQueue) Enqueue(ctx context.Context, payload any, t types.MessageType) error {
	_, err := q.EnqueueAfter(ctx, payload, t, time.Time{})
	return err
}

// EnqueueAfter adds a message of type t that becomes ready at
// processAfter. A zero processAfter, or one in the past, means now.
func (q *MessageQueue) EnqueueAfter(ctx context.Context, payload any, t types.MessageType, processAfter time.Time) (*types.Message, error) {
	raw, err := q.encode(payload, t)
	if err != nil {
		return nil, err
	}

	now := q.clock.Now()
	if processAfter.Before(now) {
		processAfter = now
	}
	m := &types.Message{
		ID:               q.newID(),
		Type:             t,
		Payload:          raw,
		CreatedTimestamp: now,
		ProcessAfter:     processAfter,
		DeliveryCount:    0,
	}
	if err := q.store.Insert(ctx, m); err != nil {
		return nil, err
	}

	q.logger.Info("message enqueued",
		"message_id", m.ID,
		"message_type", string(t),
		"process_after", processAfter,
		"parent_message_id", types.GetMessageID(ctx),
	)
	return m, nil
}

// encode validates payload against the payload struct registered for t
// and returns its canonical JSON.
func (q *MessageQueue) encode(payload any, t types.MessageType) (json.RawMessage, error) {
	if !t.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationMessageType,
			fmt.Sprintf("unknown message type %q", t), nil)
	}
	if payload == nil {
		return nil, types.NewAppError(types.ErrCodeValidationPayload, "payload is required", nil)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationPayload, "payload is not serializable", err)
	}

	target := types.NewPayload(t)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationMessageDecoded,
			fmt.Sprintf("payload does not match %s", t), err)
	}

	if err := q.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				fmt.Sprintf("invalid %s payload", t), err,
				map[string]any{"fields": fields})
		}
		return nil, types.NewAppError(types.ErrCodeValidationPayload, "payload validation failed", err)
	}

	return json.Marshal(target)
}

// Decode unmarshals msg's payload into the struct registered for its type.
func Decode[T any](msg *types.Message) (*T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationMessageDecoded,
			fmt.Sprintf("cannot decode %s payload", msg.Type), err)
	}
	return &out, nil
}
