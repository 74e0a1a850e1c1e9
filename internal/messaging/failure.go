package messaging

import (
	"errors"
	"fmt"
	"time"

	"benefitclaims/internal/types"
)

// DetailedError is implemented by handler errors that carry structured
// context for the failure record.
type DetailedError interface {
	error
	FailureDetails() map[string]any
}

// FailureEvent describes one failed delivery. It is built by the
// dispatcher, passed to the handler's compensation hook and then persisted
// as a types.FailureRecord.
type FailureEvent struct {
	MessageID     string
	MessageType   types.MessageType
	DeliveryCount int
	Description   string
	Cause         error
	Details       map[string]any
	OccurredAt    time.Time
}

// NewFailureEvent builds the event for msg failing with cause. It has no
// side effects. Details are seeded from any AppError or DetailedError in
// the cause chain.
func NewFailureEvent(msg *types.Message, cause error, at time.Time) *FailureEvent {
	e := &FailureEvent{
		MessageID:     msg.ID,
		MessageType:   msg.Type,
		DeliveryCount: msg.DeliveryCount,
		Description:   fmt.Sprintf("Failed to process message with type %s and id %s (delivery %d)",
			msg.Type, msg.ID, msg.DeliveryCount),
		Cause:      cause,
		Details:    map[string]any{},
		OccurredAt: at,
	}

	var appErr *types.AppError
	if errors.As(cause, &appErr) {
		e.Details["error_code"] = string(appErr.Code)
		for k, v := range appErr.Details {
			e.Details[k] = v
		}
	}
	var detailed DetailedError
	if errors.As(cause, &detailed) {
		for k, v := range detailed.FailureDetails() {
			e.Details[k] = v
		}
	}
	return e
}

// WithDetail adds a key to the event's details and returns the event.
func (e *FailureEvent) WithDetail(key string, value any) *FailureEvent {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// ErrorText is the cause rendered for storage.
func (e *FailureEvent) ErrorText() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// Record converts the event into its persisted form.
func (e *FailureEvent) Record(id string) *types.FailureRecord {
	return &types.FailureRecord{
		ID:            id,
		MessageID:     e.MessageID,
		MessageType:   e.MessageType,
		DeliveryCount: e.DeliveryCount,
		Description:   e.Description,
		ErrorText:     e.ErrorText(),
		Details:       types.Details(e.Details),
		CreatedAt:     e.OccurredAt,
	}
}
