package messaging

import (
	"context"

	"benefitclaims/internal/types"
)

// Status is the outcome a Handler reports for one delivery.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

// Handler processes every message of exactly one type.
//
// Process runs inside the dispatcher's transaction: all of its database
// writes, including follow-on messages enqueued through the context,
// commit together with the deletion of msg or not at all. Returning
// StatusError with a nil error is treated as a failure.
//
// ProcessFailedMessage is the compensation hook. It runs after Process
// has failed and its transaction has rolled back, in a transaction of its
// own, and may add context to the failure event through WithDetail.
type Handler interface {
	SupportsType() types.MessageType
	Process(ctx context.Context, msg *types.Message) (Status, error)
	ProcessFailedMessage(ctx context.Context, msg *types.Message, event *FailureEvent) error
}

// NoCompensation is embedded by handlers whose failures need no corrective
// writes. The failure is still recorded by the dispatcher.
type NoCompensation struct{}

// ProcessFailedMessage does nothing.
func (NoCompensation) ProcessFailedMessage(context.Context, *types.Message, *FailureEvent) error {
	return nil
}
