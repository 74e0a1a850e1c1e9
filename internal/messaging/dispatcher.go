package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"benefitclaims/internal/types"
)

// Dispatcher runs one delivery of one message: bookkeeping, the handler
// inside its own transaction, and on failure the compensation hook and the
// failure audit record.
type Dispatcher struct {
	registry *Registry
	store    MessageStore
	failures FailureStore
	tx       types.TransactionManager
	clock    types.Clock
	policy   RetryPolicy
	metrics  Metrics
	archiver DeadLetterArchiver
	newID    func() string
	logger   *slog.Logger
}

// DispatcherOption is a functional option for configuring a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// WithClock sets the clock used for bookkeeping timestamps.
func WithClock(c types.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithArchiver enables archiving of dead-lettered messages.
func WithArchiver(a DeadLetterArchiver) DispatcherOption {
	return func(d *Dispatcher) { d.archiver = a }
}

// WithIDGenerator overrides uuid.NewString for failure record ids.
func WithIDGenerator(fn func() string) DispatcherOption {
	return func(d *Dispatcher) { d.newID = fn }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, store MessageStore, failures FailureStore, tx types.TransactionManager, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		registry: registry,
		store:    store,
		failures: failures,
		tx:       tx,
		clock:    types.RealClock{},
		policy:   DefaultRetryPolicy,
		metrics:  NoopMetrics{},
		newID:    uuid.NewString,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs a single delivery of msg. On return msg reflects the
// committed bookkeeping (deliveryCount and processAfter).
//
// The returned error is the handler's failure, if any. It is informational:
// by the time Dispatch returns the failure has already been recorded and
// the message rescheduled or dead-lettered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *types.Message) (Outcome, error) {
	handler, err := d.registry.Resolve(msg.Type)
	if err != nil {
		return OutcomeSkipped, err
	}

	now := d.clock.Now()
	attempt := *msg
	attempt.DeliveryCount++
	attempt.ProcessAfter = d.policy.NextProcessAfter(&attempt, now)

	logger := d.logger.With(
		"message_id", attempt.ID,
		"message_type", string(attempt.Type),
		"delivery_count", attempt.DeliveryCount,
	)

	// Committed on its own so a crash inside the handler still leaves the
	// message backed off. The conditional write also claims this delivery:
	// a stale copy of a message another drain already took is never run.
	if err := d.store.Save(ctx, &attempt, msg.DeliveryCount); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictStaleMessage {
			logger.Info("message already handled by another drain, skipping")
			d.metrics.RecordOutcome(ctx, attempt.Type, OutcomeSkipped)
			return OutcomeSkipped, nil
		}
		logger.Error("failed to record delivery attempt", "error", err)
		d.metrics.RecordOutcome(ctx, attempt.Type, OutcomeSkipped)
		return OutcomeSkipped, err
	}
	*msg = attempt
	d.metrics.RecordQueueLag(ctx, msg.Type, msg.Age(now))

	msgCtx := types.WithMessageID(ctx, msg.ID)
	err = d.tx.RunInTx(msgCtx, func(txCtx context.Context) error {
		status, err := invoke(txCtx, handler, msg)
		if err != nil {
			return err
		}
		if status != StatusCompleted {
			return types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("handler returned status %s", status), nil)
		}
		return d.store.Delete(txCtx, msg.ID)
	})
	d.metrics.RecordLatency(ctx, msg.Type, d.clock.Now().Sub(now))

	if err == nil {
		logger.Info("message processed")
		d.metrics.RecordOutcome(ctx, msg.Type, OutcomeCompleted)
		return OutcomeCompleted, nil
	}
	return d.fail(msgCtx, handler, msg, err, logger)
}

func (d *Dispatcher) fail(ctx context.Context, h Handler, msg *types.Message, cause error, logger *slog.Logger) (Outcome, error) {
	event := NewFailureEvent(msg, cause, d.clock.Now())

	compErr := d.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return compensate(txCtx, h, msg, event)
	})
	if compErr != nil {
		logger.Error("compensation failed", "error", compErr, "cause", cause.Error())
		event.WithDetail("compensation_error", compErr.Error())
	}

	if err := d.failures.Insert(ctx, event.Record(d.newID())); err != nil {
		logger.Error("failed to record failure event", "error", err, "cause", cause.Error())
	}

	if d.policy.Exhausted(msg.DeliveryCount) {
		return d.deadLetter(ctx, msg, event, logger)
	}

	logger.Warn("message processing failed, will retry",
		"error", cause.Error(),
		"process_after", msg.ProcessAfter,
	)
	d.metrics.RecordOutcome(ctx, msg.Type, OutcomeFailed)
	return OutcomeFailed, cause
}

func (d *Dispatcher) deadLetter(ctx context.Context, msg *types.Message, event *FailureEvent, logger *slog.Logger) (Outcome, error) {
	at := d.clock.Now()
	err := d.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return d.store.DeadLetter(txCtx, msg, event.ErrorText(), at)
	})
	if err != nil {
		logger.Error("failed to dead-letter message", "error", err)
		d.metrics.RecordOutcome(ctx, msg.Type, OutcomeFailed)
		return OutcomeFailed, event.Cause
	}

	logger.Error("message dead-lettered",
		"error", event.ErrorText(),
		"max_attempts", d.policy.MaxAttempts,
	)
	if d.archiver != nil {
		dl := &types.DeadLetter{Message: *msg, LastError: event.ErrorText(), DeadLetteredAt: at}
		if err := d.archiver.Archive(ctx, dl); err != nil {
			logger.Error("failed to archive dead letter", "error", err)
		}
	}
	d.metrics.RecordOutcome(ctx, msg.Type, OutcomeDeadLettered)
	return OutcomeDeadLettered, event.Cause
}

// DrainResult summarises one pass over the ready messages of a type.
type DrainResult struct {
	Found        int `json:"found"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
	Skipped      int `json:"skipped"`
}

// Drain loads up to limit ready messages of type t and dispatches them one
// at a time, oldest first. A failing message does not stop the pass; only
// an error loading the batch or a cancelled ctx does.
func (d *Dispatcher) Drain(ctx context.Context, t types.MessageType, limit int) (DrainResult, error) {
	var res DrainResult

	msgs, err := d.store.FindReady(ctx, t, d.clock.Now(), limit)
	if err != nil {
		return res, err
	}
	res.Found = len(msgs)

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome, _ := d.Dispatch(ctx, msg)
		switch outcome {
		case OutcomeCompleted:
			res.Completed++
		case OutcomeFailed:
			res.Failed++
		case OutcomeDeadLettered:
			res.DeadLettered++
		default:
			res.Skipped++
		}
	}

	if res.Found > 0 {
		d.metrics.RecordDrained(ctx, t, res.Found)
	}
	return res, nil
}

func invoke(ctx context.Context, h Handler, msg *types.Message) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = StatusError
			err = panicError("handler", r)
		}
	}()
	return h.Process(ctx, msg)
}

func compensate(ctx context.Context, h Handler, msg *types.Message, event *FailureEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("compensation", r)
		}
	}()
	return h.ProcessFailedMessage(ctx, msg, event)
}

func panicError(stage string, r any) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalHandlerPanic,
		fmt.Sprintf("%s panicked: %v", stage, r), nil,
		map[string]any{"stack": string(debug.Stack())})
}
