package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"benefitclaims/internal/types"
)

// FailurePurger deletes failure audit rows recorded before cutoff.
//
// SQL: DELETE FROM message_failures WHERE created_at < $1
type FailurePurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeadLetterPurger deletes dead letters moved aside before cutoff. Dead
// letters are archived to S3 when a bucket is configured, so the table only
// needs to hold them long enough for operators to inspect and replay.
//
// SQL: DELETE FROM dead_letter_messages WHERE dead_lettered_at < $1
type DeadLetterPurger interface {
	DeleteDeadLettersBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig controls the audit cleanup job. A zero retention keeps
// that table's rows forever.
type RetentionConfig struct {
	Schedule            string
	FailureRetention    time.Duration
	DeadLetterRetention time.Duration
}

// RetentionResult reports how many rows one run removed.
type RetentionResult struct {
	Failures    int64 `json:"failures"`
	DeadLetters int64 `json:"dead_letters"`
}

// RetentionService purges aged failure records and dead letters.
type RetentionService struct {
	failures    FailurePurger
	deadLetters DeadLetterPurger
	cfg         RetentionConfig
	clock       types.Clock
	logger      *slog.Logger
}

// NewRetentionService creates a RetentionService.
func NewRetentionService(failures FailurePurger, deadLetters DeadLetterPurger, cfg RetentionConfig, clock types.Clock, logger *slog.Logger) *RetentionService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@daily"
	}
	return &RetentionService{
		failures:    failures,
		deadLetters: deadLetters,
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
	}
}

// Schedule returns the cron spec the job runs on.
func (r *RetentionService) Schedule() string {
	return r.cfg.Schedule
}

// Run purges both tables. A failure purging one does not stop the other;
// the first error is returned.
func (r *RetentionService) Run(ctx context.Context) (RetentionResult, error) {
	now := r.clock.Now()
	var (
		res      RetentionResult
		firstErr error
	)

	if r.cfg.FailureRetention > 0 {
		n, err := r.purge(ctx, "message failures", now.Add(-r.cfg.FailureRetention), r.failures.DeleteBefore)
		res.Failures = n
		firstErr = err
	}
	if r.cfg.DeadLetterRetention > 0 {
		n, err := r.purge(ctx, "dead letters", now.Add(-r.cfg.DeadLetterRetention), r.deadLetters.DeleteDeadLettersBefore)
		res.DeadLetters = n
		if firstErr == nil {
			firstErr = err
		}
	}
	return res, firstErr
}

func (r *RetentionService) purge(ctx context.Context, what string, cutoff time.Time, del func(context.Context, time.Time) (int64, error)) (int64, error) {
	n, err := del(ctx, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "retention purge failed", "table", what, "error", err)
		return 0, fmt.Errorf("purging %s: %w", what, err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "retention purge complete",
			"table", what,
			"count", n,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return n, nil
}
