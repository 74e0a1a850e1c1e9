// Package scheduler drives the message queue: one recurring tick per
// message type, each tick draining the ready messages of that type.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// maxPasses bounds ProcessNow so a handler that keeps producing ready
// messages of its own type cannot spin forever.
const maxPasses = 1000

// Drainer processes the ready messages of one type.
type Drainer interface {
	Drain(ctx context.Context, t types.MessageType, limit int) (messaging.DrainResult, error)
}

// Locker serialises ticks of the same type across worker instances.
type Locker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// Config holds the configuration for creating a MessageScheduler.
type Config struct {
	// Types to schedule. Empty means every declared type.
	Types []types.MessageType
	// Interval returns the tick period for a type.
	Interval  func(t types.MessageType) time.Duration
	BatchSize int

	// Locker is optional. When nil ticks run without a lock.
	Locker   Locker
	LockTTL  time.Duration
	WorkerID string

	// Retention is optional. When set it runs on its own cron entry.
	Retention *RetentionService

	Logger *slog.Logger
}

// MessageScheduler runs one cron entry per message type. Entries run on
// their own goroutines, so a slow type never delays another; a tick that
// is still running when its next one is due is skipped.
type MessageScheduler struct {
	drainer   Drainer
	types     []types.MessageType
	interval  func(t types.MessageType) time.Duration
	batchSize int
	locker    Locker
	lockTTL   time.Duration
	workerID  string
	retention *RetentionService
	logger    *slog.Logger

	mu     sync.Mutex
	runCtx context.Context
	// drains serialises RunOnce per type within this process, so a cron
	// tick and an ops-triggered ProcessNow never drain the same type at once.
	drains map[types.MessageType]*sync.Mutex
}

// New creates a MessageScheduler. It does not start any timers.
func New(drainer Drainer, cfg Config) *MessageScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ts := cfg.Types
	if len(ts) == 0 {
		ts = types.AllMessageTypes()
	}
	interval := cfg.Interval
	if interval == nil {
		interval = func(types.MessageType) time.Duration { return 30 * time.Second }
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MessageScheduler{
		drainer:   drainer,
		types:     ts,
		interval:  interval,
		batchSize: batch,
		locker:    cfg.Locker,
		lockTTL:   ttl,
		workerID:  cfg.WorkerID,
		retention: cfg.Retention,
		logger:    logger,
		runCtx:    context.Background(),
		drains:    make(map[types.MessageType]*sync.Mutex),
	}
}

func (s *MessageScheduler) drainLock(t types.MessageType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.drains[t]
	if !ok {
		l = &sync.Mutex{}
		s.drains[t] = l
	}
	return l
}

// Run starts one cron entry per type and blocks until ctx is cancelled.
// In-flight ticks are allowed to finish before Run returns.
func (s *MessageScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	for _, t := range s.types {
		every := s.interval(t)
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", every), func() { s.tick(t) }); err != nil {
			return fmt.Errorf("schedule %s: %w", t, err)
		}
		s.logger.Info("message type scheduled", "message_type", string(t), "interval", every.String())
	}

	if s.retention != nil {
		if _, err := c.AddFunc(s.retention.Schedule(), s.purge); err != nil {
			return fmt.Errorf("schedule retention: %w", err)
		}
	}

	c.Start()
	<-ctx.Done()
	s.logger.Info("scheduler stopping, waiting for running ticks")
	<-c.Stop().Done()
	return nil
}

func (s *MessageScheduler) tick(t types.MessageType) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	res, err := s.RunOnce(ctx, t)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictLockHeld {
			s.logger.Info("tick skipped, lock held elsewhere", "message_type", string(t))
			return
		}
		s.logger.Error("tick failed", "message_type", string(t), "error", err)
		return
	}
	if res.Found > 0 {
		s.logger.Info("tick complete",
			"message_type", string(t),
			"found", res.Found,
			"completed", res.Completed,
			"failed", res.Failed,
			"dead_lettered", res.DeadLettered,
		)
	}
}

// purge runs the retention job, under the tick lock when one is configured.
func (s *MessageScheduler) purge() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if s.locker != nil {
		const lockID = "retention"
		ok, err := s.locker.Acquire(ctx, lockID, s.workerID, s.lockTTL)
		if err != nil || !ok {
			s.logger.Info("retention skipped, lock unavailable", "error", err)
			return
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockID, s.workerID); err != nil {
				s.logger.Warn("failed to release retention lock", "error", err)
			}
		}()
	}

	if _, err := s.retention.Run(ctx); err != nil {
		s.logger.Error("retention run failed", "error", err)
	}
}

// RunOnce performs a single tick for t: at most one batch of ready
// messages. Calls for the same type queue behind each other. When a Locker is configured and another worker holds the lock
// for t, it returns an ErrCodeConflictLockHeld error and does nothing.
func (s *MessageScheduler) RunOnce(ctx context.Context, t types.MessageType) (messaging.DrainResult, error) {
	l := s.drainLock(t)
	l.Lock()
	defer l.Unlock()

	if s.locker == nil {
		return s.drainer.Drain(ctx, t, s.batchSize)
	}

	lockID := "message_tick:" + string(t)
	ok, err := s.locker.Acquire(ctx, lockID, s.workerID, s.lockTTL)
	if err != nil {
		return messaging.DrainResult{}, err
	}
	if !ok {
		return messaging.DrainResult{}, types.NewAppError(types.ErrCodeConflictLockHeld,
			fmt.Sprintf("tick lock for %s is held by another worker", t), nil)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockID, s.workerID); err != nil {
			s.logger.Warn("failed to release tick lock", "message_type", string(t), "error", err)
		}
	}()

	return s.drainer.Drain(ctx, t, s.batchSize)
}

// ProcessNow ticks t repeatedly until a pass finds less than a full batch.
// Failed messages are pushed into the future by the dispatcher, so they do
// not reappear within the same call.
func (s *MessageScheduler) ProcessNow(ctx context.Context, t types.MessageType) (messaging.DrainResult, error) {
	var total messaging.DrainResult
	for pass := 0; pass < maxPasses; pass++ {
		res, err := s.RunOnce(ctx, t)
		total = addResults(total, res)
		if err != nil {
			return total, err
		}
		if res.Found < s.batchSize {
			return total, nil
		}
	}
	s.logger.Warn("process now stopped after max passes", "message_type", string(t), "passes", maxPasses)
	return total, nil
}

// ProcessAll runs ProcessNow for every scheduled type in order. An error
// for one type is recorded and the remaining types still run.
func (s *MessageScheduler) ProcessAll(ctx context.Context) (map[types.MessageType]messaging.DrainResult, error) {
	out := make(map[types.MessageType]messaging.DrainResult, len(s.types))
	var firstErr error
	for _, t := range s.types {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.ProcessNow(ctx, t)
		out[t] = res
		if err != nil {
			s.logger.Error("process all: type failed", "message_type", string(t), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return out, firstErr
}

// Types returns the scheduled message types.
func (s *MessageScheduler) Types() []types.MessageType {
	return append([]types.MessageType(nil), s.types...)
}

func addResults(a, b messaging.DrainResult) messaging.DrainResult {
	return messaging.DrainResult{
		Found:        a.Found + b.Found,
		Completed:    a.Completed + b.Completed,
		Failed:       a.Failed + b.Failed,
		DeadLettered: a.DeadLettered + b.DeadLettered,
		Skipped:      a.Skipped + b.Skipped,
	}
}

// cronLogger adapts *slog.Logger to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
