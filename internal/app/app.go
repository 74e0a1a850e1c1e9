// Package app assembles the message worker from configuration: the database
// pool, repositories, outbound clients, handlers, dispatcher and scheduler.
// Both cmd/message-worker and cmd/tools/message-runner build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"benefitclaims/internal/config"
	"benefitclaims/internal/db"
	"benefitclaims/internal/entitlement"
	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/processors"
	"benefitclaims/internal/queue"
	"benefitclaims/internal/scheduler"
	"benefitclaims/internal/types"
)

const localEnv = "local"

// App holds the assembled worker.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Messages   *db.MessageRepository
	Failures   *db.FailureRepository
	Queue      *messaging.MessageQueue
	Dispatcher *messaging.Dispatcher
	Scheduler  *scheduler.MessageScheduler

	WorkerID string
}

// New connects to the database and AWS and wires every component. The
// caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		WorkerID: workerID(),
	}
	if err := a.wire(awsCfg); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

// Ping reports whether the database is reachable.
func (a *App) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

func (a *App) wire(awsCfg aws.Config) error {
	cfg := a.Config
	clock := types.RealClock{}

	a.Messages = db.NewMessageRepository(a.Pool)
	a.Failures = db.NewFailureRepository(a.Pool)
	tx := db.NewTxManager(a.Pool)

	a.Queue = messaging.NewMessageQueue(a.Messages, clock, a.Logger)

	calc, err := entitlement.NewCalculator(cfg.Entitlement)
	if err != nil {
		return fmt.Errorf("entitlement calculator: %w", err)
	}

	reporter := queue.NewReporter(sqs.NewFromConfig(awsCfg), cfg.AWS.ReportingQueueURL, clock, a.Logger)

	deps := processors.Deps{
		Claims:        db.NewClaimRepository(a.Pool),
		Cycles:        db.NewPaymentCycleRepository(a.Pool),
		Payments:      db.NewPaymentRepository(a.Pool),
		Queue:         a.Queue,
		Reporter:      reporter,
		Calculator:    calc,
		Templates:     processors.NewTemplates(cfg.Email.Templates, cfg.Notify.Templates),
		PendingExpiry: cfg.Entitlement.ClaimPendingExpiry,
		Clock:         clock,
		Logger:        a.Logger,
	}
	a.wireProviders(&deps, awsCfg)

	registry, err := messaging.NewRegistry(processors.All(deps)...)
	if err != nil {
		return fmt.Errorf("handler registry: %w", err)
	}

	opts := []messaging.DispatcherOption{
		messaging.WithClock(clock),
		messaging.WithRetryPolicy(messaging.RetryPolicy{
			MaxAttempts:   cfg.Messaging.MaxDeliveryCount,
			BaseDelay:     cfg.Messaging.RetryBaseDelay,
			MaxDelay:      cfg.Messaging.RetryMaxDelay,
			BackoffFactor: cfg.Messaging.RetryBackoffFactor,
		}),
	}
	if cfg.Observability.EnableMetrics {
		opts = append(opts, messaging.WithMetrics(messaging.NewCloudWatchMetrics(
			cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, &slogAdapter{logger: a.Logger},
		)))
	}
	if cfg.AWS.DeadLetterBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWS.EndpointURL != ""
		})
		opts = append(opts, messaging.WithArchiver(
			external.NewS3Archiver(s3Client, cfg.AWS.DeadLetterBucket, cfg.AWS.DeadLetterPrefix, a.Logger),
		))
	}
	a.Dispatcher = messaging.NewDispatcher(registry, a.Messages, a.Failures, tx, a.Logger, opts...)

	schedCfg := scheduler.Config{
		Types:     registry.Types(),
		Interval:  cfg.Messaging.IntervalFor,
		BatchSize: cfg.Messaging.BatchSize,
		LockTTL:   cfg.Messaging.TickLockTTL,
		WorkerID:  a.WorkerID,
		Logger:    a.Logger,
	}
	if cfg.Messaging.FailureRetention > 0 || cfg.Messaging.DeadLetterRetention > 0 {
		schedCfg.Retention = scheduler.NewRetentionService(a.Failures, a.Messages, scheduler.RetentionConfig{
			Schedule:            cfg.Messaging.RetentionSchedule,
			FailureRetention:    cfg.Messaging.FailureRetention,
			DeadLetterRetention: cfg.Messaging.DeadLetterRetention,
		}, clock, a.Logger)
	}
	if cfg.Messaging.UseTickLock {
		schedCfg.Locker = db.NewJobLockRepository(a.Pool)
	}
	a.Scheduler = scheduler.New(a.Dispatcher, schedCfg)

	return nil
}

// wireProviders selects the outbound clients. Local runs use stubs so the
// worker boots without provider credentials.
func (a *App) wireProviders(deps *processors.Deps, awsCfg aws.Config) {
	cfg := a.Config

	if cfg.Email.Provider == "stub" || cfg.Environment == localEnv {
		deps.Email = external.NewStubEmailSender(a.Logger)
	} else {
		deps.Email = external.NewSESClient(awsCfg, external.SESClientConfig{
			FromAddress:   cfg.Email.FromAddress,
			FromName:      cfg.Email.FromName,
			ConfigSetName: cfg.Email.ConfigurationSet,
			Logger:        a.Logger,
		})
	}

	if cfg.Environment == localEnv {
		a.Logger.Warn("using stub card issuer, eligibility and notify providers")
		deps.Cards = external.NewStubCardIssuer(a.Logger)
		deps.Eligibility = external.NewStubEligibilityService(a.Logger)
		deps.Notifier = external.NewStubNotifier(a.Logger)
		return
	}

	userAgent := fmt.Sprintf("%s/%s", cfg.Service, cfg.Build.Version)
	retry := external.DefaultRetryPolicy()

	cardBase := external.NewBaseClient(&http.Client{Timeout: cfg.CardIssuer.Timeout},
		"card-issuer", types.ErrCodeUpstreamCardIssuer, retry, userAgent)
	deps.Cards = external.NewCardClient(cardBase, cfg.CardIssuer.BaseURL, cfg.CardIssuer.APIKey)

	eligibilityBase := external.NewBaseClient(&http.Client{Timeout: cfg.Eligibility.Timeout},
		"eligibility", types.ErrCodeUpstreamEligibility, retry, userAgent)
	deps.Eligibility = external.NewEligibilityClient(eligibilityBase, cfg.Eligibility.BaseURL, cfg.Eligibility.APIKey)

	notifyBase := external.NewBaseClient(&http.Client{Timeout: cfg.Notify.Timeout},
		"notify", types.ErrCodeUpstreamNotify, retry, userAgent)
	deps.Notifier = external.NewNotifyClient(notifyBase, cfg.Notify.BaseURL, cfg.Notify.APIKey)
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	// LocalStack
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// workerID identifies this process in job locks.
func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

// NewLogger returns a JSON slog logger at the named level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter satisfies types.Logger, whose With returns the interface
// rather than *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)
