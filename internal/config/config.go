// Package config defines the configuration for the benefit-claims message
// worker and its operational tooling. Configuration is loaded once at process
// start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"benefitclaims/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"benefit-claims-worker"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server        ServerConfig
	Database      DatabaseConfig
	Messaging     MessagingConfig
	Entitlement   EntitlementConfig
	CardIssuer    CardIssuerConfig
	Eligibility   EligibilityConfig
	Notify        NotifyConfig
	Email         EmailConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env
	Build BuildInfo
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"20s"`
	RequestTimeout  time.Duration `envconfig:"OPS_REQUEST_TIMEOUT" default:"5m"`
	OpsAPIKey       SecretString  `envconfig:"OPS_API_KEY"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// MessagingConfig controls the message queue scheduler and retry policy.
type MessagingConfig struct {
	// PollIntervals overrides DefaultPollInterval per message type, e.g.
	// "SEND_EMAIL:10s,MAKE_PAYMENT:1m".
	PollIntervals       map[string]time.Duration `envconfig:"MESSAGE_POLL_INTERVALS"`
	DefaultPollInterval time.Duration            `envconfig:"MESSAGE_DEFAULT_POLL_INTERVAL" default:"30s" validate:"min=1s"`
	BatchSize           int                      `envconfig:"MESSAGE_BATCH_SIZE" default:"100" validate:"min=1,max=5000"`

	RetryBaseDelay     time.Duration `envconfig:"MESSAGE_RETRY_BASE_DELAY" default:"30s"`
	RetryMaxDelay      time.Duration `envconfig:"MESSAGE_RETRY_MAX_DELAY" default:"6h"`
	RetryBackoffFactor float64       `envconfig:"MESSAGE_RETRY_BACKOFF_FACTOR" default:"2.0" validate:"gte=1"`

	// MaxDeliveryCount moves a message to the dead-letter table once it has
	// failed this many times. Zero disables dead-lettering.
	MaxDeliveryCount int `envconfig:"MESSAGE_MAX_DELIVERY_COUNT" default:"0" validate:"gte=0"`

	// UseTickLock takes a per-type lock in job_locks for each tick so that
	// only one instance drains a given type at a time.
	UseTickLock bool          `envconfig:"MESSAGE_USE_TICK_LOCK" default:"false"`
	TickLockTTL time.Duration `envconfig:"MESSAGE_TICK_LOCK_TTL" default:"10m"`

	// Audit cleanup. Zero keeps rows forever.
	RetentionSchedule   string        `envconfig:"MESSAGE_RETENTION_SCHEDULE" default:"@daily"`
	FailureRetention    time.Duration `envconfig:"MESSAGE_FAILURE_RETENTION" default:"2160h"`
	DeadLetterRetention time.Duration `envconfig:"DEAD_LETTER_RETENTION" default:"0"`
}

// IntervalFor returns the poll interval for a message type.
func (m MessagingConfig) IntervalFor(t types.MessageType) time.Duration {
	if d, ok := m.PollIntervals[string(t)]; ok && d > 0 {
		return d
	}
	return m.DefaultPollInterval
}

// EntitlementConfig holds the voucher scheme constants.
type EntitlementConfig struct {
	VoucherValue         string        `envconfig:"VOUCHER_VALUE" default:"4.25" validate:"required,numeric"`
	CycleDurationDays    int           `envconfig:"PAYMENT_CYCLE_DURATION_DAYS" default:"28" validate:"min=7"`
	PregnancyGracePeriod time.Duration `envconfig:"PREGNANCY_GRACE_PERIOD" default:"2016h"`
	MaxBalanceCycles     int           `envconfig:"MAX_BALANCE_CYCLES" default:"4" validate:"min=1"`
	ClaimPendingExpiry   time.Duration `envconfig:"CLAIM_PENDING_EXPIRY" default:"2688h"`
}

// CardIssuerConfig holds the card issuer API settings.
type CardIssuerConfig struct {
	BaseURL string        `envconfig:"CARD_ISSUER_BASE_URL" validate:"required,url"`
	APIKey  SecretString  `envconfig:"CARD_ISSUER_API_KEY"`
	Timeout time.Duration `envconfig:"CARD_ISSUER_TIMEOUT" default:"10s"`
}

// EligibilityConfig holds the eligibility service API settings.
type EligibilityConfig struct {
	BaseURL string        `envconfig:"ELIGIBILITY_BASE_URL" validate:"required,url"`
	APIKey  SecretString  `envconfig:"ELIGIBILITY_API_KEY"`
	Timeout time.Duration `envconfig:"ELIGIBILITY_TIMEOUT" default:"15s"`
}

// NotifyConfig holds the SMS and letter gateway settings.
type NotifyConfig struct {
	BaseURL string        `envconfig:"NOTIFY_BASE_URL" validate:"required,url"`
	APIKey  SecretString  `envconfig:"NOTIFY_API_KEY"`
	Timeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	// Templates maps "TEXT:NEW_CARD" / "LETTER:UPDATE_YOUR_ADDRESS" style keys
	// to provider template ids.
	Templates map[string]string `envconfig:"NOTIFY_TEMPLATES"`
}

// EmailConfig holds SES settings for claimant emails.
type EmailConfig struct {
	Provider         string `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses stub"`
	FromAddress      string `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@benefit-claims.service.gov.uk" validate:"required,email"`
	FromName         string `envconfig:"EMAIL_FROM_NAME" default:"Benefit Claims"`
	ConfigurationSet string `envconfig:"EMAIL_CONFIGURATION_SET"`
	// Templates maps EmailType to SES template names.
	Templates map[string]string `envconfig:"EMAIL_TEMPLATES"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-2"`

	ReportingQueueURL string `envconfig:"SQS_REPORTING_QUEUE" validate:"omitempty,url"`
	DeadLetterBucket  string `envconfig:"DEAD_LETTER_BUCKET"`
	DeadLetterPrefix  string `envconfig:"DEAD_LETTER_PREFIX" default:"dead-letters/"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BenefitClaims/Messaging"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
