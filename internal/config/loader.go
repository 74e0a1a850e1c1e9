package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"benefitclaims/internal/types"
)

// ConfigError is returned by LoadConfig. Type says which stage failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(t ConfigErrorType, err error, format string, args ...any) *ConfigError {
	return &ConfigError{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

const (
	localEnv = "local"

	// CARD_ISSUER_API_KEY_SSM_PARAM=/prod/claims/card/api-key fills
	// CARD_ISSUER_API_KEY from Parameter Store.
	ssmParamSuffix = "_SSM_PARAM"

	secretResolveTimeout = 30 * time.Second
)

type envLookup func(key string) (string, bool)

// loaderDeps isolates the loader from process state in tests.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    func(key, value string) error
	environ   func() []string
	dotenv    func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		dotenv:    func() error { return godotenv.Load() },
	}
}

// LoadConfig builds the worker configuration from the environment.
//
// The process clock is pinned to UTC and a .env file is read when present
// (it never overrides variables already set). Outside APP_ENV=local, every
// FOO_SSM_PARAM variable whose FOO is unset is resolved through provider.
// The result is then parsed with envconfig and checked with validator plus
// the messaging rules in validateMessaging.
//
// provider may be nil when no secrets need resolving.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	if deps.dotenv != nil {
		_ = deps.dotenv()
	}

	if env, _ := deps.lookupEnv("APP_ENV"); env != localEnv {
		if err := resolveSecrets(provider, deps); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, configErr(ErrParsing, err, "environment could not be parsed")
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, configErr(ErrValidation, err, "configuration is invalid")
	}
	if err := validateMessaging(cfg.Messaging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateMessaging catches mistakes envconfig cannot: a misspelt type in
// MESSAGE_POLL_INTERVALS would otherwise fall back to the default cadence.
func validateMessaging(m MessagingConfig) error {
	var unknown []string
	for _, key := range slices.Sorted(maps.Keys(m.PollIntervals)) {
		if _, err := types.ParseMessageType(key); err != nil {
			unknown = append(unknown, key)
			continue
		}
		if d := m.PollIntervals[key]; d < time.Second {
			return configErr(ErrValidation, nil, "poll interval for %s is %s, minimum is 1s", key, d)
		}
	}
	if len(unknown) > 0 {
		return configErr(ErrValidation, nil, "MESSAGE_POLL_INTERVALS names unknown message types: %s", strings.Join(unknown, ", "))
	}
	if m.RetryMaxDelay < m.RetryBaseDelay {
		return configErr(ErrValidation, nil, "MESSAGE_RETRY_MAX_DELAY (%s) is below MESSAGE_RETRY_BASE_DELAY (%s)", m.RetryMaxDelay, m.RetryBaseDelay)
	}
	return nil
}

// secretRefs maps parameter path to the variable it fills, for every
// *_SSM_PARAM variable whose target is not already set.
func secretRefs(deps loaderDeps) map[string]string {
	refs := make(map[string]string)
	for _, kv := range deps.environ() {
		key, path, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			continue
		}
		target, found := strings.CutSuffix(key, ssmParamSuffix)
		if !found {
			continue
		}
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		refs[path] = target
	}
	return refs
}

func resolveSecrets(provider SecretProvider, deps loaderDeps) error {
	refs := secretRefs(deps)
	if len(refs) == 0 {
		return nil
	}

	if provider == nil {
		targets := slices.Sorted(maps.Values(refs))
		return configErr(ErrSSMResolution, nil, "no secret provider configured to resolve %s", strings.Join(targets, ", "))
	}

	paths := slices.Sorted(maps.Keys(refs))
	ctx, cancel := context.WithTimeout(context.Background(), secretResolveTimeout)
	defer cancel()

	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return configErr(ErrSSMResolution, err, "resolving %d parameters", len(paths))
	}

	var missing []string
	for _, path := range paths {
		target := refs[path]
		value, ok := values[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return configErr(ErrSSMResolution, err, "setting %s", target)
		}
	}
	if len(missing) > 0 {
		return configErr(ErrSSMResolution, nil, "parameters not found for %s", strings.Join(missing, ", "))
	}
	return nil
}
