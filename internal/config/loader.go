// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC.
//  2. Load .env via godotenv (non-fatal if absent).
//  3. Outside APP_ENV=local, resolve *_SSM_PARAM pointers through the
//     SecretProvider and inject the values into the environment.
//  4. Populate Config with envconfig.
//  5. Attach BuildInfo.
//  6. Validate with go-playground/validator plus cross-field checks.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: DATABASE_URL_SSM_PARAM holds the
// SSM path whose value becomes DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

const localEnv = "local"

// ssmResolveTimeout bounds the whole batch resolution at cold start.
const ssmResolveTimeout = 30 * time.Second

// loaderDeps holds the environment accessors so tests need not mutate
// global state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration. provider may be nil for
// local development; in any other environment it is required as soon as a
// *_SSM_PARAM variable is present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := cfg.Reminders.validateTimeouts(); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "reminder timing configuration is inconsistent",
			Err:     err,
		}
	}

	return &cfg, nil
}

// validateTimeouts checks relationships validator tags cannot express on
// durations: a single send must fit inside a run, and the job lock must
// outlive the run so an overlapping trigger cannot steal it mid-flight.
func (r ReminderConfig) validateTimeouts() error {
	if r.SendTimeout <= 0 {
		return fmt.Errorf("REMINDER_SEND_TIMEOUT must be positive, got %s", r.SendTimeout)
	}
	if r.RunDeadline <= 0 {
		return fmt.Errorf("REMINDER_RUN_DEADLINE must be positive, got %s", r.RunDeadline)
	}
	if r.SendTimeout > r.RunDeadline {
		return fmt.Errorf("REMINDER_SEND_TIMEOUT (%s) exceeds REMINDER_RUN_DEADLINE (%s)", r.SendTimeout, r.RunDeadline)
	}
	if r.LockTTL < r.RunDeadline {
		return fmt.Errorf("REMINDER_LOCK_TTL (%s) is shorter than REMINDER_RUN_DEADLINE (%s)", r.LockTTL, r.RunDeadline)
	}
	return nil
}

// resolveSSMParams fetches every *_SSM_PARAM target that is not already set
// and writes the values back into the environment.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths, targets []string

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		pathToTarget[path] = target
		paths = append(paths, path)
		targets = append(targets, target)
	}

	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, pathToTarget[path])
			continue
		}
		if err := deps.setEnv(pathToTarget[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", pathToTarget[path]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
