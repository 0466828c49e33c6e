// Package config defines the process configuration for the reminder engine.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"carereminders/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the sections they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"reminder-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	SMS           SMSConfig
	Push          PushConfig
	Reminders     ReminderConfig
	Feature       FeatureConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ReminderTaskQueue receives TaskMessage envelopes that trigger a run
	// out of band. Optional; only the job runner's --enqueue needs it.
	ReminderTaskQueue string `envconfig:"SQS_REMINDER_TASKS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds SES sender identity.
type EmailConfig struct {
	FromAddress      string `envconfig:"EMAIL_FROM_ADDRESS" default:"reminders@example.com" validate:"required,email"`
	FromName         string `envconfig:"EMAIL_FROM_NAME" default:"Appointment Reminders"`
	ConfigurationSet string `envconfig:"SES_CONFIGURATION_SET"`
}

// SMSConfig holds SNS SMS publishing attributes.
type SMSConfig struct {
	SenderID string `envconfig:"SMS_SENDER_ID" validate:"omitempty,max=11,alphanum"`
	SMSType  string `envconfig:"SMS_TYPE" default:"Transactional" validate:"oneof=Transactional Promotional"`
}

// PushConfig holds web-push VAPID credentials.
type PushConfig struct {
	VAPIDPublicKey  string        `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey SecretString  `envconfig:"VAPID_PRIVATE_KEY"`
	Subscriber      string        `envconfig:"VAPID_SUBSCRIBER" default:"mailto:reminders@example.com"`
	TTL             time.Duration `envconfig:"PUSH_TTL" default:"1h"`
}

// Configured reports whether VAPID keys are present.
func (p PushConfig) Configured() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey.IsSet()
}

// ReminderConfig tunes scheduler and dispatcher runs.
type ReminderConfig struct {
	WindowMinutes       int           `envconfig:"REMINDER_WINDOW_MINUTES" default:"1440" validate:"min=1"`
	BatchSize           int           `envconfig:"REMINDER_BATCH_SIZE" default:"100" validate:"min=1,max=1000"`
	DispatchConcurrency int           `envconfig:"REMINDER_DISPATCH_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	ScheduleConcurrency int           `envconfig:"REMINDER_SCHEDULE_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	SendTimeout         time.Duration `envconfig:"REMINDER_SEND_TIMEOUT" default:"15s"`
	RunDeadline         time.Duration `envconfig:"REMINDER_RUN_DEADLINE" default:"4m"`
	LockTTL             time.Duration `envconfig:"REMINDER_LOCK_TTL" default:"15m"`

	// Cron specs used by the self-hosted daemon.
	ScheduleCron string `envconfig:"REMINDER_SCHEDULE_CRON" default:"*/15 * * * *"`
	DispatchCron string `envconfig:"REMINDER_DISPATCH_CRON" default:"* * * * *"`
}

// FeatureConfig holds emergency kill switches.
type FeatureConfig struct {
	EnableEmail bool `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
	EnableSMS   bool `envconfig:"FEATURE_ENABLE_SMS" default:"true"`
	EnablePush  bool `envconfig:"FEATURE_ENABLE_PUSH" default:"true"`
	EnableInApp bool `envconfig:"FEATURE_ENABLE_IN_APP" default:"true"`

	// UseMocks short-circuits the scheduler to a zero result. Used in
	// environments where calendar data is synthetic.
	UseMocks bool `envconfig:"CALENDAR_USE_MOCKS" default:"false"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CareReminders"`
	// MetricsAddr is the listen address of the daemon's /metrics endpoint.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9102"`
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
