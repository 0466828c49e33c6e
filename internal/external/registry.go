package external

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"carereminders/internal/config"
)

// ClientRegistry holds the delivery transports. In local mode every
// transport is a logging stub so the worker can run without AWS
// credentials or VAPID keys.
type ClientRegistry struct {
	Email EmailTransport
	SMS   SMSTransport
	// Push is nil when VAPID keys are not configured.
	Push PushTransport
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	pushHTTPClient *http.Client
	forceStubs     bool
}

// WithPushHTTPClient overrides the HTTP client used for web push.
func WithPushHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.pushHTTPClient = c
	}
}

// WithStubs forces stub transports regardless of environment. Used by the
// job runner's --dry-run.
func WithStubs() RegistryOption {
	return func(rc *registryConfig) {
		rc.forceStubs = true
	}
}

// NewClientRegistry builds the transports. APP_ENV=local, or WithStubs,
// selects stubs; otherwise real SES, SNS and web-push clients are created
// from awsCfg.
func NewClientRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger, opts ...RegistryOption) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	if rc.forceStubs || cfg.Environment == "local" {
		logger.Info("initializing delivery transports in STUB mode",
			"environment", cfg.Environment,
			"forced", rc.forceStubs,
		)
		return newStubRegistry(logger)
	}

	logger.Info("initializing delivery transports", "environment", cfg.Environment)
	return newProductionRegistry(cfg, awsCfg, logger, rc)
}

func newStubRegistry(logger *slog.Logger) *ClientRegistry {
	stubLogger := logger.With("mode", "stub")
	return &ClientRegistry{
		Email: NewStubEmailTransport(stubLogger),
		SMS:   NewStubSMSTransport(stubLogger),
		Push:  NewStubPushTransport(stubLogger),
	}
}

func newProductionRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger, rc *registryConfig) *ClientRegistry {
	reg := &ClientRegistry{
		Email: NewSESClient(awsCfg, SESClientConfig{
			ConfigSetName: cfg.Email.ConfigurationSet,
			Logger:        logger.With("client", "ses"),
		}),
		SMS: NewSNSClient(awsCfg, SNSClientConfig{
			SMSType:  cfg.SMS.SMSType,
			SenderID: cfg.SMS.SenderID,
			Logger:   logger.With("client", "sns"),
		}),
	}

	if !cfg.Push.Configured() {
		logger.Warn("VAPID keys not configured; push delivery disabled")
		return reg
	}

	httpClient := rc.pushHTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	reg.Push = NewWebPushClient(
		NewBaseClient(httpClient, "web-push", DefaultRetryPolicy(), "carereminders/"+cfg.Build.Version),
		WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey.Unmask(),
			Subscriber:      cfg.Push.Subscriber,
			TTL:             cfg.Push.TTL,
			Logger:          logger.With("client", "web-push"),
		},
	)
	return reg
}
