package external

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"carereminders/internal/config"
	"carereminders/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testAWSConfig() aws.Config {
	return aws.Config{Region: "us-east-1"}
}

func TestNewClientRegistry_LocalEnvReturnsStubs(t *testing.T) {
	cfg := &config.Config{Environment: "local"}

	reg := NewClientRegistry(cfg, testAWSConfig(), testLogger())

	if _, ok := reg.Email.(*StubEmailTransport); !ok {
		t.Errorf("Email is %T, want *StubEmailTransport", reg.Email)
	}
	if _, ok := reg.SMS.(*StubSMSTransport); !ok {
		t.Errorf("SMS is %T, want *StubSMSTransport", reg.SMS)
	}
	if _, ok := reg.Push.(*StubPushTransport); !ok {
		t.Errorf("Push is %T, want *StubPushTransport", reg.Push)
	}
}

func TestNewClientRegistry_WithStubsOverridesEnvironment(t *testing.T) {
	cfg := &config.Config{Environment: "prod"}

	reg := NewClientRegistry(cfg, testAWSConfig(), testLogger(), WithStubs())

	if _, ok := reg.Email.(*StubEmailTransport); !ok {
		t.Errorf("Email is %T, want stub", reg.Email)
	}
}

func TestNewClientRegistry_ProductionReturnsRealClients(t *testing.T) {
	cfg := &config.Config{
		Environment: "prod",
		SMS:         config.SMSConfig{SMSType: "Transactional"},
		Push: config.PushConfig{
			VAPIDPublicKey:  "pub",
			VAPIDPrivateKey: types.SecretString("priv"),
			Subscriber:      "mailto:ops@example.com",
			TTL:             time.Hour,
		},
	}

	reg := NewClientRegistry(cfg, testAWSConfig(), testLogger())

	if _, ok := reg.Email.(*SESClient); !ok {
		t.Errorf("Email is %T, want *SESClient", reg.Email)
	}
	if _, ok := reg.SMS.(*SNSClient); !ok {
		t.Errorf("SMS is %T, want *SNSClient", reg.SMS)
	}
	if _, ok := reg.Push.(*WebPushClient); !ok {
		t.Errorf("Push is %T, want *WebPushClient", reg.Push)
	}
}

func TestNewClientRegistry_PushDisabledWithoutVAPID(t *testing.T) {
	cfg := &config.Config{Environment: "dev"}

	reg := NewClientRegistry(cfg, testAWSConfig(), nil)

	if reg.Push != nil {
		t.Errorf("Push = %T, want nil without VAPID keys", reg.Push)
	}
	if reg.Email == nil || reg.SMS == nil {
		t.Error("expected email and SMS transports")
	}
}

func TestStubTransports(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	id, err := NewStubEmailTransport(logger).SendEmail(ctx, EmailMessage{To: "a@example.com", ReferenceID: "job-1"})
	if err != nil || id != "msg_stub_job-1" {
		t.Errorf("email stub = (%q, %v)", id, err)
	}

	sms := NewStubSMSTransport(logger)
	first, _ := sms.SendSMS(ctx, "+15550000000", "hi")
	second, _ := sms.SendSMS(ctx, "+15550000000", "hi")
	if first == second {
		t.Errorf("expected distinct SMS stub IDs, got %q twice", first)
	}

	if err := NewStubPushTransport(logger).SendPush(ctx, types.PushSubscription{ID: "sub-1"}, []byte("{}")); err != nil {
		t.Errorf("push stub error: %v", err)
	}
}
