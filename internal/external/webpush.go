package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"carereminders/internal/types"
)

// WebPushConfig holds VAPID credentials and delivery options.
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is a mailto: or https: contact URL sent in the VAPID claim.
	Subscriber string
	// TTL is how long the push service keeps an undeliverable message.
	TTL    time.Duration
	Logger *slog.Logger
}

// WebPushClient implements PushTransport with webpush-go. The HTTP calls go
// through a BaseClient.
type WebPushClient struct {
	http   webpush.HTTPClient
	cfg    WebPushConfig
	logger *slog.Logger
}

// NewWebPushClient creates a WebPushClient. httpClient is usually a
// *BaseClient; any webpush.HTTPClient is accepted.
func NewWebPushClient(httpClient webpush.HTTPClient, cfg WebPushConfig) *WebPushClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &WebPushClient{http: httpClient, cfg: cfg, logger: logger}
}

// SendPush encrypts payload for sub and posts it to the subscription's
// push service. 404 and 410 yield ErrSubscriptionExpired.
func (c *WebPushClient) SendPush(ctx context.Context, sub types.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      c.http,
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             int(c.cfg.TTL / time.Second),
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		if types.HasCode(err, types.ErrCodeUpstreamUnavailable) || types.HasCode(err, types.ErrCodeUpstreamRateLimited) {
			return err
		}
		return types.NewAppError(types.ErrCodeUpstreamPushProvider, "web push request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrSubscriptionExpired
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewAppError(types.ErrCodeUpstreamPushProvider,
			fmt.Sprintf("push service returned %d", resp.StatusCode), nil).
			WithDetails(map[string]any{"body": string(body)})
	}
	return nil
}

var _ PushTransport = (*WebPushClient)(nil)
