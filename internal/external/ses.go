package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"carereminders/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESClient.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig holds the configuration for creating an SESClient.
type SESClientConfig struct {
	// ConfigSetName is the SES configuration set used for event tracking.
	// Optional.
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient implements EmailTransport using AWS SES v2. Authentication comes
// from the IAM role; retries are handled by the SDK.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

// NewSESClient creates an SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESClientWithAPI creates an SESClient around an existing SESAPI.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{
		api:           api,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// SendEmail transmits msg as a simple (non-templated) SES message.
//
// Error mapping:
//   - MessageRejected → ErrCodeEmailBlocked
//   - TooManyRequestsException → ErrCodeUpstreamRateLimited
//   - SendingPausedException → ErrCodeUpstreamUnavailable
//   - Other → ErrCodeUpstreamEmailProvider
func (s *SESClient) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	fromAddr := msg.FromAddress
	if msg.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddr),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: utf8Content(msg.Subject),
				Body:    &sestypes.Body{},
			},
		},
	}
	if msg.BodyHTML != "" {
		input.Content.Simple.Body.Html = utf8Content(msg.BodyHTML)
	}
	if msg.BodyText != "" {
		input.Content.Simple.Body.Text = utf8Content(msg.BodyText)
	}
	if s.configSetName != "" {
		input.ConfigurationSetName = aws.String(s.configSetName)
	}
	if msg.ReferenceID != "" {
		input.EmailTags = []sestypes.MessageTag{
			{Name: aws.String("ReferenceID"), Value: aws.String(msg.ReferenceID)},
		}
	}

	result, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", mapSESError(err)
	}

	msgID := aws.ToString(result.MessageId)
	s.logger.DebugContext(ctx, "ses message accepted", "message_id", msgID, "reference_id", msg.ReferenceID)
	return msgID, nil
}

func utf8Content(data string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// mapSESError translates AWS SES errors into AppErrors.
func mapSESError(err error) error {
	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeEmailBlocked, fmt.Sprintf("SES rejected message: %v", err), err)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SES rate limit exceeded: %v", err), err)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES account sending paused: %v", err), err)
	}

	// SDK-level throttling surfaces as a generic API error rather than a
	// modeled SES exception.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "Throttling" {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SES throttled request: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("SES error: %v", err), err)
}

var _ EmailTransport = (*SESClient)(nil)
