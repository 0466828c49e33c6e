package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/sony/gobreaker/v2"

	"carereminders/internal/types"
)

// SNS message attribute names for direct-to-phone publishing.
const (
	snsAttrSMSType  = "AWS.SNS.SMS.SMSType"
	snsAttrSenderID = "AWS.SNS.SMS.SenderID"
)

// SNSAPI is the subset of the SNS client used by SNSClient.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClientConfig holds SMS publishing attributes.
type SNSClientConfig struct {
	// SMSType is "Transactional" or "Promotional".
	SMSType string
	// SenderID is optional and not honored in every country.
	SenderID string
	Logger   *slog.Logger
}

// SNSClient implements SMSTransport by publishing to a phone number. Calls
// are wrapped in a circuit breaker so a throttled account fails fast for
// the rest of a dispatch batch.
type SNSClient struct {
	api      SNSAPI
	breaker  *gobreaker.CircuitBreaker[*sns.PublishOutput]
	smsType  string
	senderID string
	logger   *slog.Logger
}

// NewSNSClient creates an SNSClient from an AWS config.
func NewSNSClient(awsCfg aws.Config, cfg SNSClientConfig) *SNSClient {
	return NewSNSClientWithAPI(sns.NewFromConfig(awsCfg), cfg)
}

// NewSNSClientWithAPI creates an SNSClient around an existing SNSAPI.
func NewSNSClientWithAPI(api SNSAPI, cfg SNSClientConfig) *SNSClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	smsType := cfg.SMSType
	if smsType == "" {
		smsType = "Transactional"
	}
	settings := newBreakerSettings("sns-sms")
	settings.IsSuccessful = func(err error) bool {
		// Caller-side problems (bad number, opted out) say nothing about
		// provider health.
		return err == nil || isSNSClientError(err)
	}
	return &SNSClient{
		api:      api,
		breaker:  gobreaker.NewCircuitBreaker[*sns.PublishOutput](settings),
		smsType:  smsType,
		senderID: cfg.SenderID,
		logger:   logger,
	}
}

// SendSMS publishes message to phoneNumber (E.164).
func (c *SNSClient) SendSMS(ctx context.Context, phoneNumber, message string) (string, error) {
	attrs := map[string]snstypes.MessageAttributeValue{
		snsAttrSMSType: {DataType: aws.String("String"), StringValue: aws.String(c.smsType)},
	}
	if c.senderID != "" {
		attrs[snsAttrSenderID] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(c.senderID),
		}
	}

	out, err := c.breaker.Execute(func() (*sns.PublishOutput, error) {
		return c.api.Publish(ctx, &sns.PublishInput{
			PhoneNumber:       aws.String(phoneNumber),
			Message:           aws.String(message),
			MessageAttributes: attrs,
		})
	})
	if err != nil {
		return "", mapSNSError(err)
	}

	msgID := aws.ToString(out.MessageId)
	c.logger.DebugContext(ctx, "sns sms accepted", "message_id", msgID)
	return msgID, nil
}

func isSNSClientError(err error) bool {
	var invalidParam *snstypes.InvalidParameterException
	var invalidValue *snstypes.InvalidParameterValueException
	var optedOut *snstypes.OptedOutException
	return errors.As(err, &invalidParam) || errors.As(err, &invalidValue) || errors.As(err, &optedOut)
}

// mapSNSError translates SNS and breaker errors into AppErrors.
func mapSNSError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SMS circuit breaker is open", err)
	}

	var throttled *snstypes.ThrottledException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SNS rate limit exceeded: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamSMSProvider, fmt.Sprintf("SNS error: %v", err), err)
}

var _ SMSTransport = (*SNSClient)(nil)
