package core

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"carereminders/internal/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics implements NotificationMetrics by emitting
// to AWS CloudWatch. Publish failures are logged, never returned.
//
// Metrics emitted:
//   - DeliverySuccess / DeliveryFailed: Dims {Channel}
//   - DeliveryLatency: Dims {Channel}, milliseconds
//   - per-run counters and RunDuration: Dims {Task}
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// NewCloudWatchNotificationMetrics publishes to namespace, or to
// types.MetricNamespace when namespace is empty.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func channelDim(method types.NotificationMethod) []cwtypes.Dimension {
	return []cwtypes.Dimension{{Name: aws.String(types.DimChannel), Value: aws.String(string(method))}}
}

func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, method types.NotificationMethod, result MetricResult) {
	name := types.MetricDeliverySuccess
	if result != MetricSuccess {
		name = types.MetricDeliveryFailed
	}
	m.put(ctx, []cwtypes.MetricDatum{{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: channelDim(method),
	}})
}

func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, method types.NotificationMethod, duration time.Duration) {
	m.put(ctx, []cwtypes.MetricDatum{{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: channelDim(method),
	}})
}

// RecordRun sends all counters and the duration in a single
// PutMetricData call. Counters are emitted in name order.
func (m *CloudWatchNotificationMetrics) RecordRun(ctx context.Context, task string, counters map[string]float64, duration time.Duration) {
	dims := []cwtypes.Dimension{{Name: aws.String(types.DimTask), Value: aws.String(task)}}

	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([]cwtypes.MetricDatum, 0, len(counters)+1)
	for _, name := range names {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(counters[name]),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		})
	}
	data = append(data, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: dims,
	})
	m.put(ctx, data)
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, data []cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Error("failed to publish metrics",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
			"count", len(data),
		)
	}
}
