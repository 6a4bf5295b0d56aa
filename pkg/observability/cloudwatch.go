package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// PutMetricDataAPI is the subset of the CloudWatch client the reporter uses
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics reports business counters as CloudWatch custom metrics.
// Send failures are logged and never returned.
type CloudWatchMetrics struct {
	namespace string
	client    PutMetricDataAPI
	logger    *zap.Logger
	now       func() time.Time
}

// NewCloudWatchMetrics creates a reporter. A nil client disables reporting.
func NewCloudWatchMetrics(namespace string, client PutMetricDataAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{namespace: namespace, client: client, logger: logger, now: time.Now}
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...types.MetricDatum) {
	if m.client == nil || len(data) == 0 {
		return
	}
	ts := aws.Time(m.now())
	for i := range data {
		data[i].Timestamp = ts
		if data[i].Unit == "" {
			data[i].Unit = types.StandardUnitCount
		}
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("Failed to send metrics", zap.String("namespace", m.namespace), zap.Error(err))
	}
}

func count(name string, value float64) types.MetricDatum {
	return types.MetricDatum{MetricName: aws.String(name), Value: aws.Float64(value)}
}

func (m *CloudWatchMetrics) GraphCreated(ctx context.Context) {
	m.put(ctx, count("GraphsCreated", 1))
}

func (m *CloudWatchMetrics) GraphDeleted(ctx context.Context) {
	m.put(ctx, count("GraphsDeleted", 1))
}

func (m *CloudWatchMetrics) PeopleAdded(ctx context.Context, profilesCreated, connectionsCreated int) {
	m.put(ctx,
		count("Ingestions", 1),
		count("ProfilesCreated", float64(profilesCreated)),
		count("ConnectionsCreated", float64(connectionsCreated)),
	)
}

func (m *CloudWatchMetrics) ConnectionCreated(ctx context.Context) {
	m.put(ctx, count("ConnectionsCreated", 1))
}

func (m *CloudWatchMetrics) ConnectionDeleted(ctx context.Context) {
	m.put(ctx, count("ConnectionsDeleted", 1))
}

// CacheLookup is not reported; cache ratios come from Prometheus
func (m *CloudWatchMetrics) CacheLookup(context.Context, bool) {}

// RecordLatency records latency for any operation
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, operation string, latency time.Duration) {
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("OperationLatency"),
		Dimensions: []types.Dimension{{Name: aws.String("Operation"), Value: aws.String(operation)}},
		Value:      aws.Float64(float64(latency.Milliseconds())),
		Unit:       types.StandardUnitMilliseconds,
	})
}
