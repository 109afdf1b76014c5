package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	defaultMetricsNamespace = "OrderFulfillment"
	syncMetricName          = "ShippingSync"
	persistMetricName       = "OrderPersistence"
)

// SyncMetrics publishes one counter per pipeline outcome to CloudWatch.
type SyncMetrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewSyncMetrics returns a SyncMetrics writing under namespace (defaults to OrderFulfillment).
func NewSyncMetrics(client CloudWatchAPI, namespace string) *SyncMetrics {
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}
	return &SyncMetrics{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// RecordSync counts one shipping-sync attempt with the resulting state.
func (m *SyncMetrics) RecordSync(ctx context.Context, state string) error {
	return m.put(ctx, syncMetricName, "State", state)
}

// RecordPersistence counts one order save by the name of the sink that
// accepted it, or "none" when every sink failed.
func (m *SyncMetrics) RecordPersistence(ctx context.Context, sink string) error {
	return m.put(ctx, persistMetricName, "Sink", sink)
}

func (m *SyncMetrics) put(ctx context.Context, metric, dimension, value string) error {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(metric),
				Dimensions: []cwtypes.Dimension{
					{Name: sdkaws.String(dimension), Value: sdkaws.String(value)},
				},
				Timestamp: sdkaws.Time(m.nowFunc()),
				Unit:      cwtypes.StandardUnitCount,
				Value:     sdkaws.Float64(1),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data (%s): %w", metric, err)
	}
	return nil
}
