package aws

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// PutMetricData takes at most 1000 datums per call.
const metricBatchSize = 1000

// Metric names published by the import service.
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricImportRowsSucceeded = "ImportRowsSucceeded"
	MetricImportRowsFailed    = "ImportRowsFailed"
	MetricImportDuration      = "ImportDuration"
	MetricImportJobsQueued    = "ImportJobsQueued"
	MetricImportJobsFailed    = "ImportJobsFailed"
)

type metricsAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes CloudWatch metrics under one namespace. A disabled
// client accepts every call and sends nothing.
type MetricsClient struct {
	api       metricsAPI
	namespace string
	enabled   bool
}

// NewMetricsClient is enabled by CLOUDWATCH_ENABLED=true; the namespace
// comes from CLOUDWATCH_NAMESPACE.
func NewMetricsClient(ctx context.Context) (*MetricsClient, error) {
	namespace := os.Getenv("CLOUDWATCH_NAMESPACE")
	if namespace == "" {
		namespace = "SiteImport"
	}
	if os.Getenv("CLOUDWATCH_ENABLED") != "true" {
		return &MetricsClient{namespace: namespace}, nil
	}
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &MetricsClient{api: cloudwatch.NewFromConfig(cfg), namespace: namespace, enabled: true}, nil
}

// Datum builds one data point. Dimensions are sorted by name.
func Datum(name string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(dimensions[k])})
	}
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}

// PutMetric sends a single data point.
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	return m.PutMetricBatch(ctx, []types.MetricDatum{Datum(metricName, value, unit, dimensions)})
}

// PutMetricBatch sends datums in as few calls as the API allows.
func (m *MetricsClient) PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error {
	if !m.enabled {
		return nil
	}
	for len(metrics) > 0 {
		n := min(len(metrics), metricBatchSize)
		if _, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: metrics[:n],
		}); err != nil {
			return fmt.Errorf("failed to put metrics: %w", err)
		}
		metrics = metrics[n:]
	}
	return nil
}

// RecordLatency records duration in milliseconds.
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

func (m *MetricsClient) RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, value, types.StandardUnitNone, dimensions)
}

func (m *MetricsClient) IsEnabled() bool {
	return m.enabled
}
