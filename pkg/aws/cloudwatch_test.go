package aws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	for _, e := range in.LogEvents {
		lines = append(lines, aws.ToString(e.Message))
	}
	f.batches = append(f.batches, lines)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func (f *fakeLogs) sent() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func TestLogShipper_FlushesFullBatches(t *testing.T) {
	api := &fakeLogs{}
	c := newLogShipper(api, "/g", "s", time.Hour, 2)

	_, _ = c.Write([]byte("a"))
	_, _ = c.Write([]byte("b"))
	require.Eventually(t, func() bool { return len(api.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, api.sent()[0])

	_, _ = c.Write([]byte("c"))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"c"}, api.sent()[1], "close flushes the remainder")
	require.NoError(t, c.Close(context.Background()))
}

func TestLogShipper_Disabled(t *testing.T) {
	t.Setenv("CLOUDWATCH_ENABLED", "false")
	c, err := NewCloudWatchLogsClient(context.Background(), "import-service")
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	n, err := c.Write([]byte("line"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, c.Close(context.Background()))
}

type fakeMetricsAPI struct {
	calls [][]types.MetricDatum
	err   error
}

func (f *fakeMetricsAPI) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.calls = append(f.calls, in.MetricData)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestMetricsClient_Batches(t *testing.T) {
	api := &fakeMetricsAPI{}
	m := &MetricsClient{api: api, namespace: "SiteImport", enabled: true}

	batch := make([]types.MetricDatum, metricBatchSize+5)
	for i := range batch {
		batch[i] = Datum(MetricImportRowsSucceeded, 1, types.StandardUnitCount, nil)
	}
	require.NoError(t, m.PutMetricBatch(context.Background(), batch))
	require.Len(t, api.calls, 2)
	assert.Len(t, api.calls[0], metricBatchSize)
	assert.Len(t, api.calls[1], 5)

	api.err = errors.New("throttled")
	assert.ErrorContains(t, m.RecordValue(context.Background(), MetricImportJobsQueued, 1, nil), "throttled")
}

func TestDatum_SortsDimensions(t *testing.T) {
	d := Datum(MetricImportDuration, 12, types.StandardUnitMilliseconds, map[string]string{"Kind": "labours", "DryRun": "false"})
	require.Len(t, d.Dimensions, 2)
	assert.Equal(t, "DryRun", aws.ToString(d.Dimensions[0].Name))
	assert.Equal(t, "Kind", aws.ToString(d.Dimensions[1].Name))
}

func TestMetricsClient_DisabledIsNoop(t *testing.T) {
	m := &MetricsClient{}
	assert.NoError(t, m.RecordValue(context.Background(), MetricImportRowsFailed, 3, nil))
}
