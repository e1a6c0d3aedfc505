package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logFlushInterval = 5 * time.Second
	// PutLogEvents accepts at most 10,000 events per call.
	logMaxBatch = 500
)

type logsAPI interface {
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is an io.Writer that ships log lines to a CloudWatch
// Logs stream in batches from a background goroutine.
type CloudWatchLogsClient struct {
	api      logsAPI
	group    string
	stream   string
	enabled  bool
	interval time.Duration
	maxBatch int

	mu      sync.Mutex
	pending []types.InputLogEvent

	kick      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewCloudWatchLogsClient creates the log group and a per-process stream
// when CLOUDWATCH_ENABLED=true. Otherwise writes are discarded.
func NewCloudWatchLogsClient(ctx context.Context, serviceName string) (*CloudWatchLogsClient, error) {
	group := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if group == "" {
		group = "/construction/services"
	}
	stream := fmt.Sprintf("%s-%d", serviceName, time.Now().Unix())

	if os.Getenv("CLOUDWATCH_ENABLED") != "true" {
		return &CloudWatchLogsClient{group: group, stream: stream}, nil
	}

	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := cloudwatchlogs.NewFromConfig(cfg)
	if err := ensureLogGroup(ctx, client, group); err != nil {
		return nil, fmt.Errorf("failed to ensure log group: %w", err)
	}
	if _, err := client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	}); err != nil {
		return nil, fmt.Errorf("failed to create log stream: %w", err)
	}
	return newLogShipper(client, group, stream, logFlushInterval, logMaxBatch), nil
}

func newLogShipper(api logsAPI, group, stream string, interval time.Duration, maxBatch int) *CloudWatchLogsClient {
	c := &CloudWatchLogsClient{
		api:      api,
		group:    group,
		stream:   stream,
		enabled:  true,
		interval: interval,
		maxBatch: maxBatch,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go c.run()
	return c
}

func ensureLogGroup(ctx context.Context, client *cloudwatchlogs.Client, group string) error {
	_, err := client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return err
	}
	_, err = client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(group),
		RetentionInDays: aws.Int32(30),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}
	return nil
}

// Write queues one log line. It never fails so a CloudWatch outage cannot
// break logging to the other sinks.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	if !c.enabled {
		return len(p), nil
	}
	event := types.InputLogEvent{
		Message:   aws.String(string(p)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	}
	c.mu.Lock()
	c.pending = append(c.pending, event)
	full := len(c.pending) >= c.maxBatch
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

func (c *CloudWatchLogsClient) run() {
	defer close(c.stopped)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-c.kick:
		case <-c.done:
			c.flush()
			return
		}
		c.flush()
	}
}

func (c *CloudWatchLogsClient) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for len(batch) > 0 {
		n := min(len(batch), c.maxBatch)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(c.group),
			LogStreamName: aws.String(c.stream),
			LogEvents:     batch[:n],
		})
		cancel()
		if err != nil {
			// the logger itself writes here, so report out of band
			fmt.Fprintf(os.Stderr, "cloudwatch logs: dropped %d events: %v\n", n, err)
		}
		batch = batch[n:]
	}
}

// Close flushes queued lines and stops the background shipper.
func (c *CloudWatchLogsClient) Close(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	c.closeOnce.Do(func() { close(c.done) })
	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsEnabled returns whether CloudWatch logging is enabled
func (c *CloudWatchLogsClient) IsEnabled() bool {
	return c.enabled
}
