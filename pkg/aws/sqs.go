package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// pollErrorBackoff keeps an unreachable queue from being polled in a hot loop.
const pollErrorBackoff = 5 * time.Second

// SQSQueue sends and long-polls messages on a single queue.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	// VisibilityTimeout must exceed the longest handler run or the message is redelivered.
	VisibilityTimeout int32
}

// NewSQSQueue creates a queue client for the given queue URL
func NewSQSQueue(cfg aws.Config, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:            sqs.NewFromConfig(cfg),
		queueURL:          queueURL,
		VisibilityTimeout: 900,
	}
}

// MessageHandler is a function that processes an SQS message
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls SQS for messages and processes them one at a time with
// the handler until ctx is cancelled.
func (q *SQSQueue) StartPolling(ctx context.Context, handler MessageHandler) error {
	zap.L().Info("sqs polling started", zap.String("queue_url", q.queueURL))

	for {
		err := q.pollOnce(ctx, handler)
		if ctx.Err() != nil {
			zap.L().Info("sqs polling stopped", zap.String("queue_url", q.queueURL))
			return ctx.Err()
		}
		if err == nil {
			continue
		}
		zap.L().Error("error polling sqs", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(pollErrorBackoff):
		}
	}
}

func (q *SQSQueue) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &q.queueURL,
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     20, // long polling
		VisibilityTimeout:   q.VisibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		if err := handler(ctx, *msg.Body); err != nil {
			// redelivered after the visibility timeout
			zap.L().Error("failed to process sqs message", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
			continue
		}

		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &q.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			zap.L().Error("failed to delete sqs message", zap.Error(err))
		}
	}

	return nil
}

// SendMessage sends a single message to the queue
func (q *SQSQueue) SendMessage(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
