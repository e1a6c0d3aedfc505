package aws

import (
	"context"
	"encoding/json"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// Publish publishes a raw message to the given SNS topic ARN.
func (s *SNSClient) Publish(ctx context.Context, topicArn string, message []byte) error {
	return s.publish(ctx, topicArn, message, nil)
}

// PublishEvent marshals payload and tags the message with an event_type
// attribute so subscribers can filter on it.
func (s *SNSClient) PublishEvent(ctx context.Context, topicArn, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	attrs := map[string]types.MessageAttributeValue{
		"event_type": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(eventType)},
	}
	return s.publish(ctx, topicArn, body, attrs)
}

func (s *SNSClient) publish(ctx context.Context, topicArn string, message []byte, attrs map[string]types.MessageAttributeValue) error {
	zap.L().Debug("sns publish", zap.String("topic_arn", topicArn), zap.Int("message_len", len(message)))

	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	input := &sns.PublishInput{
		TopicArn:          &topicArn,
		Message:           sdkaws.String(string(message)),
		MessageAttributes: attrs,
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}
