package repository

import (
	"context"
	"encoding/json"
	"fmt"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
)

type queueMessage struct {
	JobID string `json:"job_id"`
}

// SQSJobQueue carries job IDs over SQS. A message is deleted only after the
// handler succeeds.
type SQSJobQueue struct {
	queue *pkgaws.SQSQueue
}

func NewSQSJobQueue(queue *pkgaws.SQSQueue) *SQSJobQueue {
	return &SQSJobQueue{queue: queue}
}

func (q *SQSJobQueue) Enqueue(ctx context.Context, jobID string) error {
	body, err := json.Marshal(queueMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}
	return q.queue.SendMessage(ctx, string(body))
}

func (q *SQSJobQueue) Consume(ctx context.Context, handle JobHandler) error {
	return q.queue.StartPolling(ctx, func(ctx context.Context, body string) error {
		var msg queueMessage
		if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.JobID == "" {
			// poison message: let it age out to the DLQ
			return fmt.Errorf("invalid queue message %q", body)
		}
		return handle(ctx, msg.JobID)
	})
}
