package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

// HistoryHashKey is the partition key of the history table.
const HistoryHashKey = "job_id"

// DynamoHistoryRepo stores history in a table keyed by job_id (string).
type DynamoHistoryRepo struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoHistoryRepo(client *dynamodb.Client, table string) *DynamoHistoryRepo {
	return &DynamoHistoryRepo{client: client, table: table}
}

type ddbHistory struct {
	JobID      string  `dynamodbav:"job_id"`
	Kind       string  `dynamodbav:"kind"`
	Project    string  `dynamodbav:"project"`
	FileName   string  `dynamodbav:"file_name"`
	Status     string  `dynamodbav:"status"`
	Success    int     `dynamodbav:"success"`
	Failed     int     `dynamodbav:"failed"`
	Total      int     `dynamodbav:"total"`
	UserID     *string `dynamodbav:"user_id,omitempty"`
	Error      *string `dynamodbav:"error,omitempty"`
	CreatedAt  string  `dynamodbav:"created_at"`
	FinishedAt string  `dynamodbav:"finished_at"`
}

func toDDBHistory(e models.HistoryEntry) ddbHistory {
	d := ddbHistory{
		JobID:      e.JobID,
		Kind:       string(e.Kind),
		Project:    e.ProjectRef,
		FileName:   e.FileName,
		Status:     string(e.Status),
		Success:    e.Success,
		Failed:     e.Failed,
		Total:      e.Total,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		FinishedAt: e.FinishedAt.Format(time.RFC3339),
	}
	if e.UserID != "" {
		d.UserID = &e.UserID
	}
	if e.Error != "" {
		d.Error = &e.Error
	}
	return d
}

func (d ddbHistory) entry() models.HistoryEntry {
	e := models.HistoryEntry{
		JobID:      d.JobID,
		Kind:       models.ImportKind(d.Kind),
		ProjectRef: d.Project,
		FileName:   d.FileName,
		Status:     models.JobStatus(d.Status),
		Success:    d.Success,
		Failed:     d.Failed,
		Total:      d.Total,
	}
	if d.UserID != nil {
		e.UserID = *d.UserID
	}
	if d.Error != nil {
		e.Error = *d.Error
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, d.FinishedAt); err == nil {
		e.FinishedAt = t
	}
	return e
}

func (r *DynamoHistoryRepo) Save(ctx context.Context, entry models.HistoryEntry) error {
	item, err := attributevalue.MarshalMap(toDDBHistory(entry))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &r.table, Item: item}); err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// List scans the table; history volume is one item per upload.
func (r *DynamoHistoryRepo) List(ctx context.Context, project string, limit int) ([]models.HistoryEntry, error) {
	input := &dynamodb.ScanInput{TableName: &r.table}
	if project != "" {
		filter := "#p = :p"
		input.FilterExpression = &filter
		input.ExpressionAttributeNames = map[string]string{"#p": "project"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: project},
		}
	}

	var out []models.HistoryEntry
	paginator := dynamodb.NewScanPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan page failed: %w", err)
		}
		var items []ddbHistory
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		for _, it := range items {
			out = append(out, it.entry())
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(entries []models.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FinishedAt.After(entries[j].FinishedAt)
	})
}
