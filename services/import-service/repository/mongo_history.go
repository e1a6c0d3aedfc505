package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

type MongoHistoryRepo struct {
	collection *mongo.Collection
}

func NewMongoHistoryRepo(db *mongo.Database) *MongoHistoryRepo {
	return &MongoHistoryRepo{collection: db.Collection("import_history")}
}

// Save upserts by job ID so a redelivered job does not duplicate its entry.
func (r *MongoHistoryRepo) Save(ctx context.Context, entry models.HistoryEntry) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": entry.JobID}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (r *MongoHistoryRepo) List(ctx context.Context, project string, limit int) ([]models.HistoryEntry, error) {
	filter := bson.M{}
	if project != "" {
		filter["project"] = project
	}
	opts := options.Find().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EnsureIndexes creates the listing index.
func (r *MongoHistoryRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project", Value: 1}, {Key: "finished_at", Value: -1}},
	})
	return err
}
