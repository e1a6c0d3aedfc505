package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ddb "github.com/yashrajoria/construction-backend/pkg/dynamodb"
	"github.com/yashrajoria/construction-backend/services/import-service/database"
	"github.com/yashrajoria/construction-backend/services/import-service/repository"
)

// newMigrateHistoryCmd copies import history kept in MongoDB into the
// DynamoDB history table. Entries are keyed by job ID so reruns are safe.
func newMigrateHistoryCmd() *cobra.Command {
	var mongoURL, dbName, table string

	cmd := &cobra.Command{
		Use:   "migrate-history",
		Short: "Copy import history from MongoDB to DynamoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mongoURL == "" || dbName == "" {
				return errors.New("--mongo or MONGO_DB_URL is required")
			}
			ctx := cmd.Context()

			if err := database.ConnectWithConfig(mongoURL, dbName); err != nil {
				return err
			}
			defer database.Close()
			src := repository.NewMongoHistoryRepo(database.DB)

			client, err := ddb.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("aws config: %w", err)
			}
			if err := ddb.EnsureTable(ctx, client, table, repository.HistoryHashKey); err != nil {
				return err
			}
			dst := repository.NewDynamoHistoryRepo(client, table)

			entries, err := src.List(ctx, "", 0)
			if err != nil {
				return err
			}
			var migrated, failed int
			for _, e := range entries {
				if err := dst.Save(ctx, e); err != nil {
					failed++
					zap.L().Warn("failed to migrate history entry", zap.String("job_id", e.JobID), zap.Error(err))
					continue
				}
				migrated++
				if migrated%100 == 0 {
					zap.L().Info("migrating history", zap.Int("migrated", migrated))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migration complete: migrated=%d failed=%d\n", migrated, failed)
			if failed > 0 {
				return fmt.Errorf("%d history entries were not migrated", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mongoURL, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	cmd.Flags().StringVar(&dbName, "db", envOr("MONGO_DB_NAME", "site_imports"), "MongoDB database name")
	cmd.Flags().StringVar(&table, "table", envOr("DDB_TABLE_IMPORT_HISTORY", "ImportHistory"), "DynamoDB history table")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
