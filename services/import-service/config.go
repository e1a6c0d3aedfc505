package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
)

// Backend selectors.
const (
	BackendRedis    = "redis"
	BackendSQS      = "sqs"
	BackendDisk     = "disk"
	BackendS3       = "s3"
	BackendDynamoDB = "dynamodb"
	BackendMongo    = "mongo"
	BackendNone     = "none"
)

// Config holds all environment variables for the import-service.
type Config struct {
	Port string
	Env  string

	JWTSecret string

	SiteAPIURL     string
	SiteAPIToken   string
	SiteAPITimeout time.Duration

	RedisURL string

	QueueBackend string
	SQSQueueURL  string

	StorageBackend string
	StorageDir     string
	S3Bucket       string
	S3Prefix       string

	HistoryBackend string
	HistoryTable   string
	MongoURL       string
	MongoDBName    string

	EventsTopicARN string

	ActivityLoop services.LoopConfig
	LabourLoop   services.LoopConfig

	MaxUploadBytes int64
	SyncTimeout    time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	LogFile           string
	CloudWatchEnabled bool
}

// LoadConfig loads environment variables into Config and validates them.
// Every problem is reported, not only the first. If AWS_USE_SECRETS=true
// secrets are read from Secrets Manager, falling back to env vars on failure.
func LoadConfig() (*Config, error) {
	var errs *multierror.Error
	dur := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	batchPause := dur("BATCH_PAUSE", services.DefaultActivityLoop.BatchPause)
	retryDelay := dur("RATE_LIMIT_RETRY_DELAY", services.DefaultActivityLoop.RetryDelay)

	cfg := &Config{
		Port:           env("PORT", "8090"),
		Env:            env("ENV", "development"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SiteAPIURL:     strings.TrimRight(os.Getenv("SITE_API_URL"), "/"),
		SiteAPIToken:   os.Getenv("SITE_API_TOKEN"),
		SiteAPITimeout: dur("SITE_API_TIMEOUT", 30*time.Second),
		RedisURL:       env("REDIS_URL", "redis://redis:6379"),
		QueueBackend:   strings.ToLower(env("IMPORT_QUEUE_BACKEND", BackendRedis)),
		SQSQueueURL:    os.Getenv("IMPORT_SQS_QUEUE_URL"),
		StorageBackend: strings.ToLower(env("IMPORT_STORAGE_BACKEND", BackendDisk)),
		StorageDir:     env("BULK_STORAGE_DIR", "./data/bulk_imports"),
		S3Bucket:       os.Getenv("AWS_S3_BUCKET"),
		S3Prefix:       env("AWS_S3_PREFIX", "imports/"),
		HistoryBackend: strings.ToLower(env("HISTORY_BACKEND", BackendNone)),
		HistoryTable:   env("DDB_TABLE_IMPORT_HISTORY", "ImportHistory"),
		MongoURL:       os.Getenv("MONGO_DB_URL"),
		MongoDBName:    env("MONGO_DB_NAME", "site_imports"),
		EventsTopicARN: os.Getenv("IMPORT_EVENTS_TOPIC_ARN"),
		ActivityLoop: services.LoopConfig{
			RowDelay:   dur("ACTIVITY_ROW_DELAY", services.DefaultActivityLoop.RowDelay),
			BatchSize:  num("ACTIVITY_BATCH_SIZE", services.DefaultActivityLoop.BatchSize),
			BatchPause: batchPause,
			RetryDelay: retryDelay,
		},
		LabourLoop: services.LoopConfig{
			RowDelay:   dur("LABOUR_ROW_DELAY", services.DefaultLabourLoop.RowDelay),
			BatchSize:  num("LABOUR_BATCH_SIZE", services.DefaultLabourLoop.BatchSize),
			BatchPause: batchPause,
			RetryDelay: retryDelay,
		},
		MaxUploadBytes:     int64(num("MAX_UPLOAD_MB", 20)) * 1024 * 1024,
		SyncTimeout:        dur("SYNC_IMPORT_TIMEOUT", 15*time.Minute),
		RateLimitPerMinute: num("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     num("RATE_LIMIT_BURST", 10),
		LogFile:            os.Getenv("LOG_FILE"),
		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if awsCfg, err := pkgaws.LoadAWSConfig(ctx); err == nil {
			sm := pkgaws.NewSecretsClient(awsCfg)
			cfg.JWTSecret = sm.Override(ctx, "import/JWT_SECRET", cfg.JWTSecret)
			cfg.SiteAPIToken = sm.Override(ctx, "import/SITE_API_TOKEN", cfg.SiteAPIToken)
		}
	}

	if err := cfg.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs *multierror.Error
	if c.JWTSecret == "" {
		errs = multierror.Append(errs, fmt.Errorf("JWT_SECRET is required"))
	}
	if c.SiteAPIURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("SITE_API_URL is required"))
	}

	switch c.QueueBackend {
	case BackendRedis:
	case BackendSQS:
		if c.SQSQueueURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("IMPORT_SQS_QUEUE_URL is required for the sqs queue"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("IMPORT_QUEUE_BACKEND: unknown backend %q", c.QueueBackend))
	}

	switch c.StorageBackend {
	case BackendDisk:
	case BackendS3:
		if c.S3Bucket == "" {
			errs = multierror.Append(errs, fmt.Errorf("AWS_S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("IMPORT_STORAGE_BACKEND: unknown backend %q", c.StorageBackend))
	}

	switch c.HistoryBackend {
	case BackendNone, BackendDynamoDB:
	case BackendMongo:
		if c.MongoURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("MONGO_DB_URL is required for mongo history"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("HISTORY_BACKEND: unknown backend %q", c.HistoryBackend))
	}

	if c.MaxUploadBytes <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive"))
	}
	return errs.ErrorOrNil()
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
