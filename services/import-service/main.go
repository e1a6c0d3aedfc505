package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
	pkgdynamo "github.com/yashrajoria/construction-backend/pkg/dynamodb"
	"github.com/yashrajoria/construction-backend/services/common/auth"
	apperrors "github.com/yashrajoria/construction-backend/services/common/errors"
	"github.com/yashrajoria/construction-backend/services/common/logger"
	commonmw "github.com/yashrajoria/construction-backend/services/common/middleware"
	"github.com/yashrajoria/construction-backend/services/import-service/clients"
	"github.com/yashrajoria/construction-backend/services/import-service/controllers"
	"github.com/yashrajoria/construction-backend/services/import-service/database"
	authmw "github.com/yashrajoria/construction-backend/services/import-service/middleware"
	"github.com/yashrajoria/construction-backend/services/import-service/repository"
	"github.com/yashrajoria/construction-backend/services/import-service/routes"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
)

const serviceName = "import-service"

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	flush := logger.Initialize(logger.Options{Env: os.Getenv("ENV"), File: os.Getenv("LOG_FILE")})
	defer func() { flush() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	auth.Configure(cfg.JWTSecret)

	var cwLogs *pkgaws.CloudWatchLogsClient
	if cfg.CloudWatchEnabled {
		cw, err := pkgaws.NewCloudWatchLogsClient(ctx, serviceName)
		if err != nil {
			zap.L().Warn("CloudWatch logs unavailable", zap.Error(err))
		} else {
			cwLogs = cw
			flush()
			flush = logger.Initialize(logger.Options{Env: cfg.Env, File: cfg.LogFile, CloudWatch: cw})
		}
	}

	// --- 1. Infrastructure ---

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zap.L().Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		redisOpts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	rdb := redis.NewClient(redisOpts)
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("Redis not reachable at startup", zap.String("addr", redisOpts.Addr), zap.Error(err))
	}
	cancelPing()

	var awsCfg sdkaws.Config
	if cfg.needsAWS() {
		awsCfg, err = pkgaws.LoadAWSConfig(ctx)
		if err != nil {
			zap.L().Fatal("Failed to load AWS config", zap.Error(err))
		}
	}

	var metrics services.MetricsRecorder
	metricsClient, err := pkgaws.NewMetricsClient(ctx)
	if err != nil {
		zap.L().Warn("CloudWatch metrics unavailable", zap.Error(err))
	} else if metricsClient.IsEnabled() {
		metrics = metricsClient
	}

	// --- 2. Dependency Injection ---

	site := clients.NewSiteClient(cfg.SiteAPIURL, cfg.SiteAPIToken, cfg.SiteAPITimeout)
	importService := services.NewImportService(site, cfg.ActivityLoop, cfg.LabourLoop, metrics)

	jobs := repository.NewRedisJobStore(rdb)

	var queue repository.JobQueue
	switch cfg.QueueBackend {
	case BackendSQS:
		queue = repository.NewSQSJobQueue(pkgaws.NewSQSQueue(awsCfg, cfg.SQSQueueURL))
	default:
		queue = repository.NewRedisJobQueue(rdb)
	}

	var sources repository.SourceStore
	switch cfg.StorageBackend {
	case BackendS3:
		sources = repository.NewS3SourceStore(pkgaws.NewS3ObjectStore(pkgaws.NewS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix))
	default:
		disk, err := repository.NewDiskSourceStore(cfg.StorageDir)
		if err != nil {
			zap.L().Fatal("Failed to prepare upload storage", zap.Error(err))
		}
		sources = disk
	}

	history := buildHistory(ctx, cfg, awsCfg)
	if history != nil {
		history = repository.NewCachedHistoryRepo(history, rdb)
	}

	workerDeps := services.WorkerDeps{
		Jobs:    jobs,
		Sources: sources,
		History: history,
		Metrics: metrics,
	}
	if cfg.EventsTopicARN != "" {
		workerDeps.Events = pkgaws.NewSNSClient(awsCfg)
		workerDeps.TopicArn = cfg.EventsTopicARN
	}
	worker := services.NewBulkImportWorker(importService, workerDeps)

	handler := controllers.NewBulkImportHandler(importService, controllers.NewRequestValidator(cfg.MaxUploadBytes), controllers.HandlerDeps{
		Jobs:        jobs,
		Queue:       queue,
		Sources:     sources,
		History:     history,
		Metrics:     metrics,
		SyncTimeout: cfg.SyncTimeout,
	})

	// --- 3. HTTP Server & Middleware ---

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(zap.L()))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware())
	r.Use(commonmw.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, handler, authmw.JWTAuth())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- 4. Run until signalled ---

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("Import Service starting", zap.String("port", cfg.Port), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return services.StartBulkImportWorker(gctx, queue, worker)
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutting down Import Service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("Import Service stopped with error", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		zap.L().Error("Failed to close Redis", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		zap.L().Error("Failed to close MongoDB", zap.Error(err))
	}
	zap.L().Info("Import Service stopped gracefully")
	if cwLogs != nil {
		flush()
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = cwLogs.Close(closeCtx)
		cancel()
	}
}

// buildHistory returns nil when history is disabled or its backend cannot
// be reached; imports still run without it.
func buildHistory(ctx context.Context, cfg *Config, awsCfg sdkaws.Config) repository.HistoryRepo {
	switch cfg.HistoryBackend {
	case BackendDynamoDB:
		client := pkgdynamo.NewClientFromConfig(awsCfg)
		tctx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()
		if err := pkgdynamo.EnsureTable(tctx, client, cfg.HistoryTable, repository.HistoryHashKey); err != nil {
			zap.L().Warn("Failed to ensure history table", zap.String("table", cfg.HistoryTable), zap.Error(err))
		}
		return repository.NewDynamoHistoryRepo(client, cfg.HistoryTable)
	case BackendMongo:
		if err := database.ConnectWithConfig(cfg.MongoURL, cfg.MongoDBName); err != nil {
			zap.L().Error("Import history disabled", zap.Error(err))
			return nil
		}
		repo := repository.NewMongoHistoryRepo(database.DB)
		if err := repo.EnsureIndexes(ctx); err != nil {
			zap.L().Warn("Failed to ensure history indexes", zap.Error(err))
		}
		return repo
	}
	return nil
}

func (c *Config) needsAWS() bool {
	return c.QueueBackend == BackendSQS ||
		c.StorageBackend == BackendS3 ||
		c.HistoryBackend == BackendDynamoDB ||
		c.EventsTopicARN != ""
}
