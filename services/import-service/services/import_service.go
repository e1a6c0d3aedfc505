package services

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
	"github.com/yashrajoria/construction-backend/services/import-service/clients"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// ImportRequest selects what an upload creates and where.
type ImportRequest struct {
	Kind          models.ImportKind `validate:"required,oneof=activities labours"`
	ProjectRef    string            `validate:"required"`
	SubprojectRef string
	DryRun        bool
	// AuthToken is forwarded to the site backend when set.
	AuthToken string
}

// ImportService runs bulk uploads against the site backend.
type ImportService struct {
	api      SiteAPI
	loops    map[models.ImportKind]LoopConfig
	metrics  MetricsRecorder
	validate *validator.Validate
}

func NewImportService(api SiteAPI, activityLoop, labourLoop LoopConfig, metrics MetricsRecorder) *ImportService {
	return &ImportService{
		api: api,
		loops: map[models.ImportKind]LoopConfig{
			models.KindActivities: activityLoop,
			models.KindLabours:    labourLoop,
		},
		metrics:  metrics,
		validate: validator.New(),
	}
}

func (s *ImportService) ImportActivities(ctx context.Context, req ImportRequest, filename string, r io.Reader, onProgress func(models.UploadOutcome)) (*models.UploadOutcome, error) {
	req.Kind = models.KindActivities
	return s.Import(ctx, req, filename, r, onProgress)
}

func (s *ImportService) ImportLabours(ctx context.Context, req ImportRequest, filename string, r io.Reader, onProgress func(models.UploadOutcome)) (*models.UploadOutcome, error) {
	req.Kind = models.KindLabours
	return s.Import(ctx, req, filename, r, onProgress)
}

// ValidateImport runs the whole pipeline without creating anything.
func (s *ImportService) ValidateImport(ctx context.Context, req ImportRequest, filename string, r io.Reader) (*models.UploadOutcome, error) {
	req.DryRun = true
	return s.Import(ctx, req, filename, r, nil)
}

// Import parses the upload, maps its headers, resolves the selected project
// and submits every row. Errors are returned only for failures that abort the
// run before any row is processed.
func (s *ImportService) Import(ctx context.Context, req ImportRequest, filename string, r io.Reader, onProgress func(models.UploadOutcome)) (*models.UploadOutcome, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid import request: %w", err)
	}

	table, err := sheet.Parse(filename, r)
	if err != nil {
		return nil, err
	}

	var schema HeaderSchema
	switch req.Kind {
	case models.KindActivities:
		schema, err = MapActivityHeaders(table.Header())
	default:
		schema, err = MapLabourHeaders(table.Header())
	}
	if err != nil {
		return nil, err
	}

	ctx = clients.WithToken(ctx, req.AuthToken)
	api := s.api
	if req.DryRun {
		api = newDryRunAPI(s.api)
	}

	resolver, err := NewResolver(ctx, api, req.ProjectRef, req.SubprojectRef)
	if err != nil {
		return nil, err
	}

	var proc rowProcessor
	if req.Kind == models.KindActivities {
		proc = &activityRows{api: api, res: resolver, schema: schema, validate: s.validate}
	} else {
		proc = &labourRows{api: api, res: resolver, schema: schema, validate: s.validate}
	}

	data := table.DataRows()
	rows := make([]rowJob, len(data))
	for i, cells := range data {
		// header is row 1
		rows[i] = rowJob{Number: i + 2, Cells: cells}
	}

	zap.L().Info("bulk import started",
		zap.String("kind", string(req.Kind)),
		zap.String("file", filename),
		zap.String("project", resolver.Project().Name),
		zap.Int("rows", len(rows)),
		zap.Bool("dry_run", req.DryRun),
	)

	cfg := s.loops[req.Kind]
	if req.DryRun {
		// nothing reaches the backend, so there is nothing to pace
		cfg.RowDelay, cfg.BatchPause = 0, 0
	}
	loop := NewSubmissionLoop(cfg, onProgress)
	outcome := loop.Run(ctx, rows, proc)
	outcome.DryRun = req.DryRun

	zap.L().Info("bulk import finished",
		zap.String("kind", string(req.Kind)),
		zap.String("file", filename),
		zap.Int("success", outcome.Success),
		zap.Int("failed", outcome.Failed),
		zap.Int("total", outcome.Total),
	)
	s.recordMetrics(ctx, req, outcome)
	return outcome, nil
}

func (s *ImportService) recordMetrics(ctx context.Context, req ImportRequest, o *models.UploadOutcome) {
	if s.metrics == nil || req.DryRun {
		return
	}
	// the request context may already be cancelled
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	dims := map[string]string{"Kind": string(req.Kind)}
	if err := s.metrics.RecordValue(mctx, pkgaws.MetricImportRowsSucceeded, float64(o.Success), dims); err != nil {
		zap.L().Warn("failed to record import metric", zap.String("metric", pkgaws.MetricImportRowsSucceeded), zap.Error(err))
	}
	if err := s.metrics.RecordValue(mctx, pkgaws.MetricImportRowsFailed, float64(o.Failed), dims); err != nil {
		zap.L().Warn("failed to record import metric", zap.String("metric", pkgaws.MetricImportRowsFailed), zap.Error(err))
	}
	if o.FinishedAt != nil {
		if err := s.metrics.RecordLatency(mctx, pkgaws.MetricImportDuration, o.FinishedAt.Sub(o.StartedAt), dims); err != nil {
			zap.L().Warn("failed to record import metric", zap.String("metric", pkgaws.MetricImportDuration), zap.Error(err))
		}
	}
}

// dryRunAPI reads through to the backend but never creates anything. Created
// IDs are negative so later rows can still resolve against them.
type dryRunAPI struct {
	SiteAPI
	next int64
}

func newDryRunAPI(api SiteAPI) *dryRunAPI {
	return &dryRunAPI{SiteAPI: api}
}

func (d *dryRunAPI) fakeID() int64 {
	return -atomic.AddInt64(&d.next, 1)
}

func (d *dryRunAPI) CreateActivity(_ context.Context, req models.ActivityCreateRequest) (*models.Created, error) {
	return &models.Created{ID: d.fakeID(), Name: req.Name}, nil
}

func (d *dryRunAPI) CreateLabour(_ context.Context, req models.LabourCreateRequest) (*models.Created, error) {
	return &models.Created{ID: d.fakeID(), Name: req.Name}, nil
}
