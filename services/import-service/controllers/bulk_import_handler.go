package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
	apperrors "github.com/yashrajoria/construction-backend/services/common/errors"
	"github.com/yashrajoria/construction-backend/services/import-service/clients"
	"github.com/yashrajoria/construction-backend/services/import-service/middleware"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/repository"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

// HandlerDeps are the optional collaborators of BulkImportHandler. Without
// Jobs, Queue and Sources async imports are refused; without History the
// history listing is.
type HandlerDeps struct {
	Jobs        repository.JobStore
	Queue       repository.JobQueue
	Sources     repository.SourceStore
	History     repository.HistoryRepo
	Metrics     services.MetricsRecorder
	SyncTimeout time.Duration
}

// BulkImportHandler serves activity and labour uploads.
type BulkImportHandler struct {
	imports     ImportRunner
	validator   *RequestValidator
	jobs        repository.JobStore
	queue       repository.JobQueue
	sources     repository.SourceStore
	history     repository.HistoryRepo
	metrics     services.MetricsRecorder
	syncTimeout time.Duration
}

func NewBulkImportHandler(imports ImportRunner, validator *RequestValidator, deps HandlerDeps) *BulkImportHandler {
	if deps.SyncTimeout <= 0 {
		deps.SyncTimeout = DefaultSyncTimeout
	}
	return &BulkImportHandler{
		imports:     imports,
		validator:   validator,
		jobs:        deps.Jobs,
		queue:       deps.Queue,
		sources:     deps.Sources,
		history:     deps.History,
		metrics:     deps.Metrics,
		syncTimeout: deps.SyncTimeout,
	}
}

// upload is a validated import request with its file still unopened.
type upload struct {
	req  services.ImportRequest
	file *multipart.FileHeader
}

func (h *BulkImportHandler) parseUpload(c *gin.Context) (*upload, error) {
	kind, err := h.validator.ParseKind(c)
	if err != nil {
		return nil, err
	}
	form, err := h.validator.ParseImportForm(c)
	if err != nil {
		return nil, err
	}
	file, err := h.validator.UploadedFile(c)
	if err != nil {
		return nil, err
	}
	dryRun, err := h.validator.QueryBool(c, "dry_run")
	if err != nil {
		return nil, err
	}
	return &upload{
		req: services.ImportRequest{
			Kind:          kind,
			ProjectRef:    form.Project,
			SubprojectRef: form.Subproject,
			DryRun:        dryRun,
			AuthToken:     middleware.Token(c),
		},
		file: file,
	}, nil
}

// Import runs an upload. With ?async=true the file is queued and 202 is
// returned with the job ID.
func (h *BulkImportHandler) Import(c *gin.Context) {
	up, err := h.parseUpload(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	async, err := h.validator.QueryBool(c, "async")
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	fh, err := up.file.Open()
	if err != nil {
		apperrors.Respond(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer fh.Close()

	if async {
		h.handleAsyncImport(c, up, fh)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncTimeout)
	defer cancel()

	outcome, err := h.imports.Import(ctx, up.req, up.file.Filename, fh, nil)
	if err != nil {
		zap.L().Warn("bulk import rejected", zap.String("kind", string(up.req.Kind)), zap.String("file", up.file.Filename), zap.Error(err))
		apperrors.Respond(c, importError(err))
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Validate runs an upload as a dry run and returns what would happen.
func (h *BulkImportHandler) Validate(c *gin.Context) {
	up, err := h.parseUpload(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	fh, err := up.file.Open()
	if err != nil {
		apperrors.Respond(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer fh.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultValidateTimeout)
	defer cancel()

	outcome, err := h.imports.ValidateImport(ctx, up.req, up.file.Filename, fh)
	if err != nil {
		apperrors.Respond(c, importError(err))
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Template downloads an example sheet for the kind.
func (h *BulkImportHandler) Template(c *gin.Context) {
	kind, err := h.validator.ParseKind(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(sheet.FormatXLSX))))
	data, filename, contentType, err := services.RenderTemplate(kind, format)
	if err != nil {
		apperrors.Respond(c, importError(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

// GetJobStatus returns the stored state of an async import.
func (h *BulkImportHandler) GetJobStatus(c *gin.Context) {
	if h.jobs == nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("async imports are disabled")))
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrBadRequest, errors.New("invalid job ID")))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultStatusTimeout)
	defer cancel()

	job, err := h.jobs.Get(ctx, id)
	if errors.Is(err, repository.ErrJobNotFound) {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrNotFound, errors.New("job not found")))
		return
	}
	if err != nil {
		zap.L().Error("Failed to get job status", zap.String("job", id), zap.Error(err))
		apperrors.Respond(c, err)
		return
	}
	// other users' jobs are reported as missing
	if uid := middleware.UserID(c); job.UserID != "" && uid != "" && job.UserID != uid {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrNotFound, errors.New("job not found")))
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListHistory returns finished jobs, newest first, optionally for one project.
func (h *BulkImportHandler) ListHistory(c *gin.Context) {
	if h.history == nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("import history is disabled")))
		return
	}
	limit, err := h.validator.ParseLimit(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultStatusTimeout)
	defer cancel()

	entries, err := h.history.List(ctx, strings.TrimSpace(c.Query("project")), limit)
	if err != nil {
		zap.L().Error("Failed to list import history", zap.Error(err))
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

func (h *BulkImportHandler) handleAsyncImport(c *gin.Context, up *upload, r io.Reader) {
	if h.jobs == nil || h.queue == nil || h.sources == nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("async imports are disabled")))
		return
	}
	data, err := io.ReadAll(r)
	if err != nil {
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrBadRequest, fmt.Errorf("failed to read file: %w", err)))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultStatusTimeout*2)
	defer cancel()

	job, err := h.enqueueJob(ctx, up, middleware.UserID(c), data)
	if err != nil {
		zap.L().Error("Failed to enqueue async bulk import", zap.Error(err))
		apperrors.Respond(c, apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("failed to queue import job")))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Import queued for processing",
	})
}

func (h *BulkImportHandler) enqueueJob(ctx context.Context, up *upload, userID string, data []byte) (*models.ImportJob, error) {
	jobID := uuid.New().String()
	key, err := h.sources.Put(ctx, jobID, up.file.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to persist file: %w", err)
	}

	job := &models.ImportJob{
		ID:            jobID,
		Kind:          up.req.Kind,
		Status:        models.JobPending,
		ProjectRef:    up.req.ProjectRef,
		SubprojectRef: up.req.SubprojectRef,
		FileName:      up.file.Filename,
		SourceKey:     key,
		DryRun:        up.req.DryRun,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.jobs.Save(ctx, job); err != nil {
		h.discardSource(ctx, key)
		return nil, fmt.Errorf("failed to store job metadata: %w", err)
	}
	if err := h.queue.Enqueue(ctx, jobID); err != nil {
		h.discardSource(ctx, key)
		if derr := h.jobs.Delete(ctx, jobID); derr != nil {
			zap.L().Warn("failed to remove orphaned job", zap.String("job", jobID), zap.Error(derr))
		}
		return nil, err
	}

	if h.metrics != nil {
		if err := h.metrics.RecordValue(ctx, pkgaws.MetricImportJobsQueued, 1, map[string]string{"Kind": string(job.Kind)}); err != nil {
			zap.L().Warn("failed to record import metric", zap.Error(err))
		}
	}
	zap.L().Info("Bulk import job queued", zap.String("job", jobID), zap.String("kind", string(job.Kind)))
	return job, nil
}

func (h *BulkImportHandler) discardSource(ctx context.Context, key string) {
	if err := h.sources.Delete(ctx, key); err != nil {
		zap.L().Warn("failed to remove stored upload", zap.String("key", key), zap.Error(err))
	}
}

// importError maps run-aborting import failures onto HTTP errors.
func importError(err error) error {
	var (
		appErr    *apperrors.Error
		schemaErr *services.SchemaError
		apiErr    *clients.APIError
		valErrs   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sheet.ErrUnsupportedFile):
		return apperrors.Wrap(apperrors.ErrUnsupportedMedia, err)
	case errors.Is(err, sheet.ErrFileRead), errors.Is(err, sheet.ErrEmptyFile):
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	case errors.As(err, &schemaErr):
		return apperrors.Wrap(apperrors.ErrBadRequest, err).WithDetails(gin.H{
			"missing":     schemaErr.Missing,
			"suggestions": schemaErr.Suggestions,
		})
	case errors.Is(err, services.ErrProjectUnresolved), errors.Is(err, services.ErrSubprojectUnresolved):
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	case errors.As(err, &valErrs):
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	case errors.As(err, &apiErr):
		return apperrors.Wrap(apperrors.ErrUpstream, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("import timed out"))
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
