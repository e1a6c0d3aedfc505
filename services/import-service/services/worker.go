package services

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/repository"
)

// EventImportCompleted is published once per finished async job.
const EventImportCompleted = "import.completed"

// EventPublisher is satisfied by the SNS client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, payload interface{}) error
}

// BulkImportWorker runs queued imports. history, events and metrics are optional.
type BulkImportWorker struct {
	svc      *ImportService
	jobs     repository.JobStore
	sources  repository.SourceStore
	history  repository.HistoryRepo
	events   EventPublisher
	topicArn string
	metrics  MetricsRecorder
}

type WorkerDeps struct {
	Jobs     repository.JobStore
	Sources  repository.SourceStore
	History  repository.HistoryRepo
	Events   EventPublisher
	TopicArn string
	Metrics  MetricsRecorder
}

func NewBulkImportWorker(svc *ImportService, deps WorkerDeps) *BulkImportWorker {
	return &BulkImportWorker{
		svc:      svc,
		jobs:     deps.Jobs,
		sources:  deps.Sources,
		history:  deps.History,
		events:   deps.Events,
		topicArn: deps.TopicArn,
		metrics:  deps.Metrics,
	}
}

// StartBulkImportWorker consumes job IDs from queue and processes them one at
// a time. It blocks until ctx is cancelled.
func StartBulkImportWorker(ctx context.Context, queue repository.JobQueue, w *BulkImportWorker) error {
	if queue == nil || w == nil {
		zap.L().Warn("bulk import worker not started: missing dependencies")
		return nil
	}
	zap.L().Info("bulk import worker started")
	err := queue.Consume(ctx, w.Handle)
	zap.L().Info("bulk import worker stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle runs a single queued job to completion.
func (w *BulkImportWorker) Handle(ctx context.Context, jobID string) error {
	job, err := w.jobs.Get(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		// metadata expired before the job was reached
		zap.L().Warn("bulk import job metadata missing", zap.String("job", jobID))
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status == models.JobDone || job.Status == models.JobFailed {
		zap.L().Info("bulk import job already finished", zap.String("job", jobID), zap.String("status", string(job.Status)))
		return nil
	}

	job.Status = models.JobProcessing
	w.save(ctx, job)

	data, err := w.sources.Get(ctx, job.SourceKey)
	if err != nil {
		w.finish(ctx, job, err)
		return nil
	}

	req := ImportRequest{
		Kind:          job.Kind,
		ProjectRef:    job.ProjectRef,
		SubprojectRef: job.SubprojectRef,
		DryRun:        job.DryRun,
	}
	progress := func(o models.UploadOutcome) {
		job.Outcome = &o
		w.save(ctx, job)
	}

	outcome, err := w.svc.Import(ctx, req, job.FileName, bytes.NewReader(data), progress)
	if err == nil {
		job.Outcome = outcome
	}
	w.finish(ctx, job, err)
	return nil
}

// finish records the terminal state and runs the post-job side effects. It
// uses a detached context so a shutdown mid-job still leaves a final record.
func (w *BulkImportWorker) finish(ctx context.Context, job *models.ImportJob, runErr error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if runErr != nil {
		job.Status = models.JobFailed
		job.Error = runErr.Error()
		zap.L().Error("bulk import processing failed", zap.String("job", job.ID), zap.Error(runErr))
		if w.metrics != nil {
			if err := w.metrics.RecordValue(fctx, pkgaws.MetricImportJobsFailed, 1, map[string]string{"Kind": string(job.Kind)}); err != nil {
				zap.L().Warn("failed to record import metric", zap.Error(err))
			}
		}
	} else {
		job.Status = models.JobDone
	}
	w.save(fctx, job)

	if err := w.sources.Delete(fctx, job.SourceKey); err != nil {
		zap.L().Warn("failed to remove stored upload", zap.String("job", job.ID), zap.Error(err))
	}

	entry := models.NewHistoryEntry(job)
	if w.history != nil {
		if err := w.history.Save(fctx, entry); err != nil {
			zap.L().Error("failed to save import history", zap.String("job", job.ID), zap.Error(err))
		}
	}
	if w.events != nil && w.topicArn != "" {
		if err := w.events.PublishEvent(fctx, w.topicArn, EventImportCompleted, entry); err != nil {
			zap.L().Error("failed to publish import event", zap.String("job", job.ID), zap.Error(err))
		}
	}
}

func (w *BulkImportWorker) save(ctx context.Context, job *models.ImportJob) {
	if err := w.jobs.Save(ctx, job); err != nil {
		zap.L().Error("failed to update job metadata", zap.String("job", job.ID), zap.Error(err))
	}
}
