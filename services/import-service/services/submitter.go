package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yashrajoria/construction-backend/services/import-service/clients"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

const cancelledMessage = "import cancelled"

// LoopConfig paces the submission loop.
type LoopConfig struct {
	// RowDelay is the minimum gap between rows; zero means no pacing.
	RowDelay   time.Duration
	BatchSize  int
	BatchPause time.Duration
	// RetryDelay is the wait before the single retry of a rate-limited row.
	RetryDelay time.Duration
}

// DefaultActivityLoop and DefaultLabourLoop match the pacing the site backend tolerates.
var (
	DefaultActivityLoop = LoopConfig{RowDelay: 800 * time.Millisecond, BatchSize: 20, BatchPause: 2 * time.Second, RetryDelay: 30 * time.Second}
	DefaultLabourLoop   = LoopConfig{RowDelay: 0, BatchSize: 50, BatchPause: 2 * time.Second, RetryDelay: 30 * time.Second}
)

// SubmissionLoop feeds rows through a channel to a single worker that
// submits them one at a time.
type SubmissionLoop struct {
	cfg        LoopConfig
	sleep      func(ctx context.Context, d time.Duration) error
	onProgress func(models.UploadOutcome)
}

func NewSubmissionLoop(cfg LoopConfig, onProgress func(models.UploadOutcome)) *SubmissionLoop {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &SubmissionLoop{cfg: cfg, sleep: sleepCtx, onProgress: onProgress}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *SubmissionLoop) limiter() *rate.Limiter {
	if l.cfg.RowDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(l.cfg.RowDelay), 1)
}

func (l *SubmissionLoop) progress(out *models.UploadOutcome) {
	if l.onProgress != nil {
		l.onProgress(out.Snapshot())
	}
}

// Run processes every row and returns the tally. success+failed always
// equals the number of rows: rows not reached before ctx ends are recorded
// as cancelled.
func (l *SubmissionLoop) Run(ctx context.Context, rows []rowJob, proc rowProcessor) *models.UploadOutcome {
	out := models.NewUploadOutcome(len(rows))
	queue := make(chan rowJob)

	var g errgroup.Group
	g.Go(func() error {
		defer close(queue)
		for _, r := range rows {
			select {
			case <-ctx.Done():
				return nil
			case queue <- r:
			}
		}
		return nil
	})
	g.Go(func() error {
		limiter := l.limiter()
		for job := range queue {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			out.Record(l.process(ctx, proc, job))

			done := out.Processed()
			if done%l.cfg.BatchSize == 0 && done < len(rows) {
				l.progress(out)
				if err := l.sleep(ctx, l.cfg.BatchPause); err != nil {
					break
				}
			}
		}
		// unblock the producer if the worker stopped early
		for range queue {
		}
		return nil
	})
	_ = g.Wait()

	for _, r := range rows[out.Processed():] {
		out.Record(models.RowResult{Row: r.Number, Name: proc.Name(r.Cells), Status: models.RowFailedFinal, Message: cancelledMessage})
	}
	out.Finish()
	l.progress(out)
	return out
}

func (l *SubmissionLoop) process(ctx context.Context, proc rowProcessor, job rowJob) models.RowResult {
	res := models.RowResult{Row: job.Number, Name: proc.Name(job.Cells), Status: models.RowResolving}

	sub, fail := proc.Prepare(ctx, job)
	if fail != nil {
		res.Status, res.Message = fail.status, fail.message
		zap.L().Debug("row not submitted", zap.Int("row", job.Number), zap.String("status", string(fail.status)), zap.String("reason", fail.message))
		return res
	}

	res.Status = models.RowSubmitted
	res.Attempts = 1
	created, err := sub.submit(ctx)
	if err != nil && clients.IsRateLimited(err) {
		res.Status = models.RowRetrying
		zap.L().Warn("row rate limited, retrying once",
			zap.Int("row", job.Number),
			zap.Duration("delay", l.cfg.RetryDelay),
		)
		if serr := l.sleep(ctx, l.cfg.RetryDelay); serr != nil {
			res.Status, res.Message = models.RowFailedFinal, cancelledMessage
			return res
		}
		res.Attempts = 2
		created, err = sub.submit(ctx)
		if err != nil {
			res.Status, res.Message = models.RowFailedFinal, clients.Message(err)
			return res
		}
	} else if err != nil {
		res.Status, res.Message = models.RowFailedAPI, clients.Message(err)
		return res
	}

	res.Status = models.RowSucceeded
	res.CreatedID = created.ID
	sub.onSuccess(created)
	return res
}
