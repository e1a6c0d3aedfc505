package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/construction-backend/services/import-service/clients"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

// stubRows submits every row through one shared error script.
type stubRows struct {
	mu      sync.Mutex
	errs    []error
	submits int
	invalid map[int]string
}

func (p *stubRows) Name(cells []string) string { return cells[0] }

func (p *stubRows) Prepare(_ context.Context, job rowJob) (*submission, *rowFailure) {
	if msg, ok := p.invalid[job.Number]; ok {
		return nil, invalid("%s", msg)
	}
	return &submission{
		submit: func(context.Context) (*models.Created, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.submits++
			if len(p.errs) > 0 {
				err := p.errs[0]
				p.errs = p.errs[1:]
				if err != nil {
					return nil, err
				}
			}
			return &models.Created{ID: int64(job.Number)}, nil
		},
		onSuccess: func(*models.Created) {},
	}, nil
}

func makeRows(n int) []rowJob {
	rows := make([]rowJob, n)
	for i := range rows {
		rows[i] = rowJob{Number: i + 2, Cells: []string{fmt.Sprintf("row-%d", i+1)}}
	}
	return rows
}

func newTestLoop(cfg LoopConfig, progress func(models.UploadOutcome)) (*SubmissionLoop, *recordedSleep) {
	loop := NewSubmissionLoop(cfg, progress)
	rec := &recordedSleep{}
	loop.sleep = rec.sleep
	return loop, rec
}

func TestSubmissionLoop_RetriesRateLimitOnce(t *testing.T) {
	cfg := LoopConfig{BatchSize: 20, RetryDelay: 30 * time.Second}
	loop, rec := newTestLoop(cfg, nil)
	proc := &stubRows{errs: []error{rateLimited()}}

	out := loop.Run(context.Background(), makeRows(1), proc)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, models.RowSucceeded, out.Rows[0].Status)
	assert.Equal(t, 2, out.Rows[0].Attempts)
	assert.Equal(t, 2, proc.submits)
	assert.Equal(t, []time.Duration{30 * time.Second}, rec.waits)
}

func TestSubmissionLoop_SecondRateLimitIsFinal(t *testing.T) {
	cfg := LoopConfig{BatchSize: 20, RetryDelay: time.Second}
	loop, rec := newTestLoop(cfg, nil)
	proc := &stubRows{errs: []error{rateLimited(), rateLimited(), rateLimited()}}

	out := loop.Run(context.Background(), makeRows(1), proc)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, models.RowFailedFinal, out.Rows[0].Status)
	assert.Equal(t, "Too many requests", out.Rows[0].Message)
	assert.Equal(t, 2, proc.submits, "no third attempt")
	assert.Len(t, rec.waits, 1)
	assert.Equal(t, []string{"Row 2 (row-1): Failed - Too many requests"}, out.Log)
}

func TestSubmissionLoop_OtherAPIErrorsAreNotRetried(t *testing.T) {
	loop, rec := newTestLoop(noPacing, nil)
	proc := &stubRows{errs: []error{&clients.APIError{StatusCode: 400, Message: "name already exists"}}}

	out := loop.Run(context.Background(), makeRows(2), proc)

	assert.Equal(t, 1, out.Success)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, models.RowFailedAPI, out.Rows[0].Status)
	assert.Equal(t, "name already exists", out.Rows[0].Message)
	assert.Equal(t, 2, proc.submits)
	assert.Empty(t, rec.waits)
}

func TestSubmissionLoop_TalliesEveryRow(t *testing.T) {
	loop, _ := newTestLoop(noPacing, nil)
	proc := &stubRows{
		errs:    []error{nil, errors.New("connection reset")},
		invalid: map[int]string{4: "activity name is empty"},
	}

	out := loop.Run(context.Background(), makeRows(5), proc)

	assert.Equal(t, 5, out.Total)
	assert.Equal(t, out.Total, out.Success+out.Failed)
	assert.Len(t, out.Log, 5)
	assert.Equal(t, models.RowSkippedInvalid, out.Rows[2].Status)
	assert.Equal(t, "Row 4 (row-3): Failed - activity name is empty", out.Log[2])
	assert.NotNil(t, out.FinishedAt)
	for i, r := range out.Rows {
		assert.Equal(t, i+2, r.Row, "rows keep file order")
		assert.True(t, r.Status.Terminal())
	}
}

func TestSubmissionLoop_BatchPauseAndProgress(t *testing.T) {
	var snapshots []models.UploadOutcome
	cfg := LoopConfig{BatchSize: 2, BatchPause: 2 * time.Second}
	loop, rec := newTestLoop(cfg, func(o models.UploadOutcome) { snapshots = append(snapshots, o) })

	out := loop.Run(context.Background(), makeRows(5), &stubRows{})

	assert.Equal(t, 5, out.Success)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.waits)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 2, snapshots[0].Success)
	assert.Equal(t, 4, snapshots[1].Success)
	assert.Equal(t, 5, snapshots[2].Success)
	assert.NotNil(t, snapshots[2].FinishedAt)
}

func TestSubmissionLoop_RowDelayPacesSubmissions(t *testing.T) {
	loop := NewSubmissionLoop(LoopConfig{RowDelay: 30 * time.Millisecond, BatchSize: 20}, nil)

	start := time.Now()
	out := loop.Run(context.Background(), makeRows(3), &stubRows{})

	assert.Equal(t, 3, out.Success)
	// the first row goes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestSubmissionLoop_CancellationRecordsRemainingRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop, rec := newTestLoop(LoopConfig{BatchSize: 2, BatchPause: time.Second}, nil)
	rec.cancel, rec.cancelAfter = cancel, 1

	out := loop.Run(ctx, makeRows(6), &stubRows{})

	assert.Equal(t, 6, out.Total)
	assert.Equal(t, 2, out.Success)
	assert.Equal(t, 4, out.Failed)
	assert.Equal(t, out.Total, out.Success+out.Failed)
	for _, r := range out.Rows[2:] {
		assert.Equal(t, models.RowFailedFinal, r.Status)
		assert.Equal(t, "import cancelled", r.Message)
	}
}

func TestSubmissionLoop_CancelledDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop, rec := newTestLoop(LoopConfig{BatchSize: 20, RetryDelay: time.Minute}, nil)
	rec.cancel, rec.cancelAfter = cancel, 1

	out := loop.Run(ctx, makeRows(3), &stubRows{errs: []error{rateLimited()}})

	assert.Equal(t, 3, out.Failed)
	assert.Equal(t, models.RowFailedFinal, out.Rows[0].Status)
	assert.Equal(t, "import cancelled", out.Rows[0].Message)
}
