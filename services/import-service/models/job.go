package models

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// ImportJob is the persisted state of an asynchronous upload.
type ImportJob struct {
	ID            string         `json:"id"`
	Kind          ImportKind     `json:"kind"`
	Status        JobStatus      `json:"status"`
	ProjectRef    string         `json:"project"`
	SubprojectRef string         `json:"subproject,omitempty"`
	FileName      string         `json:"file_name"`
	SourceKey     string         `json:"source_key"`
	DryRun        bool           `json:"dry_run,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	Outcome       *UploadOutcome `json:"outcome,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HistoryEntry is the summary kept after a job finishes.
type HistoryEntry struct {
	JobID      string     `json:"job_id" bson:"_id"`
	Kind       ImportKind `json:"kind" bson:"kind"`
	ProjectRef string     `json:"project" bson:"project"`
	FileName   string     `json:"file_name" bson:"file_name"`
	Status     JobStatus  `json:"status" bson:"status"`
	Success    int        `json:"success" bson:"success"`
	Failed     int        `json:"failed" bson:"failed"`
	Total      int        `json:"total" bson:"total"`
	UserID     string     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Error      string     `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	FinishedAt time.Time  `json:"finished_at" bson:"finished_at"`
}

// NewHistoryEntry summarises a finished job.
func NewHistoryEntry(job *ImportJob) HistoryEntry {
	h := HistoryEntry{
		JobID:      job.ID,
		Kind:       job.Kind,
		ProjectRef: job.ProjectRef,
		FileName:   job.FileName,
		Status:     job.Status,
		UserID:     job.UserID,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.UpdatedAt,
	}
	if job.Outcome != nil {
		h.Success = job.Outcome.Success
		h.Failed = job.Outcome.Failed
		h.Total = job.Outcome.Total
	}
	return h
}
