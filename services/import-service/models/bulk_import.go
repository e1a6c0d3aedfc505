package models

import (
	"fmt"
	"time"
)

// ImportKind selects which entity a bulk upload creates.
type ImportKind string

const (
	KindActivities ImportKind = "activities"
	KindLabours    ImportKind = "labours"
)

// ParseImportKind accepts the URL/CLI spelling of an import kind.
func ParseImportKind(s string) (ImportKind, error) {
	switch ImportKind(s) {
	case KindActivities, "activity":
		return KindActivities, nil
	case KindLabours, "labour", "labors", "labor":
		return KindLabours, nil
	}
	return "", fmt.Errorf("unknown import kind %q", s)
}

// RowStatus tracks a single row through the submission loop.
type RowStatus string

const (
	RowPending   RowStatus = "pending"
	RowResolving RowStatus = "resolving"
	RowSubmitted RowStatus = "submitted"
	RowRetrying  RowStatus = "retrying"

	RowSucceeded        RowStatus = "succeeded"
	RowSkippedInvalid   RowStatus = "skipped_invalid"
	RowFailedUnresolved RowStatus = "failed_unresolved"
	RowFailedAPI        RowStatus = "failed_api"
	RowFailedFinal      RowStatus = "failed_final"
)

// Terminal reports whether no further transition is possible.
func (s RowStatus) Terminal() bool {
	switch s {
	case RowSucceeded, RowSkippedInvalid, RowFailedUnresolved, RowFailedAPI, RowFailedFinal:
		return true
	}
	return false
}

// RowResult is the outcome of one spreadsheet row.
type RowResult struct {
	Row       int       `json:"row"`
	Name      string    `json:"name"`
	Status    RowStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedID int64     `json:"created_id,omitempty"`
	Attempts  int       `json:"attempts"`
}

// LogLine renders the row the way the upload log shows it.
func (r RowResult) LogLine() string {
	if r.Status == RowSucceeded {
		return fmt.Sprintf("Row %d (%s): Success", r.Row, r.Name)
	}
	return fmt.Sprintf("Row %d (%s): Failed - %s", r.Row, r.Name, r.Message)
}

// UploadOutcome is the running tally of an import. It is append-only.
type UploadOutcome struct {
	Success    int         `json:"success"`
	Failed     int         `json:"failed"`
	Total      int         `json:"total"`
	Log        []string    `json:"log"`
	Rows       []RowResult `json:"rows"`
	DryRun     bool        `json:"dry_run,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// NewUploadOutcome starts a tally for total data rows.
func NewUploadOutcome(total int) *UploadOutcome {
	return &UploadOutcome{
		Total:     total,
		Log:       make([]string, 0, total),
		Rows:      make([]RowResult, 0, total),
		StartedAt: time.Now().UTC(),
	}
}

// Record appends a terminal row result.
func (o *UploadOutcome) Record(r RowResult) {
	if r.Status == RowSucceeded {
		o.Success++
	} else {
		o.Failed++
	}
	o.Rows = append(o.Rows, r)
	o.Log = append(o.Log, r.LogLine())
}

// Processed is the number of rows with a terminal result so far.
func (o *UploadOutcome) Processed() int {
	return o.Success + o.Failed
}

// Finish stamps the completion time.
func (o *UploadOutcome) Finish() {
	now := time.Now().UTC()
	o.FinishedAt = &now
}

// Snapshot copies the outcome so it can be handed to another goroutine.
func (o *UploadOutcome) Snapshot() UploadOutcome {
	cp := *o
	cp.Log = append([]string(nil), o.Log...)
	cp.Rows = append([]RowResult(nil), o.Rows...)
	return cp
}
