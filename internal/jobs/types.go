package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/narrative"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Jobs are never retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before it finished.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrQueueClosed = errors.New("queue is closed")
	ErrCancelled   = errors.New("cancelled by user")
)

// NarrativeJob generates the narrative and report for one dashboard state.
// Prompt and Summary are snapshots taken when the job is created and are
// never modified afterwards.
type NarrativeJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SessionID is the upload session the snapshot was taken from.
	SessionID string `json:"session_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains the failure reason if the job failed or was cancelled.
	Error string `json:"error,omitempty"`

	Narrative string `json:"narrative,omitempty"`

	// Report is the assembled markdown document.
	Report string `json:"-"`

	// ReportURI is set when the report was also exported to object storage.
	ReportURI string `json:"report_uri,omitempty"`

	Prompt  narrative.Prompt  `json:"-"`
	Summary *analysis.Summary `json:"-"`
}

// HasReport reports whether a downloadable report is available.
func (j *NarrativeJob) HasReport() bool {
	return j.Status == JobStatusCompleted && j.Report != ""
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishNarrative enqueues a narrative job.
	PublishNarrative(ctx context.Context, job *NarrativeJob) error

	// Cancel stops a pending or running job.
	Cancel(ctx context.Context, jobID string) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job, filling in its results. A returned error marks
// the job failed; it is not retried.
type JobHandler func(ctx context.Context, job *NarrativeJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *NarrativeJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*NarrativeJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*NarrativeJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SessionID filters jobs by upload session.
	SessionID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
