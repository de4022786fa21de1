package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType is the kind of indexing operation.
type JobType string

const (
	JobTypeSingleDocument JobType = "single_document"
	JobTypeBulk           JobType = "bulk"
	JobTypeIncremental    JobType = "incremental"
	JobTypeFullReindex    JobType = "full_reindex"
)

// JobStatus is the lifecycle state of an index job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether s is completed or failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ErrInvalidTransition is returned for illegal job state changes.
var ErrInvalidTransition = errors.New("invalid job status transition")

// DocumentError is a per-document failure inside a job.
type DocumentError struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Error        string       `json:"error"`
}

// IndexJob tracks one indexing operation.
type IndexJob struct {
	ID                 uuid.UUID       `json:"id"`
	JobType            JobType         `json:"job_type"`
	Status             JobStatus       `json:"status"`
	SourceService      string          `json:"source_service,omitempty"`
	DocumentsTotal     int             `json:"documents_total"`
	DocumentsProcessed int             `json:"documents_processed"`
	DocumentsFailed    int             `json:"documents_failed"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	Errors             []DocumentError `json:"errors"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// NewIndexJob creates a pending job.
func NewIndexJob(jobType JobType, source string, total int, now time.Time) *IndexJob {
	return &IndexJob{
		ID:             uuid.New(),
		JobType:        jobType,
		Status:         JobStatusPending,
		SourceService:  source,
		DocumentsTotal: total,
		Errors:         []DocumentError{},
		CreatedAt:      now,
	}
}

func (j *IndexJob) transition(to JobStatus) error {
	allowed := (j.Status == JobStatusPending && (to == JobStatusRunning || to == JobStatusFailed)) ||
		(j.Status == JobStatusRunning && to.IsTerminal())
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Start moves a pending job to running.
func (j *IndexJob) Start(now time.Time) error {
	if err := j.transition(JobStatusRunning); err != nil {
		return err
	}
	j.StartedAt = &now
	return nil
}

// Complete moves a running job to completed.
func (j *IndexJob) Complete(now time.Time) error {
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}
	j.CompletedAt = &now
	return nil
}

// Fail moves a pending or running job to failed.
func (j *IndexJob) Fail(now time.Time, msg string) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	j.ErrorMessage = msg
	j.CompletedAt = &now
	return nil
}

// Progress is the attempted fraction of DocumentsTotal, capped at 1.
// Jobs without a total report 0 until they finish.
func (j *IndexJob) Progress() float64 {
	if j.DocumentsTotal <= 0 {
		if j.Status.IsTerminal() {
			return 1
		}
		return 0
	}
	p := float64(j.DocumentsProcessed+j.DocumentsFailed) / float64(j.DocumentsTotal)
	return min(p, 1)
}

// Clone returns a deep copy safe to hand to readers.
func (j *IndexJob) Clone() *IndexJob {
	c := *j
	c.Errors = append([]DocumentError(nil), j.Errors...)
	if c.Errors == nil {
		c.Errors = []DocumentError{}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
