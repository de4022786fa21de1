package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/pkg/pagination"
)

// JobObserver is told about jobs reaching a terminal state.
type JobObserver interface {
	JobFinished(ctx context.Context, job *domain.IndexJob)
}

// jobRun is the live state of one job. Counters are atomics so workers
// never contend on the mutex for successes.
type jobRun struct {
	processed atomic.Int64
	failed    atomic.Int64

	mu     sync.Mutex
	job    *domain.IndexJob
	errors []seqError
}

type seqError struct {
	seq int
	err domain.DocumentError
}

func (r *jobRun) id() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.ID
}

func (r *jobRun) succeeded() {
	r.processed.Add(1)
}

// failedDoc records a per-document failure. seq is the submission index
// and keeps the error list in input order.
func (r *jobRun) failedDoc(seq int, docErr domain.DocumentError) {
	r.failed.Add(1)
	r.mu.Lock()
	r.errors = append(r.errors, seqError{seq: seq, err: docErr})
	r.mu.Unlock()
}

// snapshot returns a copy of the job with live counters folded in.
func (r *jobRun) snapshot() *domain.IndexJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *jobRun) snapshotLocked() *domain.IndexJob {
	j := r.job.Clone()
	j.DocumentsProcessed = int(r.processed.Load())
	j.DocumentsFailed = int(r.failed.Load())

	errs := slices.Clone(r.errors)
	slices.SortStableFunc(errs, func(a, b seqError) int { return a.seq - b.seq })
	j.Errors = make([]domain.DocumentError, 0, len(errs))
	for _, e := range errs {
		j.Errors = append(j.Errors, e.err)
	}
	return j
}

// JobTracker is the only writer of index jobs. Running jobs are served from
// memory so readers see live progress; every transition is persisted.
type JobTracker struct {
	repo     repository.JobRepository
	observer JobObserver
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	live map[uuid.UUID]*jobRun
}

// NewJobTracker creates a tracker. observer may be nil.
func NewJobTracker(repo repository.JobRepository, observer JobObserver, logger *slog.Logger) *JobTracker {
	return &JobTracker{
		repo:     repo,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		live:     make(map[uuid.UUID]*jobRun),
	}
}

// begin creates a pending job. Persistence failures are logged; the job
// still runs.
func (t *JobTracker) begin(ctx context.Context, jobType domain.JobType, source string, total int) *jobRun {
	run := &jobRun{job: domain.NewIndexJob(jobType, source, total, t.now())}

	t.mu.Lock()
	t.live[run.job.ID] = run
	t.mu.Unlock()

	if err := t.repo.Create(ctx, run.job.Clone()); err != nil {
		t.logger.WarnContext(ctx, "failed to persist index job",
			slog.String("job_id", run.job.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return run
}

// start moves the job to running with a final document total.
func (t *JobTracker) start(ctx context.Context, run *jobRun, total int) error {
	run.mu.Lock()
	run.job.DocumentsTotal = total
	err := run.job.Start(t.now())
	snap := run.snapshotLocked()
	run.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	t.persist(ctx, snap)
	return nil
}

// finish completes the job, or fails it when fatal is non-nil, and drops
// it from the live set.
func (t *JobTracker) finish(ctx context.Context, run *jobRun, fatal error) *domain.IndexJob {
	run.mu.Lock()
	var err error
	if fatal != nil {
		err = run.job.Fail(t.now(), fatal.Error())
	} else {
		err = run.job.Complete(t.now())
	}
	snap := run.snapshotLocked()
	run.mu.Unlock()

	if err != nil {
		t.logger.ErrorContext(ctx, "invalid job transition",
			slog.String("job_id", snap.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	t.persist(ctx, snap)

	t.mu.Lock()
	delete(t.live, snap.ID)
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "index job finished",
		slog.String("job_id", snap.ID.String()),
		slog.String("type", string(snap.JobType)),
		slog.String("status", string(snap.Status)),
		slog.Int("processed", snap.DocumentsProcessed),
		slog.Int("failed", snap.DocumentsFailed),
	)
	if t.observer != nil {
		t.observer.JobFinished(ctx, snap)
	}
	return snap
}

func (t *JobTracker) persist(ctx context.Context, job *domain.IndexJob) {
	if err := t.repo.Update(ctx, job); err != nil {
		t.logger.WarnContext(ctx, "failed to persist index job",
			slog.String("job_id", job.ID.String()),
			slog.String("status", string(job.Status)),
			slog.String("error", err.Error()),
		)
	}
}

func (t *JobTracker) liveRun(id uuid.UUID) (*jobRun, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.live[id]
	return run, ok
}

// Get returns the job, with live progress while it runs.
func (t *JobTracker) Get(ctx context.Context, id uuid.UUID) (*domain.IndexJob, error) {
	if run, ok := t.liveRun(id); ok {
		return run.snapshot(), nil
	}
	job, err := t.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns persisted jobs, newest first, with live jobs refreshed.
func (t *JobTracker) List(ctx context.Context, filter repository.JobFilter) ([]domain.IndexJob, int, error) {
	if filter.Page <= 0 {
		filter.Page = pagination.DefaultPage
	}
	if filter.PageSize <= 0 {
		filter.PageSize = pagination.DefaultPageSize
	}
	jobs, total, err := t.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	for i := range jobs {
		if run, ok := t.liveRun(jobs[i].ID); ok {
			jobs[i] = *run.snapshot()
		}
	}
	return jobs, total, nil
}
