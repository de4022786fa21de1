package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/pagination"
)

// JobRepository stores deep copies of index jobs.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.IndexJob
}

var _ repository.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates an empty repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[uuid.UUID]*domain.IndexJob)}
}

// Create implements repository.JobRepository.
func (r *JobRepository) Create(_ context.Context, job *domain.IndexJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return apperrors.Conflict("index job " + job.ID.String() + " already exists")
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Update implements repository.JobRepository.
func (r *JobRepository) Update(_ context.Context, job *domain.IndexJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return apperrors.NotFound("index job", job.ID.String())
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// GetByID implements repository.JobRepository.
func (r *JobRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.IndexJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("index job", id.String())
	}
	return job.Clone(), nil
}

// List implements repository.JobRepository.
func (r *JobRepository) List(_ context.Context, f repository.JobFilter) ([]domain.IndexJob, int, error) {
	r.mu.RLock()
	matched := make([]domain.IndexJob, 0)
	for _, j := range r.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Type != nil && j.JobType != *f.Type {
			continue
		}
		if f.SourceService != "" && j.SourceService != f.SourceService {
			continue
		}
		matched = append(matched, *j.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].ID.String() < matched[k].ID.String()
	})

	p := pagination.Params{Page: max(f.Page, 1), PageSize: f.PageSize}
	if p.PageSize <= 0 {
		p.PageSize = pagination.DefaultPageSize
	}
	start, end := p.Bounds(len(matched))
	return matched[start:end], len(matched), nil
}
