// Package memory holds in-process repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// QueryLogRepository keeps query logs in insertion order.
type QueryLogRepository struct {
	mu   sync.RWMutex
	logs []domain.QueryLog
	byID map[uuid.UUID]int
}

var _ repository.QueryLogRepository = (*QueryLogRepository)(nil)

// NewQueryLogRepository creates an empty repository.
func NewQueryLogRepository() *QueryLogRepository {
	return &QueryLogRepository{byID: make(map[uuid.UUID]int)}
}

// Create implements repository.QueryLogRepository.
func (r *QueryLogRepository) Create(_ context.Context, log *domain.QueryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[log.ID]; ok {
		return apperrors.Conflict("query log " + log.ID.String() + " already exists")
	}
	r.byID[log.ID] = len(r.logs)
	r.logs = append(r.logs, *log)
	return nil
}

// SetClickedResult implements repository.QueryLogRepository.
func (r *QueryLogRepository) SetClickedResult(_ context.Context, id uuid.UUID, resultID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return apperrors.NotFound("query log", id.String())
	}
	r.logs[i].ClickedResultID = &resultID
	return nil
}

// RecentByUser implements repository.QueryLogRepository.
func (r *QueryLogRepository) RecentByUser(_ context.Context, userID string, limit int) ([]string, error) {
	r.mu.RLock()
	var mine []domain.QueryLog
	for _, l := range r.logs {
		if l.UserID != nil && *l.UserID == userID && l.QueryText != "" {
			mine = append(mine, l)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, l := range mine {
		if _, ok := seen[l.QueryText]; ok {
			continue
		}
		seen[l.QueryText] = struct{}{}
		out = append(out, l.QueryText)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Stream implements repository.QueryLogRepository. It iterates over a
// snapshot so fn may call back into the repository.
func (r *QueryLogRepository) Stream(ctx context.Context, since time.Time, fn func(*domain.QueryLog) error) error {
	r.mu.RLock()
	snapshot := make([]domain.QueryLog, 0, len(r.logs))
	for _, l := range r.logs {
		if !l.CreatedAt.Before(since) {
			snapshot = append(snapshot, l)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool { return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt) })
	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored logs.
func (r *QueryLogRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs)
}
