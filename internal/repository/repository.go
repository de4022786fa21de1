package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
)

// QueryLogRepository persists executed searches.
type QueryLogRepository interface {
	// Create inserts a query log.
	Create(ctx context.Context, log *domain.QueryLog) error

	// SetClickedResult records the result a caller opened. Unknown IDs are
	// a NOT_FOUND error.
	SetClickedResult(ctx context.Context, id uuid.UUID, resultID string) error

	// RecentByUser returns the user's distinct non-empty query texts, most
	// recent first.
	RecentByUser(ctx context.Context, userID string, limit int) ([]string, error)

	// Stream calls fn for every log created at or after since, oldest
	// first. Iteration stops at the first error fn returns.
	Stream(ctx context.Context, since time.Time, fn func(*domain.QueryLog) error) error
}

// SuggestionRepository persists autocomplete suggestions. Texts passed in
// are already normalized.
type SuggestionRepository interface {
	// Upsert creates the suggestion or increments its usage count and
	// refreshes last_used_at.
	Upsert(ctx context.Context, text, language string, now time.Time) (*domain.Suggestion, error)

	// Similar returns suggestions whose similarity to text is at least
	// threshold.
	Similar(ctx context.Context, text, language string, threshold float64, limit int) ([]domain.Suggestion, error)

	// WithPrefix returns suggestions starting with prefix.
	WithPrefix(ctx context.Context, prefix, language string, limit int) ([]domain.Suggestion, error)

	// Popular returns the most used suggestions. An empty language means
	// every language.
	Popular(ctx context.Context, language string, limit int) ([]domain.Suggestion, error)

	// DeleteBelow removes suggestions used fewer than minUsage times.
	DeleteBelow(ctx context.Context, minUsage int) (int, error)
}

// JobFilter defines filter criteria for listing index jobs.
type JobFilter struct {
	Status        *domain.JobStatus
	Type          *domain.JobType
	SourceService string
	Page          int
	PageSize      int
}

// JobRepository persists index jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.IndexJob) error

	// Update overwrites the mutable job fields. Unknown IDs are a
	// NOT_FOUND error.
	Update(ctx context.Context, job *domain.IndexJob) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.IndexJob, error)

	// List returns jobs newest first with the total matching count.
	List(ctx context.Context, filter JobFilter) ([]domain.IndexJob, int, error)
}

// SuggestionLess orders suggestions by usage_count desc, last_used_at desc,
// then text asc.
func SuggestionLess(a, b domain.Suggestion) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.After(b.LastUsedAt)
	}
	return a.Text < b.Text
}
