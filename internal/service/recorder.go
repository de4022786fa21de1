package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
)

// DefaultRecordTimeout bounds one asynchronous query log write.
const DefaultRecordTimeout = 5 * time.Second

// SuggestionTracker promotes a query to an autocomplete suggestion.
type SuggestionTracker interface {
	TrackSuggestion(ctx context.Context, text, language string) error
}

// Recorder writes query logs and suggestion updates off the search path.
// Failures are logged and counted, never returned.
type Recorder struct {
	logs        repository.QueryLogRepository
	suggestions SuggestionTracker
	metrics     *Metrics
	logger      *slog.Logger
	timeout     time.Duration

	wg sync.WaitGroup
}

// NewRecorder creates a recorder. suggestions may be nil.
func NewRecorder(logs repository.QueryLogRepository, suggestions SuggestionTracker, metrics *Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		logs:        logs,
		suggestions: suggestions,
		metrics:     metrics,
		logger:      logger,
		timeout:     DefaultRecordTimeout,
	}
}

// Record stores entry and, when promote is set, tracks its query text as a
// suggestion. It returns immediately.
func (r *Recorder) Record(ctx context.Context, entry *domain.QueryLog, promote bool) {
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if err := r.logs.Create(ctx, entry); err != nil {
			r.metrics.recordFailures.WithLabelValues("query_log").Inc()
			r.logger.WarnContext(ctx, "failed to write query log",
				slog.String("query_id", entry.ID.String()),
				slog.String("error", err.Error()),
			)
		}

		if !promote || r.suggestions == nil {
			return
		}
		if err := r.suggestions.TrackSuggestion(ctx, entry.QueryText, entry.Language); err != nil {
			r.metrics.recordFailures.WithLabelValues("suggestion").Inc()
			r.logger.WarnContext(ctx, "failed to track suggestion",
				slog.String("query", entry.QueryText),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Flush blocks until every pending write has finished.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
