package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// IdempotencyStore remembers processed event IDs. Implementations must be
// safe for concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore is a bounded in-process IdempotencyStore whose
// entries expire after a TTL.
type MemoryIdempotencyStore struct {
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryIdempotencyStore keeps at most size IDs for ttl each.
func NewMemoryIdempotencyStore(size int, ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Contains reports whether eventID was recorded and has not expired.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	_, ok := s.cache.Get(eventID)
	return ok, nil
}

// Add records eventID as processed.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.cache.Add(eventID, struct{}{})
	return nil
}

// Len returns the number of live entries.
func (s *MemoryIdempotencyStore) Len() int {
	return s.cache.Len()
}

// IdempotentHandler skips events whose ID is already in store and records
// IDs after inner succeeds. Store failures fall through to processing.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if seen {
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return ErrDuplicate
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if err := store.Add(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "failed to record processed event",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
