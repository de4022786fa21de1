package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/contentsearch/internal/domain"
	memrepo "github.com/utafrali/contentsearch/internal/repository/memory"
)

type failingLogs struct {
	*memrepo.QueryLogRepository
}

func (failingLogs) Create(context.Context, *domain.QueryLog) error {
	return errors.New("connection reset")
}

type failingTracker struct {
	calls int
}

func (f *failingTracker) TrackSuggestion(context.Context, string, string) error {
	f.calls++
	return errors.New("suggestion table locked")
}

func TestRecorder_CountsFailures(t *testing.T) {
	metrics := NewMetrics(nil)
	tracker := &failingTracker{}
	r := NewRecorder(failingLogs{memrepo.NewQueryLogRepository()}, tracker, metrics, newTestLogger())

	r.Record(context.Background(), &domain.QueryLog{ID: uuid.New(), QueryText: "water", Language: "en", CreatedAt: time.Now()}, true)
	r.Record(context.Background(), &domain.QueryLog{ID: uuid.New(), QueryText: "lava", Language: "en", CreatedAt: time.Now()}, false)
	r.Flush()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.recordFailures.WithLabelValues("query_log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.recordFailures.WithLabelValues("suggestion")))
	assert.Equal(t, 1, tracker.calls)
}

func TestRecorder_SurvivesCanceledContext(t *testing.T) {
	logs := memrepo.NewQueryLogRepository()
	r := NewRecorder(logs, nil, NewMetrics(nil), newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, &domain.QueryLog{ID: uuid.New(), QueryText: "water", CreatedAt: time.Now()}, true)
	r.Flush()

	assert.Equal(t, 1, logs.Len())
}
