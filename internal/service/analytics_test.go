package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

var analyticsNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seedLogs(t *testing.T, h *harness) {
	t.Helper()
	clicked := "a1"
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
	}
	logs := []domain.QueryLog{
		{QueryText: "Water", Language: "en", ResultsCount: 5, ExecutionTimeMs: 10, CreatedAt: at(9, 10, 0)},
		{QueryText: "water ", Language: "en", ResultsCount: 3, ExecutionTimeMs: 30, CreatedAt: at(9, 11, 0)},
		{QueryText: "volcano", Language: "en", ResultsCount: 0, ExecutionTimeMs: 20, CreatedAt: at(8, 10, 0)},
		{QueryText: "volcano", Language: "en", ResultsCount: 0, ExecutionTimeMs: 20, CreatedAt: at(8, 10, 30)},
		{QueryText: "", Language: "es", ResultsCount: 7, ExecutionTimeMs: 40, CreatedAt: at(9, 10, 15)},
		{QueryText: "rivers", Language: "en", ResultsCount: 2, ExecutionTimeMs: 10, CreatedAt: at(9, 11, 30), ClickedResultID: &clicked},
		{QueryText: "old", Language: "en", ResultsCount: 0, ExecutionTimeMs: 5, CreatedAt: time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)},
	}
	for i := range logs {
		logs[i].ID = uuid.New()
		logs[i].Filters = map[string]any{}
		require.NoError(t, h.logs.Create(context.Background(), &logs[i]))
	}
	h.analytics.now = func() time.Time { return analyticsNow }
}

func TestPopularQueries(t *testing.T) {
	h := newHarness(t)
	seedLogs(t, h)

	got, err := h.analytics.PopularQueries(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.PopularQuery{
		{Query: "volcano", Count: 2, AvgResults: 0, AvgExecutionTimeMs: 20},
		{Query: "water", Count: 2, AvgResults: 4, AvgExecutionTimeMs: 20},
		{Query: "rivers", Count: 1, AvgResults: 2, AvgExecutionTimeMs: 10},
	}, got)

	limited, err := h.analytics.PopularQueries(context.Background(), 30, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "volcano", limited[0].Query)
}

func TestZeroResultQueries(t *testing.T) {
	h := newHarness(t)
	seedLogs(t, h)

	got, err := h.analytics.ZeroResultQueries(context.Background(), 30, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "volcano", got[0].Query)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, time.Date(2025, 3, 8, 10, 30, 0, 0, time.UTC), got[0].LastSearched)

	wide, err := h.analytics.ZeroResultQueries(context.Background(), 365, 10)
	require.NoError(t, err)
	assert.Len(t, wide, 2)
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	seedLogs(t, h)

	m, err := h.analytics.Metrics(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 6, m.TotalSearches)
	assert.Equal(t, 3, m.UniqueQueries)
	assert.InDelta(t, 17.0/6, m.AvgResults, 1e-9)
	assert.InDelta(t, 130.0/6, m.AvgResponseTimeMs, 1e-9)
	assert.InDelta(t, 2.0/6, m.ZeroResultRate, 1e-9)
	assert.InDelta(t, 1.0/6, m.ClickThroughRate, 1e-9)
	assert.Equal(t, []domain.LanguageCount{{Language: "en", Count: 5}, {Language: "es", Count: 1}}, m.ByLanguage)
	assert.Equal(t, []domain.HourCount{{Hour: 10, Count: 4}, {Hour: 11, Count: 2}}, m.PeakHours)
	assert.Equal(t, 30, m.PeriodDays)
}

func TestMetrics_EmptyWindow(t *testing.T) {
	h := newHarness(t)

	m, err := h.analytics.Metrics(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, m.TotalSearches)
	assert.Zero(t, m.ZeroResultRate)
	assert.Empty(t, m.ByLanguage)
	assert.NotNil(t, m.PeakHours)
}

func TestPerformance(t *testing.T) {
	h := newHarness(t)
	seedLogs(t, h)

	got, err := h.analytics.Performance(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, []domain.DailyPerformance{
		{Date: "2025-03-08", Count: 2, AvgExecutionTimeMs: 20, AvgResults: 0},
		{Date: "2025-03-09", Count: 4, AvgExecutionTimeMs: 22.5, AvgResults: 4.25},
	}, got)
}

func TestAnalytics_WindowBounds(t *testing.T) {
	h := newHarness(t)

	_, err := h.analytics.Metrics(context.Background(), 400)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "days")

	_, err = h.analytics.PopularQueries(context.Background(), -1, 101)
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "days")
	assert.Contains(t, appErr.Fields, "limit")
}
