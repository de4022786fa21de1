package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
)

// Analytics window and limit bounds.
const (
	DefaultAnalyticsDays  = 30
	MaxAnalyticsDays      = 365
	DefaultAnalyticsLimit = 20
	MaxAnalyticsLimit     = 100
)

// AnalyticsService aggregates query logs over a trailing window. Every
// aggregation streams the window once and keeps only per-group state.
type AnalyticsService struct {
	logs repository.QueryLogRepository
	now  func() time.Time
}

// NewAnalyticsService creates an analytics service.
func NewAnalyticsService(logs repository.QueryLogRepository) *AnalyticsService {
	return &AnalyticsService{
		logs: logs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *AnalyticsService) window(days, limit int) (int, int, error) {
	d, dErr := boundedInt("days", days, DefaultAnalyticsDays, 1, MaxAnalyticsDays)
	l, lErr := boundedInt("limit", limit, DefaultAnalyticsLimit, 1, MaxAnalyticsLimit)
	if err := mergeValidation(dErr, lErr); err != nil {
		return 0, 0, err
	}
	return d, l, nil
}

func (s *AnalyticsService) stream(ctx context.Context, days int, fn func(*domain.QueryLog)) error {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	err := s.logs.Stream(ctx, since, func(l *domain.QueryLog) error {
		fn(l)
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream query logs: %w", err)
	}
	return nil
}

type queryGroup struct {
	count      int
	results    int
	execMs     int64
	lastSearch time.Time
}

func (g *queryGroup) add(l *domain.QueryLog) {
	g.count++
	g.results += l.ResultsCount
	g.execMs += l.ExecutionTimeMs
	if l.CreatedAt.After(g.lastSearch) {
		g.lastSearch = l.CreatedAt
	}
}

func avg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PopularQueries ranks normalized non-empty query texts by frequency.
func (s *AnalyticsService) PopularQueries(ctx context.Context, days, limit int) ([]domain.PopularQuery, error) {
	days, limit, err := s.window(days, limit)
	if err != nil {
		return nil, err
	}

	groups := map[string]*queryGroup{}
	err = s.stream(ctx, days, func(l *domain.QueryLog) {
		text := domain.NormalizeText(l.QueryText)
		if text == "" {
			return
		}
		g, ok := groups[text]
		if !ok {
			g = &queryGroup{}
			groups[text] = g
		}
		g.add(l)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.PopularQuery, 0, len(groups))
	for text, g := range groups {
		out = append(out, domain.PopularQuery{
			Query:              text,
			Count:              g.count,
			AvgResults:         avg(float64(g.results), g.count),
			AvgExecutionTimeMs: avg(float64(g.execMs), g.count),
		})
	}
	slices.SortFunc(out, func(a, b domain.PopularQuery) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return strings.Compare(a.Query, b.Query)
	})
	return out[:min(limit, len(out))], nil
}

// ZeroResultQueries ranks query texts that returned nothing.
func (s *AnalyticsService) ZeroResultQueries(ctx context.Context, days, limit int) ([]domain.ZeroResultQuery, error) {
	days, limit, err := s.window(days, limit)
	if err != nil {
		return nil, err
	}

	groups := map[string]*queryGroup{}
	err = s.stream(ctx, days, func(l *domain.QueryLog) {
		text := domain.NormalizeText(l.QueryText)
		if text == "" || l.ResultsCount != 0 {
			return
		}
		g, ok := groups[text]
		if !ok {
			g = &queryGroup{}
			groups[text] = g
		}
		g.add(l)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ZeroResultQuery, 0, len(groups))
	for text, g := range groups {
		out = append(out, domain.ZeroResultQuery{Query: text, Count: g.count, LastSearched: g.lastSearch})
	}
	slices.SortFunc(out, func(a, b domain.ZeroResultQuery) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return strings.Compare(a.Query, b.Query)
	})
	return out[:min(limit, len(out))], nil
}

// Metrics summarizes the window.
func (s *AnalyticsService) Metrics(ctx context.Context, days int) (*domain.SearchMetrics, error) {
	days, _, err := s.window(days, 0)
	if err != nil {
		return nil, err
	}

	var (
		total, zero, clicked int
		results              int
		execMs               int64
		unique               = map[string]struct{}{}
		byLanguage           = map[string]int{}
		byHour               = map[int]int{}
	)
	err = s.stream(ctx, days, func(l *domain.QueryLog) {
		total++
		results += l.ResultsCount
		execMs += l.ExecutionTimeMs
		if l.ResultsCount == 0 {
			zero++
		}
		if l.ClickedResultID != nil {
			clicked++
		}
		if text := domain.NormalizeText(l.QueryText); text != "" {
			unique[text] = struct{}{}
		}
		byLanguage[strings.ToLower(l.Language)]++
		byHour[l.CreatedAt.UTC().Hour()]++
	})
	if err != nil {
		return nil, err
	}

	m := &domain.SearchMetrics{
		TotalSearches:     total,
		UniqueQueries:     len(unique),
		AvgResults:        avg(float64(results), total),
		AvgResponseTimeMs: avg(float64(execMs), total),
		ZeroResultRate:    avg(float64(zero), total),
		ClickThroughRate:  avg(float64(clicked), total),
		ByLanguage:        make([]domain.LanguageCount, 0, len(byLanguage)),
		PeakHours:         make([]domain.HourCount, 0, len(byHour)),
		PeriodDays:        days,
	}
	for lang, n := range byLanguage {
		m.ByLanguage = append(m.ByLanguage, domain.LanguageCount{Language: lang, Count: n})
	}
	slices.SortFunc(m.ByLanguage, func(a, b domain.LanguageCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return strings.Compare(a.Language, b.Language)
	})
	for hour, n := range byHour {
		m.PeakHours = append(m.PeakHours, domain.HourCount{Hour: hour, Count: n})
	}
	slices.SortFunc(m.PeakHours, func(a, b domain.HourCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Hour, b.Hour)
	})
	return m, nil
}

// Performance reports per-day volume and latency, oldest day first.
func (s *AnalyticsService) Performance(ctx context.Context, days int) ([]domain.DailyPerformance, error) {
	days, _, err := s.window(days, 0)
	if err != nil {
		return nil, err
	}

	groups := map[string]*queryGroup{}
	err = s.stream(ctx, days, func(l *domain.QueryLog) {
		day := l.CreatedAt.UTC().Format(time.DateOnly)
		g, ok := groups[day]
		if !ok {
			g = &queryGroup{}
			groups[day] = g
		}
		g.add(l)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.DailyPerformance, 0, len(groups))
	for day, g := range groups {
		out = append(out, domain.DailyPerformance{
			Date:               day,
			Count:              g.count,
			AvgExecutionTimeMs: avg(float64(g.execMs), g.count),
			AvgResults:         avg(float64(g.results), g.count),
		})
	}
	slices.SortFunc(out, func(a, b domain.DailyPerformance) int { return strings.Compare(a.Date, b.Date) })
	return out, nil
}
