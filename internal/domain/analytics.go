package domain

import "time"

// PopularQuery aggregates logs sharing a normalized query text.
type PopularQuery struct {
	Query              string  `json:"query"`
	Count              int     `json:"count"`
	AvgResults         float64 `json:"avg_results"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
}

// ZeroResultQuery aggregates logs that returned nothing.
type ZeroResultQuery struct {
	Query        string    `json:"query"`
	Count        int       `json:"count"`
	LastSearched time.Time `json:"last_searched"`
}

// LanguageCount is a per-language search count.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// HourCount is a per-hour-of-day (UTC) search count.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// SearchMetrics summarizes a time window of query logs.
type SearchMetrics struct {
	TotalSearches     int             `json:"total_searches"`
	UniqueQueries     int             `json:"unique_queries"`
	AvgResults        float64         `json:"avg_results"`
	AvgResponseTimeMs float64         `json:"avg_response_time_ms"`
	ZeroResultRate    float64         `json:"zero_result_rate"`
	ClickThroughRate  float64         `json:"click_through_rate"`
	ByLanguage        []LanguageCount `json:"by_language"`
	PeakHours         []HourCount     `json:"peak_hours"`
	PeriodDays        int             `json:"period_days"`
}

// DailyPerformance is one day of search performance.
type DailyPerformance struct {
	Date               string  `json:"date"`
	Count              int     `json:"count"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
	AvgResults         float64 `json:"avg_results"`
}

// IndexStats summarizes the document store.
type IndexStats struct {
	TotalDocuments int            `json:"total_documents"`
	ByType         map[string]int `json:"by_type"`
	ByLanguage     map[string]int `json:"by_language"`
}
