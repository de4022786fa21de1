package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sort fields.
const (
	SortRelevance = "relevance"
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortTitle     = "title"
)

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ValidSortOptions returns the accepted sort_by values.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortCreatedAt, SortUpdatedAt, SortTitle}
}

// SearchRequest holds all parameters for a search call.
type SearchRequest struct {
	Query     string         `json:"query" validate:"max=500"`
	Language  string         `json:"language,omitempty" validate:"max=10"`
	Filters   map[string]any `json:"filters,omitempty"`
	SortBy    string         `json:"sort_by,omitempty" validate:"omitempty,oneof=relevance created_at updated_at title"`
	SortOrder string         `json:"sort_order,omitempty" validate:"omitempty,oneof=asc desc"`
	Page      int            `json:"page,omitempty"`
	PageSize  int            `json:"page_size,omitempty"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	DocumentID       string         `json:"document_id"`
	DocumentType     DocumentType   `json:"document_type"`
	Title            string         `json:"title"`
	HighlightedTitle string         `json:"highlighted_title"`
	ContentPreview   string         `json:"content_preview"`
	Language         string         `json:"language"`
	AuthorID         string         `json:"author_id,omitempty"`
	AuthorName       string         `json:"author_name,omitempty"`
	Status           string         `json:"status,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
	IndexedAt        time.Time      `json:"indexed_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	RelevanceScore   float64        `json:"relevance_score"`
}

// SearchResponse is the paginated search result.
type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	Total           int            `json:"total"`
	Page            int            `json:"page"`
	PageSize        int            `json:"page_size"`
	TotalPages      int            `json:"total_pages"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	QueryID         uuid.UUID      `json:"query_id"`
}
