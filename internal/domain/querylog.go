package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryLog records one executed search. Only ClickedResultID changes after
// creation.
type QueryLog struct {
	ID              uuid.UUID      `json:"id"`
	QueryText       string         `json:"query_text"`
	Language        string         `json:"language"`
	Filters         map[string]any `json:"filters"`
	ResultsCount    int            `json:"results_count"`
	UserID          *string        `json:"user_id,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	ClickedResultID *string        `json:"clicked_result_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
