package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Suggestion is an aggregated autocomplete candidate.
type Suggestion struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"suggestion_text"`
	Language   string    `json:"language"`
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeText lower-cases s, trims it and collapses inner whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
