package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/pkg/database"
)

const suggestionColumns = `id, suggestion_text, language, usage_count, last_used_at, created_at, updated_at`

// suggestionOrder must agree with repository.SuggestionLess.
const suggestionOrder = `ORDER BY usage_count DESC, last_used_at DESC, suggestion_text ASC`

var (
	upsertSuggestionSQL = `
		INSERT INTO search_suggestions (` + suggestionColumns + `)
		VALUES ($1, $2, $3, 1, $4, $4, $4)
		ON CONFLICT (suggestion_text, language) DO UPDATE SET
			usage_count  = search_suggestions.usage_count + 1,
			last_used_at = EXCLUDED.last_used_at,
			updated_at   = EXCLUDED.updated_at
		RETURNING ` + suggestionColumns

	similarSuggestionsSQL = `
		SELECT ` + suggestionColumns + `
		FROM search_suggestions
		WHERE language = $1 AND similarity(suggestion_text, $2) >= $3
		` + suggestionOrder + `
		LIMIT $4`

	prefixSuggestionsSQL = `
		SELECT ` + suggestionColumns + `
		FROM search_suggestions
		WHERE language = $1 AND suggestion_text LIKE $2 || '%'
		` + suggestionOrder + `
		LIMIT $3`

	popularSuggestionsSQL = `
		SELECT ` + suggestionColumns + `
		FROM search_suggestions
		WHERE ($1 = '' OR language = $1)
		` + suggestionOrder + `
		LIMIT $2`

	deleteSuggestionsBelowSQL = `DELETE FROM search_suggestions WHERE usage_count < $1`
)

// SuggestionRepository implements repository.SuggestionRepository using
// PostgreSQL with pg_trgm similarity.
type SuggestionRepository struct {
	db database.DBTX
}

var _ repository.SuggestionRepository = (*SuggestionRepository)(nil)

// NewSuggestionRepository creates a PostgreSQL-backed suggestion repository.
func NewSuggestionRepository(db database.DBTX) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Upsert creates or bumps a suggestion in one statement.
func (r *SuggestionRepository) Upsert(ctx context.Context, text, language string, now time.Time) (_ *domain.Suggestion, err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertSuggestion", upsertSuggestionSQL)
	defer func() { end(err) }()

	s, err := scanSuggestion(r.db.QueryRow(ctx, upsertSuggestionSQL, uuid.New(), text, language, now))
	if err != nil {
		return nil, fmt.Errorf("upsert suggestion: %w", err)
	}
	return s, nil
}

// Similar returns trigram-similar suggestions.
func (r *SuggestionRepository) Similar(ctx context.Context, text, language string, threshold float64, limit int) ([]domain.Suggestion, error) {
	return r.list(ctx, "SimilarSuggestions", similarSuggestionsSQL, language, text, threshold, limit)
}

// WithPrefix returns suggestions starting with prefix. LIKE wildcards in
// prefix are escaped.
func (r *SuggestionRepository) WithPrefix(ctx context.Context, prefix, language string, limit int) ([]domain.Suggestion, error) {
	return r.list(ctx, "PrefixSuggestions", prefixSuggestionsSQL, language, escapeLike(prefix), limit)
}

// Popular returns the most used suggestions.
func (r *SuggestionRepository) Popular(ctx context.Context, language string, limit int) ([]domain.Suggestion, error) {
	return r.list(ctx, "PopularSuggestions", popularSuggestionsSQL, language, limit)
}

// DeleteBelow removes rarely used suggestions.
func (r *SuggestionRepository) DeleteBelow(ctx context.Context, minUsage int) (_ int, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteSuggestionsBelow", deleteSuggestionsBelowSQL)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, deleteSuggestionsBelowSQL, minUsage)
	if err != nil {
		return 0, fmt.Errorf("delete suggestions: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *SuggestionRepository) list(ctx context.Context, op, sql string, args ...any) (_ []domain.Suggestion, err error) {
	ctx, end := database.TraceQuery(ctx, op, sql)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Suggestion, 0)
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return out, nil
}

func scanSuggestion(row pgx.Row) (*domain.Suggestion, error) {
	var s domain.Suggestion
	if err := row.Scan(
		&s.ID,
		&s.Text,
		&s.Language,
		&s.UsageCount,
		&s.LastUsedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
