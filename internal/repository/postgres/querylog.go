package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/pkg/database"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

const (
	insertQueryLogSQL = `
		INSERT INTO search_queries (
			id, query_text, language, filters, results_count,
			user_id, execution_time_ms, clicked_result_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	setClickedResultSQL = `UPDATE search_queries SET clicked_result_id = $2 WHERE id = $1`

	recentByUserSQL = `
		SELECT query_text
		FROM search_queries
		WHERE user_id = $1 AND query_text <> ''
		GROUP BY query_text
		ORDER BY MAX(created_at) DESC
		LIMIT $2`

	streamQueryLogsSQL = `
		SELECT id, query_text, language, filters, results_count,
			   user_id, execution_time_ms, clicked_result_id, created_at
		FROM search_queries
		WHERE created_at >= $1
		ORDER BY created_at ASC`
)

// QueryLogRepository implements repository.QueryLogRepository using
// PostgreSQL.
type QueryLogRepository struct {
	db database.DBTX
}

var _ repository.QueryLogRepository = (*QueryLogRepository)(nil)

// NewQueryLogRepository creates a PostgreSQL-backed query log repository.
func NewQueryLogRepository(db database.DBTX) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Create inserts a query log.
func (r *QueryLogRepository) Create(ctx context.Context, l *domain.QueryLog) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertQueryLog", insertQueryLogSQL)
	defer func() { end(err) }()

	filters := l.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	_, err = r.db.Exec(ctx, insertQueryLogSQL,
		l.ID,
		l.QueryText,
		l.Language,
		filtersJSON,
		l.ResultsCount,
		l.UserID,
		l.ExecutionTimeMs,
		l.ClickedResultID,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// SetClickedResult records the clicked result of a query log.
func (r *QueryLogRepository) SetClickedResult(ctx context.Context, id uuid.UUID, resultID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "SetClickedResult", setClickedResultSQL)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, setClickedResultSQL, id, resultID)
	if err != nil {
		return fmt.Errorf("set clicked result: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("query log", id.String())
	}
	return nil
}

// RecentByUser returns the user's distinct query texts, most recent first.
func (r *QueryLogRepository) RecentByUser(ctx context.Context, userID string, limit int) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, "RecentQueriesByUser", recentByUserSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, recentByUserSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent queries: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan recent query: %w", err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent queries: %w", err)
	}
	return out, nil
}

// Stream walks the logs of a window row by row without materializing it.
func (r *QueryLogRepository) Stream(ctx context.Context, since time.Time, fn func(*domain.QueryLog) error) (err error) {
	ctx, end := database.TraceQuery(ctx, "StreamQueryLogs", streamQueryLogsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, streamQueryLogsSQL, since)
	if err != nil {
		return fmt.Errorf("stream query logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l           domain.QueryLog
			filtersJSON []byte
		)
		if err := rows.Scan(
			&l.ID,
			&l.QueryText,
			&l.Language,
			&filtersJSON,
			&l.ResultsCount,
			&l.UserID,
			&l.ExecutionTimeMs,
			&l.ClickedResultID,
			&l.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan query log: %w", err)
		}
		if len(filtersJSON) > 0 {
			if err := json.Unmarshal(filtersJSON, &l.Filters); err != nil {
				return fmt.Errorf("unmarshal filters: %w", err)
			}
		}
		if err := fn(&l); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate query logs: %w", err)
	}
	return nil
}
