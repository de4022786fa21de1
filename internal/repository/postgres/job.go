package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/pkg/database"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/pagination"
)

const jobColumns = `id, job_type, status, source_service, documents_total, documents_processed,
			   documents_failed, error_message, errors, started_at, completed_at, created_at`

const (
	insertJobSQL = `
		INSERT INTO index_jobs (
			id, job_type, status, source_service, documents_total, documents_processed,
			documents_failed, error_message, errors, started_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateJobSQL = `
		UPDATE index_jobs SET
			status = $2,
			documents_total = $3,
			documents_processed = $4,
			documents_failed = $5,
			error_message = $6,
			errors = $7,
			started_at = $8,
			completed_at = $9
		WHERE id = $1`

	getJobSQL = `SELECT ` + jobColumns + ` FROM index_jobs WHERE id = $1`
)

// JobRepository implements repository.JobRepository using PostgreSQL.
type JobRepository struct {
	db database.DBTX
}

var _ repository.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a PostgreSQL-backed job repository.
func NewJobRepository(db database.DBTX) *JobRepository {
	return &JobRepository{db: db}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalErrors(errs []domain.DocumentError) ([]byte, error) {
	if errs == nil {
		errs = []domain.DocumentError{}
	}
	return json.Marshal(errs)
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, j *domain.IndexJob) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertIndexJob", insertJobSQL)
	defer func() { end(err) }()

	errsJSON, err := marshalErrors(j.Errors)
	if err != nil {
		return fmt.Errorf("marshal job errors: %w", err)
	}

	_, err = r.db.Exec(ctx, insertJobSQL,
		j.ID,
		j.JobType,
		j.Status,
		nullable(j.SourceService),
		j.DocumentsTotal,
		j.DocumentsProcessed,
		j.DocumentsFailed,
		nullable(j.ErrorMessage),
		errsJSON,
		j.StartedAt,
		j.CompletedAt,
		j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert index job: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a job.
func (r *JobRepository) Update(ctx context.Context, j *domain.IndexJob) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateIndexJob", updateJobSQL)
	defer func() { end(err) }()

	errsJSON, err := marshalErrors(j.Errors)
	if err != nil {
		return fmt.Errorf("marshal job errors: %w", err)
	}

	ct, err := r.db.Exec(ctx, updateJobSQL,
		j.ID,
		j.Status,
		j.DocumentsTotal,
		j.DocumentsProcessed,
		j.DocumentsFailed,
		nullable(j.ErrorMessage),
		errsJSON,
		j.StartedAt,
		j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update index job: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("index job", j.ID.String())
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *domain.IndexJob, err error) {
	ctx, end := database.TraceQuery(ctx, "GetIndexJob", getJobSQL)
	defer func() { end(err) }()

	j, err := scanJob(r.db.QueryRow(ctx, getJobSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("index job", id.String())
		}
		return nil, fmt.Errorf("get index job: %w", err)
	}
	return j, nil
}

// List returns jobs matching the filter, newest first, with the total count.
func (r *JobRepository) List(ctx context.Context, filter repository.JobFilter) (_ []domain.IndexJob, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}
	if filter.SourceService != "" {
		conditions = append(conditions, fmt.Sprintf("source_service = $%d", argIndex))
		args = append(args, filter.SourceService)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM index_jobs
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		jobColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "ListIndexJobs", query)
	defer func() { end(err) }()

	p := pagination.Params{Page: max(filter.Page, 1), PageSize: filter.PageSize}
	if p.PageSize <= 0 {
		p.PageSize = pagination.DefaultPageSize
	}
	args = append(args, p.PageSize, p.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list index jobs: %w", err)
	}
	defer rows.Close()

	var (
		jobs       = make([]domain.IndexJob, 0)
		totalCount int
	)
	for rows.Next() {
		j, err := scanJobRow(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan index job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate index jobs: %w", err)
	}
	return jobs, totalCount, nil
}

func scanJob(row pgx.Row) (*domain.IndexJob, error) {
	return scanJobRow(row)
}

// scanJobRow scans the job columns followed by any extra destinations.
func scanJobRow(row pgx.Row, extra ...any) (*domain.IndexJob, error) {
	var (
		j        domain.IndexJob
		source   *string
		errMsg   *string
		errsJSON []byte
	)
	dest := append([]any{
		&j.ID,
		&j.JobType,
		&j.Status,
		&source,
		&j.DocumentsTotal,
		&j.DocumentsProcessed,
		&j.DocumentsFailed,
		&errMsg,
		&errsJSON,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if source != nil {
		j.SourceService = *source
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &j.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal job errors: %w", err)
		}
	}
	if j.Errors == nil {
		j.Errors = []domain.DocumentError{}
	}
	return &j, nil
}
