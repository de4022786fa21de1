package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newLog(text string, user *string, at time.Time) *domain.QueryLog {
	return &domain.QueryLog{ID: uuid.New(), QueryText: text, Language: "en", UserID: user, CreatedAt: at}
}

func TestQueryLogRepository_ClickUnknown(t *testing.T) {
	repo := NewQueryLogRepository()
	err := repo.SetClickedResult(context.Background(), uuid.New(), "doc-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQueryLogRepository_Click(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryLogRepository()
	log := newLog("water", nil, t0)
	require.NoError(t, repo.Create(ctx, log))
	require.NoError(t, repo.SetClickedResult(ctx, log.ID, "doc-1"))

	var got *string
	require.NoError(t, repo.Stream(ctx, t0, func(l *domain.QueryLog) error {
		got = l.ClickedResultID
		return nil
	}))
	require.NotNil(t, got)
	assert.Equal(t, "doc-1", *got)
}

func TestQueryLogRepository_RecentByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryLogRepository()
	alice, bob := "alice", "bob"

	for i, text := range []string{"water", "fire", "water", "", "earth"} {
		require.NoError(t, repo.Create(ctx, newLog(text, &alice, t0.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newLog("bob only", &bob, t0)))
	require.NoError(t, repo.Create(ctx, newLog("anonymous", nil, t0)))

	got, err := repo.RecentByUser(ctx, alice, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"earth", "water", "fire"}, got)

	got, err = repo.RecentByUser(ctx, alice, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"earth", "water"}, got)
}

func TestQueryLogRepository_StreamWindowAndStop(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryLogRepository()
	require.NoError(t, repo.Create(ctx, newLog("old", nil, t0.Add(-48*time.Hour))))
	require.NoError(t, repo.Create(ctx, newLog("b", nil, t0.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, newLog("a", nil, t0)))

	var seen []string
	require.NoError(t, repo.Stream(ctx, t0.Add(-time.Hour), func(l *domain.QueryLog) error {
		seen = append(seen, l.QueryText)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, seen)

	stop := errors.New("stop")
	err := repo.Stream(ctx, time.Time{}, func(*domain.QueryLog) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSuggestionRepository_UpsertIncrements(t *testing.T) {
	ctx := context.Background()
	repo := NewSuggestionRepository(nil)

	first, err := repo.Upsert(ctx, "clean water", "en", t0)
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, "clean water", "en", t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.UsageCount)
	assert.Equal(t, t0.Add(time.Minute), second.LastUsedAt)
	assert.Equal(t, t0, second.CreatedAt)

	other, err := repo.Upsert(ctx, "clean water", "es", t0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSuggestionRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := NewSuggestionRepository(nil)
	for i := 0; i < 3; i++ {
		_, _ = repo.Upsert(ctx, "water filter", "en", t0)
	}
	_, _ = repo.Upsert(ctx, "water pump", "en", t0.Add(time.Hour))
	_, _ = repo.Upsert(ctx, "solar panel", "en", t0)
	_, _ = repo.Upsert(ctx, "water", "es", t0)

	got, err := repo.WithPrefix(ctx, "wat", "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"water filter", "water pump"}, texts(got))

	got, err = repo.Similar(ctx, "watr filter", "en", 0.8, 10)
	require.NoError(t, err)
	assert.Contains(t, texts(got), "water filter")
	assert.NotContains(t, texts(got), "solar panel")

	got, err = repo.Popular(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"water filter", "water pump"}, texts(got))

	n, err := repo.DeleteBelow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err = repo.Popular(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"water filter"}, texts(got))
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()

	job := domain.NewIndexJob(domain.JobTypeBulk, "content", 3, t0)
	require.NoError(t, repo.Create(ctx, job))

	job.Errors = append(job.Errors, domain.DocumentError{DocumentID: "a"})
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Errors, "stored copy must not alias the caller's job")

	require.NoError(t, job.Start(t0))
	require.NoError(t, repo.Update(ctx, job))
	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, got.Status)

	missing := domain.NewIndexJob(domain.JobTypeBulk, "", 0, t0)
	assert.ErrorIs(t, repo.Update(ctx, missing), apperrors.ErrNotFound)
	_, err = repo.GetByID(ctx, missing.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestJobRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	for i := 0; i < 5; i++ {
		job := domain.NewIndexJob(domain.JobTypeBulk, "content", 0, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, job))
	}
	reindex := domain.NewIndexJob(domain.JobTypeFullReindex, "projects", 0, t0.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, reindex))

	jobs, total, err := repo.List(ctx, repository.JobFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, jobs, 2)
	assert.Equal(t, reindex.ID, jobs[0].ID)

	typ := domain.JobTypeBulk
	jobs, total, err = repo.List(ctx, repository.JobFilter{Type: &typ, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, jobs, 1)

	jobs, total, err = repo.List(ctx, repository.JobFilter{SourceService: "projects"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, jobs, 1)
}

func texts(s []domain.Suggestion) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = v.Text
	}
	return out
}
