package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func TestNormalize_Defaults(t *testing.T) {
	p, err := Params{}.Normalize(20, 100)
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 1, PageSize: 20}, p)
	assert.Equal(t, 0, p.Offset())
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		in    Params
		field string
	}{
		{"negative page", Params{Page: -1, PageSize: 10}, "page"},
		{"negative size", Params{Page: 1, PageSize: -5}, "page_size"},
		{"size above max", Params{Page: 1, PageSize: 101}, "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Normalize(20, 100)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestNormalize_MaxBoundaryAccepted(t *testing.T) {
	p, err := Params{Page: 2, PageSize: 100}.Normalize(20, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Offset())
}

func TestBounds(t *testing.T) {
	p := Params{Page: 2, PageSize: 10}
	start, end := p.Bounds(25)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = Params{Page: 3, PageSize: 10}.Bounds(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = Params{Page: 9, PageSize: 10}.Bounds(25)
	assert.Equal(t, 25, start)
	assert.Equal(t, 25, end)
}

func TestBounds_HugePageDoesNotOverflow(t *testing.T) {
	p := Params{Page: math.MaxInt64 / 50, PageSize: 100}
	assert.Equal(t, math.MaxInt, p.Offset())

	start, end := p.Bounds(16)
	assert.Equal(t, 16, start)
	assert.Equal(t, 16, end)

	start, end = Params{Page: math.MaxInt, PageSize: 1}.Bounds(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs?page=3&page_size=50", nil)
	p, err := FromRequest(req, 20, 100)
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 3, PageSize: 50}, p)

	req = httptest.NewRequest(http.MethodGet, "/jobs?page=abc", nil)
	_, err = FromRequest(req, 20, 100)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNewResult(t *testing.T) {
	r := NewResult[string](nil, 41, Params{Page: 1, PageSize: 20})
	assert.NotNil(t, r.Items)
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 41, r.Total)
}
