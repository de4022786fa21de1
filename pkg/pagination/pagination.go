package pagination

import (
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds page-number pagination parameters.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Normalize fills zero values with defaults and rejects out-of-range
// values. maxSize <= 0 means MaxPageSize.
func (p Params) Normalize(defaultSize, maxSize int) (Params, error) {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}

	fields := map[string]string{}
	switch {
	case p.Page == 0:
		p.Page = DefaultPage
	case p.Page < 0:
		fields["page"] = "must be greater than or equal to 1"
	}
	switch {
	case p.PageSize == 0:
		p.PageSize = min(defaultSize, maxSize)
	case p.PageSize < 0 || p.PageSize > maxSize:
		fields["page_size"] = "must be between 1 and " + strconv.Itoa(maxSize)
	}
	if len(fields) > 0 {
		return p, apperrors.Validation(fields)
	}
	return p, nil
}

// Offset is the zero-based index of the first item on the page. It
// saturates at math.MaxInt instead of overflowing.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Bounds returns the [start, end) slice window of the page within total
// items. Pages past the end yield an empty window.
func (p Params) Bounds(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + max(p.PageSize, 0)
	if end > total || end < start {
		end = total
	}
	return start, end
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// FromRequest reads page and page_size query parameters.
func FromRequest(r *http.Request, defaultSize, maxSize int) (Params, error) {
	var p Params
	q := r.URL.Query()
	fields := map[string]string{}

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields["page"] = "must be an integer"
		}
		p.Page = v
	}
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields["page_size"] = "must be an integer"
		}
		p.PageSize = v
	}
	if len(fields) > 0 {
		return p, apperrors.Validation(fields)
	}
	return p.Normalize(defaultSize, maxSize)
}

// Result wraps a paginated list response.
type Result[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewResult creates a paginated result.
func NewResult[T any](items []T, total int, params Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: TotalPages(total, params.PageSize),
	}
}
