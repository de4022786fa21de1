package domain

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// Filter keys accepted in search and facet requests.
const (
	FilterDocumentType  = "document_type"
	FilterDocumentTypes = "document_types"
	FilterLanguage      = "language"
	FilterAuthorID      = "author_id"
	FilterAuthorName    = "author_name"
	FilterStatus        = "status"
	FilterPublishedFrom = "published_from"
	FilterPublishedTo   = "published_to"
	FilterMetadata      = "metadata"
)

// Filters is the parsed conjunction of search filters. Zero values mean
// "not filtered".
type Filters struct {
	DocumentTypes []DocumentType    `json:"document_types,omitempty"`
	Language      string            `json:"language,omitempty"`
	AuthorID      string            `json:"author_id,omitempty"`
	AuthorName    string            `json:"author_name,omitempty"`
	Status        string            `json:"status,omitempty"`
	PublishedFrom *time.Time        `json:"published_from,omitempty"`
	PublishedTo   *time.Time        `json:"published_to,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ParseFilters validates a raw filter object. Unknown keys and malformed
// values are reported per field path, e.g. "filters.colour".
func ParseFilters(raw map[string]any) (Filters, error) {
	var f Filters
	fields := map[string]string{}

	for key, val := range raw {
		path := "filters." + key
		switch key {
		case FilterDocumentType, FilterDocumentTypes:
			types, err := parseDocumentTypes(val)
			if err != nil {
				fields[path] = err.Error()
				continue
			}
			f.DocumentTypes = append(f.DocumentTypes, types...)
		case FilterLanguage, FilterAuthorID, FilterAuthorName, FilterStatus:
			s, ok := val.(string)
			if !ok {
				fields[path] = "must be a string"
				continue
			}
			s = strings.TrimSpace(s)
			switch key {
			case FilterLanguage:
				f.Language = strings.ToLower(s)
			case FilterAuthorID:
				f.AuthorID = s
			case FilterAuthorName:
				f.AuthorName = s
			case FilterStatus:
				f.Status = s
			}
		case FilterPublishedFrom, FilterPublishedTo:
			t, err := parseDate(val)
			if err != nil {
				fields[path] = err.Error()
				continue
			}
			if key == FilterPublishedFrom {
				f.PublishedFrom = &t
			} else {
				f.PublishedTo = &t
			}
		case FilterMetadata:
			m, ok := val.(map[string]any)
			if !ok {
				fields[path] = "must be an object"
				continue
			}
			f.Metadata = make(map[string]string, len(m))
			for mk, mv := range m {
				switch mv.(type) {
				case string, float64, bool, int, int64:
					f.Metadata[mk] = scalarString(mv)
				default:
					fields[path+"."+mk] = "must be a string, number or boolean"
				}
			}
		default:
			fields[path] = "is not a supported filter"
		}
	}

	if f.PublishedFrom != nil && f.PublishedTo != nil && f.PublishedFrom.After(*f.PublishedTo) {
		fields["filters."+FilterPublishedFrom] = "must not be after published_to"
	}
	if len(fields) > 0 {
		return Filters{}, apperrors.Validation(fields)
	}
	return f, nil
}

func parseDocumentTypes(val any) ([]DocumentType, error) {
	var raw []string
	switch v := val.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a string or a list of strings")
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("must be a string or a list of strings")
	}

	types := make([]DocumentType, 0, len(raw))
	for _, s := range raw {
		t := DocumentType(strings.TrimSpace(s))
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown document type %q", s)
		}
		types = append(types, t)
	}
	return types, nil
}

func parseDate(val any) (time.Time, error) {
	s, ok := val.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Match reports whether doc satisfies every filter.
func (f Filters) Match(doc *Document) bool {
	if len(f.DocumentTypes) > 0 && !slices.Contains(f.DocumentTypes, doc.DocumentType) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(doc.Language, f.Language) {
		return false
	}
	if f.AuthorID != "" && doc.AuthorID != f.AuthorID {
		return false
	}
	if f.AuthorName != "" && doc.AuthorName != f.AuthorName {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	if f.PublishedFrom != nil && (doc.PublishedAt == nil || doc.PublishedAt.Before(*f.PublishedFrom)) {
		return false
	}
	if f.PublishedTo != nil && (doc.PublishedAt == nil || doc.PublishedAt.After(*f.PublishedTo)) {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := doc.MetadataString(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Without returns a copy of f with one facet dimension cleared.
func (f Filters) Without(dim FacetDimension) Filters {
	switch dim {
	case FacetDocumentTypes:
		f.DocumentTypes = nil
	case FacetLanguages:
		f.Language = ""
	case FacetAuthors:
		f.AuthorID = ""
		f.AuthorName = ""
	case FacetStatuses:
		f.Status = ""
	}
	return f
}

// Snapshot renders f as the JSON-friendly map stored in query logs.
func (f Filters) Snapshot() map[string]any {
	out := map[string]any{}
	if len(f.DocumentTypes) > 0 {
		types := make([]string, len(f.DocumentTypes))
		for i, t := range f.DocumentTypes {
			types[i] = string(t)
		}
		sort.Strings(types)
		out[FilterDocumentTypes] = types
	}
	if f.Language != "" {
		out[FilterLanguage] = f.Language
	}
	if f.AuthorID != "" {
		out[FilterAuthorID] = f.AuthorID
	}
	if f.AuthorName != "" {
		out[FilterAuthorName] = f.AuthorName
	}
	if f.Status != "" {
		out[FilterStatus] = f.Status
	}
	if f.PublishedFrom != nil {
		out[FilterPublishedFrom] = f.PublishedFrom.Format(time.RFC3339)
	}
	if f.PublishedTo != nil {
		out[FilterPublishedTo] = f.PublishedTo.Format(time.RFC3339)
	}
	if len(f.Metadata) > 0 {
		out[FilterMetadata] = f.Metadata
	}
	return out
}
