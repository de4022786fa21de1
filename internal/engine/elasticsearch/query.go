package elasticsearch

import (
	"time"

	"github.com/utafrali/contentsearch/internal/engine"
)

// buildFindQuery translates a candidate query into the bool query DSL.
// Every term must prefix-match one of the search vector fields.
func buildFindQuery(q engine.Query) map[string]any {
	var must []any
	for _, term := range q.Terms {
		must = append(must, map[string]any{
			"bool": map[string]any{
				"should": []any{
					prefix("search_vector.title", term),
					prefix("search_vector.content", term),
					prefix("search_vector.author", term),
				},
				"minimum_should_match": 1,
			},
		})
	}

	filters := buildFilters(q)
	if len(must) == 0 && len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	return map[string]any{"bool": boolQuery}
}

func buildFilters(q engine.Query) []any {
	f := q.Filters
	var filters []any

	if len(f.DocumentTypes) > 0 {
		types := make([]string, len(f.DocumentTypes))
		for i, t := range f.DocumentTypes {
			types[i] = string(t)
		}
		filters = append(filters, map[string]any{"terms": map[string]any{"document_type": types}})
	}
	for field, value := range map[string]string{
		"language":    f.Language,
		"author_id":   f.AuthorID,
		"author_name": f.AuthorName,
		"status":      f.Status,
	} {
		if value != "" {
			filters = append(filters, term(field, value))
		}
	}
	if f.PublishedFrom != nil || f.PublishedTo != nil {
		r := map[string]any{}
		if f.PublishedFrom != nil {
			r["gte"] = f.PublishedFrom.Format(time.RFC3339)
		}
		if f.PublishedTo != nil {
			r["lte"] = f.PublishedTo.Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{"range": map[string]any{"published_at": r}})
	}
	for k, v := range f.Metadata {
		filters = append(filters, term("metadata_pairs", k+"="+v))
	}
	return filters
}

func term(field, value string) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func prefix(field, value string) map[string]any {
	return map[string]any{"prefix": map[string]any{field: value}}
}
