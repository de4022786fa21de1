package elasticsearch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
)

func TestBuildFindQuery_MatchAll(t *testing.T) {
	q := buildFindQuery(engine.Query{})
	assert.Contains(t, q, "match_all")
}

func TestBuildFindQuery_TermsAreConjunctivePrefixes(t *testing.T) {
	q := buildFindQuery(engine.Query{Terms: []string{"water", "clean"}})

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded struct {
		Bool struct {
			Must []struct {
				Bool struct {
					Should             []map[string]map[string]string `json:"should"`
					MinimumShouldMatch int                            `json:"minimum_should_match"`
				} `json:"bool"`
			} `json:"must"`
		} `json:"bool"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Bool.Must, 2)

	first := decoded.Bool.Must[0].Bool
	assert.Equal(t, 1, first.MinimumShouldMatch)
	require.Len(t, first.Should, 3)
	assert.Equal(t, "water", first.Should[0]["prefix"]["search_vector.title"])
	assert.Equal(t, "water", first.Should[2]["prefix"]["search_vector.author"])
}

func TestBuildFindQuery_Filters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := buildFindQuery(engine.Query{Filters: domain.Filters{
		DocumentTypes: []domain.DocumentType{domain.DocumentTypeArticle, domain.DocumentTypeProject},
		Language:      "en",
		Status:        "published",
		PublishedFrom: &from,
		Metadata:      map[string]string{"region": "north"},
	}})

	data, err := json.Marshal(q)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, `"terms":{"document_type":["article","project"]}`)
	assert.Contains(t, body, `"term":{"language":"en"}`)
	assert.Contains(t, body, `"term":{"status":"published"}`)
	assert.Contains(t, body, `"gte":"2024-01-01T00:00:00Z"`)
	assert.Contains(t, body, `"term":{"metadata_pairs":"region=north"}`)
	assert.NotContains(t, body, "must")
}
