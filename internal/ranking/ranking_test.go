package ranking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
)

var testAnalyzers = MustAnalyzers()

func stripMarks(s string) string {
	s = strings.ReplaceAll(s, MarkOpen, "")
	return strings.ReplaceAll(s, MarkClose, "")
}

func TestAnalyzers_StemmingPerLanguage(t *testing.T) {
	terms := testAnalyzers.Terms("en", "Running runners run")
	assert.Contains(t, terms, "run")
	assert.Equal(t, len(terms), len(uniq(terms)))

	assert.True(t, testAnalyzers.Supported("EN-us"))
	assert.False(t, testAnalyzers.Supported("tr"))
}

func TestAnalyzers_NeutralFallback(t *testing.T) {
	terms := testAnalyzers.Terms("tr", "Merhaba Dünya merhaba")
	assert.Equal(t, []string{"merhaba", "dünya"}, terms)
}

func TestAnalyzers_Vector(t *testing.T) {
	doc := &domain.Document{
		Title:      "Clean Water Initiative",
		Content:    "Bringing water to villages",
		AuthorName: "Ana Lima",
		Language:   "en",
	}
	v := testAnalyzers.Vector(doc)
	assert.True(t, sortedStrings(v.Title))
	assert.True(t, sortedStrings(v.Content))
	assert.Equal(t, []string{"ana", "lima"}, v.Author)
	assert.Contains(t, v.Title, "water")
}

func TestWeightedMatcher_TitleOnly(t *testing.T) {
	v := testAnalyzers.Vector(&domain.Document{
		Title: "Clean Water Initiative", Content: "Nothing related", Language: "en",
	})
	score, ok := DefaultMatcher().Match(testAnalyzers.Terms("en", "clean water"), v)
	require.True(t, ok)
	assert.InDelta(t, 3.0/4.5, score, 1e-9)
}

func TestWeightedMatcher_AllFields(t *testing.T) {
	v := domain.SearchVector{Title: []string{"water"}, Content: []string{"water"}, Author: []string{"water"}}
	score, ok := DefaultMatcher().Match([]string{"water"}, v)
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestWeightedMatcher_Conjunctive(t *testing.T) {
	v := domain.SearchVector{Title: []string{"clean", "water"}}
	_, ok := DefaultMatcher().Match([]string{"water", "fire"}, v)
	assert.False(t, ok)
}

func TestWeightedMatcher_PrefixTerms(t *testing.T) {
	v := domain.SearchVector{Content: []string{"sustain", "water"}}
	score, ok := DefaultMatcher().Match([]string{"sus"}, v)
	require.True(t, ok)
	assert.InDelta(t, 1.0/4.5, score, 1e-9)

	_, ok = DefaultMatcher().Match([]string{"ust"}, v)
	assert.False(t, ok)
}

func TestWeightedMatcher_NoTerms(t *testing.T) {
	score, ok := DefaultMatcher().Match(nil, domain.SearchVector{})
	assert.True(t, ok)
	assert.Zero(t, score)
}

func TestHighlighter_Title(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 200)
	got := h.Title("en", "Clean Water Initiative", testAnalyzers.Terms("en", "water"))
	assert.Equal(t, "Clean <mark>Water</mark> Initiative", got)
}

func TestHighlighter_TitleEscapesHTML(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 200)
	got := h.Title("en", "Water <b>now</b>", []string{"water"})
	assert.Equal(t, "<mark>Water</mark> &lt;b&gt;now&lt;/b&gt;", got)
}

func TestHighlighter_PreviewShortContent(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 200)
	got := h.Preview("en", "Fresh water for everyone", []string{"water"})
	assert.Equal(t, "Fresh <mark>water</mark> for everyone", got)
}

func TestHighlighter_PreviewCentersOnFirstMatch(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 200)
	content := strings.Repeat("lorem ipsum ", 50) + "water " + strings.Repeat("dolor sit ", 50)

	got := h.Preview("en", content, []string{"water"})
	assert.True(t, strings.HasPrefix(got, Ellipsis))
	assert.True(t, strings.HasSuffix(got, Ellipsis))
	assert.Contains(t, got, "<mark>water</mark>")

	body := strings.TrimSuffix(strings.TrimPrefix(stripMarks(got), Ellipsis), Ellipsis)
	assert.Equal(t, 200, utf8.RuneCountInString(body))
}

func TestHighlighter_PreviewWithoutMatchStartsAtBeginning(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 20)
	content := "The quick brown fox jumps over the lazy dog"

	got := h.Preview("en", content, []string{"zebra"})
	assert.Equal(t, "The quick brown fox "+Ellipsis, got)
}

func TestHighlighter_PreviewMultibyte(t *testing.T) {
	h := NewHighlighter(testAnalyzers, 10)
	content := strings.Repeat("é", 30) + " água " + strings.Repeat("ñ", 30)

	got := h.Preview("pt", content, testAnalyzers.Terms("pt", "água"))
	assert.True(t, utf8.ValidString(got))
	body := strings.TrimSuffix(strings.TrimPrefix(stripMarks(got), Ellipsis), Ellipsis)
	assert.Equal(t, 10, utf8.RuneCountInString(body))
	assert.Contains(t, got, MarkOpen)
}

func TestJaroWinkler(t *testing.T) {
	jw := DefaultFuzzy()
	assert.Equal(t, 1.0, jw.Similarity("water", "water"))
	assert.Zero(t, jw.Similarity("", "water"))
	assert.Greater(t, jw.Similarity("watr", "water"), 0.8)
	assert.Less(t, jw.Similarity("xyz", "water"), 0.3)
}

func uniq(s []string) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, v := range s {
		m[v] = struct{}{}
	}
	return m
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
