// Package ranking scores, highlights and fuzzily compares text using bleve
// analyzers, independent of the document store in use.
package ranking

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/de"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/es"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/fr"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/it"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/utafrali/contentsearch/internal/domain"
)

// NeutralAnalyzerName is used for languages without a dedicated analyzer.
const NeutralAnalyzerName = "content_neutral"

// SupportedLanguages lists languages with stemming analyzers.
var SupportedLanguages = []string{"en", "es", "fr", "pt", "de", "it"}

// Analyzers resolves a bleve analyzer per language. All analyzers are
// built up front so lookups are safe for concurrent use.
type Analyzers struct {
	byLang  map[string]analysis.Analyzer
	neutral analysis.Analyzer
}

// NewAnalyzers builds the language analyzers and the neutral fallback
// (unicode tokenizer + lower-case).
func NewAnalyzers() (*Analyzers, error) {
	cache := registry.NewCache()

	neutral, err := cache.DefineAnalyzer(NeutralAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("define neutral analyzer: %w", err)
	}

	a := &Analyzers{byLang: make(map[string]analysis.Analyzer, len(SupportedLanguages)), neutral: neutral}
	for _, lang := range SupportedLanguages {
		an, err := cache.AnalyzerNamed(lang)
		if err != nil {
			return nil, fmt.Errorf("load %s analyzer: %w", lang, err)
		}
		a.byLang[lang] = an
	}
	return a, nil
}

// MustAnalyzers is NewAnalyzers for wiring and tests; it panics when the
// bleve registry is missing an analyzer.
func MustAnalyzers() *Analyzers {
	a, err := NewAnalyzers()
	if err != nil {
		panic(err)
	}
	return a
}

// BaseLanguage reduces "en-US" or "EN" to "en".
func BaseLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// For returns the analyzer for language, or the neutral analyzer.
func (a *Analyzers) For(language string) analysis.Analyzer {
	if an, ok := a.byLang[BaseLanguage(language)]; ok {
		return an
	}
	return a.neutral
}

// Supported reports whether language has a dedicated analyzer.
func (a *Analyzers) Supported(language string) bool {
	_, ok := a.byLang[BaseLanguage(language)]
	return ok
}

// Tokens analyzes text with the language's analyzer.
func (a *Analyzers) Tokens(language, text string) analysis.TokenStream {
	if text == "" {
		return nil
	}
	return a.For(language).Analyze([]byte(text))
}

// Terms returns the distinct analyzed terms of text in order of first
// appearance.
func (a *Analyzers) Terms(language, text string) []string {
	tokens := a.Tokens(language, text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		t := string(tok.Term)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

func (a *Analyzers) sortedTerms(language, text string) []string {
	terms := a.Terms(language, text)
	slices.Sort(terms)
	return terms
}

// Vector derives a document's search vector with its own language's
// analyzer.
func (a *Analyzers) Vector(doc *domain.Document) domain.SearchVector {
	return domain.SearchVector{
		Title:   a.sortedTerms(doc.Language, doc.Title),
		Content: a.sortedTerms(doc.Language, doc.Content),
		Author:  a.sortedTerms(doc.Language, doc.AuthorName),
	}
}
