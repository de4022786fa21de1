package ranking

import (
	"sort"
	"strings"

	"github.com/utafrali/contentsearch/internal/domain"
)

// Field weights.
const (
	TitleWeight   = 3.0
	ContentWeight = 1.0
	AuthorWeight  = 0.5
)

// TextMatcher decides whether a search vector matches a set of query terms
// and how well.
type TextMatcher interface {
	Match(terms []string, v domain.SearchVector) (score float64, ok bool)
}

// WeightedMatcher requires every query term to match some field and scores
// the weighted fraction of terms found per field, normalized to [0,1].
// A term matches a vector term it equals or prefixes.
type WeightedMatcher struct {
	Title   float64
	Content float64
	Author  float64
}

// DefaultMatcher weights title 3, content 1, author 0.5.
func DefaultMatcher() WeightedMatcher {
	return WeightedMatcher{Title: TitleWeight, Content: ContentWeight, Author: AuthorWeight}
}

// Match implements TextMatcher. No terms matches everything with score 0.
func (m WeightedMatcher) Match(terms []string, v domain.SearchVector) (float64, bool) {
	if len(terms) == 0 {
		return 0, true
	}

	var inTitle, inContent, inAuthor int
	for _, term := range terms {
		t := hasPrefixTerm(v.Title, term)
		c := hasPrefixTerm(v.Content, term)
		a := hasPrefixTerm(v.Author, term)
		if !t && !c && !a {
			return 0, false
		}
		inTitle += b2i(t)
		inContent += b2i(c)
		inAuthor += b2i(a)
	}

	total := m.Title + m.Content + m.Author
	if total <= 0 {
		return 0, true
	}
	n := float64(len(terms))
	score := (m.Title*float64(inTitle) + m.Content*float64(inContent) + m.Author*float64(inAuthor)) / n / total
	return score, true
}

// hasPrefixTerm reports whether some term in sorted equals or starts with
// term.
func hasPrefixTerm(sorted []string, term string) bool {
	i := sort.SearchStrings(sorted, term)
	return i < len(sorted) && strings.HasPrefix(sorted[i], term)
}

// MatchesToken reports whether token is matched by any query term.
func MatchesToken(terms []string, token string) bool {
	for _, t := range terms {
		if strings.HasPrefix(token, t) {
			return true
		}
	}
	return false
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
