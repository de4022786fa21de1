package ranking

import "github.com/xrash/smetrics"

// FuzzyMatcher scores the similarity of two strings in [0,1].
type FuzzyMatcher interface {
	Similarity(a, b string) float64
}

// JaroWinkler is a FuzzyMatcher favouring shared prefixes, which suits
// autocomplete input.
type JaroWinkler struct {
	BoostThreshold float64
	PrefixSize     int
}

// DefaultFuzzy returns Jaro-Winkler with the customary 0.7 boost threshold
// and 4-rune prefix.
func DefaultFuzzy() JaroWinkler {
	return JaroWinkler{BoostThreshold: 0.7, PrefixSize: 4}
}

// Similarity implements FuzzyMatcher.
func (j JaroWinkler) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, j.BoostThreshold, j.PrefixSize)
}
