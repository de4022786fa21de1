// Package cache holds short-lived autocomplete results keyed by prefix,
// language and limit.
package cache

import (
	"context"
	"strconv"
)

// Key identifies one cached autocomplete answer.
type Key struct {
	Prefix   string
	Language string
	Limit    int
}

func (k Key) String() string {
	return k.Language + ":" + strconv.Itoa(k.Limit) + ":" + k.Prefix
}

// SuggestionCache stores autocomplete results. Implementations never fail a
// request: backend errors are reported as misses.
type SuggestionCache interface {
	Get(ctx context.Context, key Key) ([]string, bool)
	Set(ctx context.Context, key Key, values []string)
	// InvalidateLanguage drops every entry of the language.
	InvalidateLanguage(ctx context.Context, language string)
}

// Noop never stores anything.
type Noop struct{}

var _ SuggestionCache = Noop{}

func (Noop) Get(context.Context, Key) ([]string, bool)  { return nil, false }
func (Noop) Set(context.Context, Key, []string)         {}
func (Noop) InvalidateLanguage(context.Context, string) {}
