package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is an in-process cache with a size bound and a per-entry TTL.
type LRU struct {
	entries *expirable.LRU[string, []string]
}

var _ SuggestionCache = (*LRU)(nil)

// NewLRU creates an LRU cache holding at most size entries for ttl each.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{entries: expirable.NewLRU[string, []string](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key Key) ([]string, bool) {
	v, ok := c.entries.Get(key.String())
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (c *LRU) Set(_ context.Context, key Key, values []string) {
	c.entries.Add(key.String(), slices.Clone(values))
}

func (c *LRU) InvalidateLanguage(_ context.Context, language string) {
	prefix := language + ":"
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}
