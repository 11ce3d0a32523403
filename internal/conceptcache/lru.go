// Package conceptcache memoizes terminology concept lookups. Module ids of
// reference set concepts are looked up once per branch, so a branch-scoped key
// is always safe to reuse.
package conceptcache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"refsync/internal/remote/terminology"
)

const DefaultLRUSize = 50_000

func key(branch, conceptID string) string {
	return branch + "|" + conceptID
}

// LRU is an in-process bounded cache.
type LRU struct {
	cache *lru.Cache[string, terminology.ConceptSummary]
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New[string, terminology.ConceptSummary](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

func (l *LRU) Get(_ context.Context, branch, conceptID string) (*terminology.ConceptSummary, bool) {
	v, ok := l.cache.Get(key(branch, conceptID))
	if !ok {
		return nil, false
	}
	return &v, true
}

func (l *LRU) Set(_ context.Context, branch, conceptID string, c *terminology.ConceptSummary) {
	if c == nil {
		return
	}
	l.cache.Add(key(branch, conceptID), *c)
}

func (l *LRU) Len() int {
	return l.cache.Len()
}
