package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes embeddings by exact text.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, Vector]
}

// NewCached wraps inner with an LRU cache holding up to size vectors.
func NewCached(inner Embedder, size int) (*Cached, error) {
	c, err := lru.New[string, Vector](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *Cached) Dims() int { return c.inner.Dims() }

// Len returns the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }
