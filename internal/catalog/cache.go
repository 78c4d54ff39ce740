package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cached remembers problems fetched by id. Problems are immutable once
// published, so entries never expire. Random always goes to the backend.
type Cached struct {
	next  Catalog
	group singleflight.Group
	mu    sync.RWMutex
	byID  map[string]Problem
}

func NewCached(next Catalog) *Cached {
	return &Cached{next: next, byID: make(map[string]Problem)}
}

func (c *Cached) Random(ctx context.Context) (Problem, error) {
	p, err := c.next.Random(ctx)
	if err != nil {
		return Problem{}, err
	}
	c.put(p)
	return p, nil
}

func (c *Cached) ByID(ctx context.Context, id string) (Problem, error) {
	c.mu.RLock()
	p, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.next.ByID(ctx, id)
	})
	if err != nil {
		return Problem{}, err
	}
	p = v.(Problem)
	c.put(p)
	return p, nil
}

func (c *Cached) put(p Problem) {
	c.mu.Lock()
	c.byID[p.ID] = p
	c.mu.Unlock()
}
