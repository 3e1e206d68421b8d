// Package tailcache memoizes the last two known locations of every node.
//
// The cache does not serialize writers. Callers that fold new locations into
// a tail must order their Get/Set pairs per node themselves; Swap detects a
// writer that raced past them.
package tailcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lazypower/visarea/internal/store"
)

// ErrStaleTail is returned by Swap when the tail changed since it was read.
var ErrStaleTail = errors.New("stale tail")

// tailSize is how many recent locations make up a tail.
const tailSize = 2

// Loader fetches the most recent locations of a node, newest first.
type Loader interface {
	RecentLocations(ctx context.Context, nodeID string, limit int) ([]store.Location, error)
}

// Cache maps node ids to their current tail.
type Cache struct {
	loader      Loader
	loadTimeout time.Duration
	group       singleflight.Group

	mu    sync.Mutex
	tails map[string]Tail
	gens  map[string]uint64
}

// New creates an empty cache backed by loader. A zero loadTimeout means
// loads are bounded only by the caller's context.
func New(loader Loader, loadTimeout time.Duration) *Cache {
	return &Cache{
		loader:      loader,
		loadTimeout: loadTimeout,
		tails:       make(map[string]Tail),
		gens:        make(map[string]uint64),
	}
}

// Get returns the node's tail, loading it from the store on first use.
// Concurrent first callers share a single load.
func (c *Cache) Get(ctx context.Context, nodeID string) (Tail, error) {
	c.mu.Lock()
	if t, ok := c.tails[nodeID]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(nodeID, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), nodeID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Tail{}, res.Err
		}
		return res.Val.(Tail), nil
	case <-ctx.Done():
		return Tail{}, ctx.Err()
	}
}

// load reads the tail from the store and installs it unless a Set or
// Invalidate happened while the read was in flight.
func (c *Cache) load(ctx context.Context, nodeID string) (Tail, error) {
	c.mu.Lock()
	gen := c.gens[nodeID]
	c.mu.Unlock()

	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	recent, err := c.loader.RecentLocations(ctx, nodeID, tailSize)
	if err != nil {
		return Tail{}, fmt.Errorf("load tail %s: %w", nodeID, err)
	}
	t := FromRecent(recent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.tails[nodeID]; ok {
		return cur, nil
	}
	t.gen = gen
	if c.gens[nodeID] == gen {
		c.tails[nodeID] = t
	}
	return t, nil
}

// Peek returns the memoized tail without loading.
func (c *Cache) Peek(nodeID string) (Tail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tails[nodeID]
	return t, ok
}

// Set replaces the node's tail unconditionally.
func (c *Cache) Set(nodeID string, t Tail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(nodeID, t)
}

func (c *Cache) setLocked(nodeID string, t Tail) {
	c.gens[nodeID]++
	t.gen = c.gens[nodeID]
	c.tails[nodeID] = t
}

// Swap replaces the node's tail with next only if old is still the current
// tail. Otherwise it returns ErrStaleTail and leaves the cache untouched.
func (c *Cache) Swap(nodeID string, old, next Tail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.tails[nodeID]
	if !ok || cur.gen != old.gen {
		return fmt.Errorf("swap tail %s: %w", nodeID, ErrStaleTail)
	}
	c.setLocked(nodeID, next)
	return nil
}

// Invalidate drops the node's tail so the next Get reloads it from the store.
func (c *Cache) Invalidate(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tails, nodeID)
	c.gens[nodeID]++
	c.group.Forget(nodeID)
}

// Len returns the number of memoized tails.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tails)
}
