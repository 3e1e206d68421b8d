package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lazypower/visarea/internal/store"
	"github.com/lazypower/visarea/internal/tailcache"
)

var (
	// ErrMalformedLocation is returned for locations missing identity,
	// coordinates or a timestamp.
	ErrMalformedLocation = errors.New("malformed location")

	// ErrDuplicateLocation is returned when a location is already part of
	// its node's tail. The tail is left untouched.
	ErrDuplicateLocation = errors.New("duplicate location")
)

// Store is the persistence the engine needs.
type Store interface {
	tailcache.Loader
	InsertLocation(ctx context.Context, loc *store.Location) error
	InsertLocations(ctx context.Context, locs []*store.Location) error
	UpdateScore(ctx context.Context, locationID string, score store.Score) error
	UpdateScores(ctx context.Context, scores map[string]store.Score) error
}

// Result is the outcome of a queued fold.
type Result struct {
	Location *store.Location
	Err      error
}

// Engine assigns effective-area scores to locations as they arrive.
// Folds for the same node run strictly in submission order; different
// nodes proceed independently.
type Engine struct {
	store Store
	cache *tailcache.Cache
	seq   *sequencer
}

// New creates an Engine over st using cache for node tails.
func New(st Store, cache *tailcache.Cache) *Engine {
	return &Engine{
		store: st,
		cache: cache,
		seq:   newSequencer(),
	}
}

// Enqueue schedules loc to be folded into its node's tail and returns a
// channel that receives the result. The fold's position in the node's
// chain is fixed before Enqueue returns. Malformed locations fail
// immediately without being queued.
func (e *Engine) Enqueue(ctx context.Context, loc *store.Location) <-chan Result {
	return e.enqueue(ctx, loc, false)
}

// AssignOne folds loc into its node's tail: the tail's newer location is
// scored against (tail.Older, tail.Newer, loc) and persisted, then the tail
// becomes (tail.Newer, loc). loc itself is returned unscored; it gets its
// score when its successor arrives.
//
// loc must not already be visible to tail loads from the store, or it is
// rejected as a duplicate. Use Ingest to store and fold in one step.
func (e *Engine) AssignOne(ctx context.Context, loc *store.Location) (*store.Location, error) {
	return wait(ctx, e.Enqueue(ctx, loc))
}

// Ingest stores loc and folds it as one step in the node's chain. The tail
// is read before the insert so the new row is never its own predecessor.
// An empty ID gets a generated one.
func (e *Engine) Ingest(ctx context.Context, loc *store.Location) (*store.Location, error) {
	if loc != nil && loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	return wait(ctx, e.enqueue(ctx, loc, true))
}

// Tail returns the node's current tail, loading it if needed.
func (e *Engine) Tail(ctx context.Context, nodeID string) (tailcache.Tail, error) {
	return e.cache.Get(ctx, nodeID)
}

// CachedTails returns the number of nodes with a tail in memory.
func (e *Engine) CachedTails() int {
	return e.cache.Len()
}

func (e *Engine) enqueue(ctx context.Context, loc *store.Location, insert bool) <-chan Result {
	ch := make(chan Result, 1)
	if err := validateLocation(loc); err != nil {
		ch <- Result{Err: err}
		return ch
	}
	e.seq.Submit(loc.NodeID, func() {
		out, err := e.fold(ctx, loc, insert)
		ch <- Result{Location: out, Err: err}
	})
	return ch
}

func wait(ctx context.Context, ch <-chan Result) (*store.Location, error) {
	select {
	case res := <-ch:
		return res.Location, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fold runs get, score, persist and swap for one location. The cache is
// only advanced after the score is durable.
func (e *Engine) fold(ctx context.Context, loc *store.Location, insert bool) (*store.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tail, err := e.cache.Get(ctx, loc.NodeID)
	if err != nil {
		return nil, fmt.Errorf("get tail %s: %w", loc.NodeID, err)
	}
	if tail.Contains(loc.ID) {
		return nil, fmt.Errorf("location %s: %w", loc.ID, ErrDuplicateLocation)
	}

	if insert {
		if err := e.store.InsertLocation(ctx, loc); err != nil {
			return nil, fmt.Errorf("insert location %s: %w", loc.ID, err)
		}
	}

	cur := *loc
	next := tail.Advance(&cur)
	// With fewer than two known predecessors the newer location is a
	// boundary point: ScoreFor would mark it unremovable, which an unset
	// score already implies, so nothing is written.
	if tail.Full() {
		score := ScoreFor(tail, loc)
		if err := e.store.UpdateScore(ctx, tail.Newer.ID, score); err != nil {
			if insert {
				// The row is stored but unfolded; make the next fold reload.
				e.cache.Invalidate(loc.NodeID)
			}
			return nil, fmt.Errorf("persist score for %s: %w", tail.Newer.ID, err)
		}
		scored := *tail.Newer
		scored.Score = score
		next.Older = &scored
	}

	if err := e.cache.Swap(loc.NodeID, tail, next); err != nil {
		log.Printf("fold %s: %v, reloading tail", loc.NodeID, err)
		e.cache.Invalidate(loc.NodeID)
		return nil, err
	}
	return loc, nil
}
