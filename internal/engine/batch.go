package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/lazypower/visarea/internal/store"
	"github.com/lazypower/visarea/internal/tailcache"
)

// AssignMany scores a bulk set of locations without reading tails from the
// store. Per node, locations are sorted newest first; the two newest become
// the node's tail, and every interior point is scored against its two
// timestamp neighbors. The newest and the oldest location of each node are
// left unscored. All scores are persisted in one round trip; on failure
// nothing is considered durable and the cache is left as it was.
//
// Nodes with fewer than two locations in the batch get no seed tail; their
// cached tail is dropped so the next fold reloads it from the store.
func (e *Engine) AssignMany(ctx context.Context, locs []*store.Location) ([]*store.Location, error) {
	return e.assignMany(ctx, locs, false)
}

// IngestMany stores locs and scores them as one batch. The insert happens
// while the involved nodes are held, so no single fold observes a
// half-ingested batch. Empty IDs get generated ones.
//
// Unlike AssignMany it reads each node's current tail first. A batch that
// continues a node's history is chained onto that tail, so the previously
// newest stored location and the batch's oldest location are scored too. A
// batch older than the stored tail is scored on its own and leaves the newer
// stored locations as the tail.
func (e *Engine) IngestMany(ctx context.Context, locs []*store.Location) ([]*store.Location, error) {
	for _, loc := range locs {
		if loc != nil && loc.ID == "" {
			loc.ID = uuid.NewString()
		}
	}
	return e.assignMany(ctx, locs, true)
}

func (e *Engine) assignMany(ctx context.Context, locs []*store.Location, insert bool) ([]*store.Location, error) {
	byNode := make(map[string][]*store.Location)
	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if err := validateLocation(loc); err != nil {
			return nil, err
		}
		if seen[loc.ID] {
			return nil, fmt.Errorf("location %s: %w", loc.ID, ErrDuplicateLocation)
		}
		seen[loc.ID] = true
		byNode[loc.NodeID] = append(byNode[loc.NodeID], loc)
	}

	nodeIDs := make([]string, 0, len(byNode))
	for id := range byNode {
		nodeIDs = append(nodeIDs, id)
	}
	// Holding queues in a fixed order keeps concurrent batches deadlock-free.
	sort.Strings(nodeIDs)

	for _, id := range nodeIDs {
		release, err := e.seq.Hold(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hold node %s: %w", id, err)
		}
		defer release()
	}

	stored := make(map[string][]*store.Location, len(nodeIDs))
	if insert {
		// Tails must be read before the batch rows land in the store.
		for _, id := range nodeIDs {
			tail, err := e.cache.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get tail %s: %w", id, err)
			}
			stored[id] = tailPoints(tail)
		}
		if err := e.store.InsertLocations(ctx, locs); err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
	}

	scores := make(map[string]store.Score)
	seeds := make(map[string][]*store.Location, len(nodeIDs))
	for _, id := range nodeIDs {
		sorted := newestFirst(byNode[id])
		prev := stored[id]

		chain := sorted
		if len(prev) > 0 && sorted[len(sorted)-1].Timestamp >= prev[0].Timestamp {
			chain = append(append(make([]*store.Location, 0, len(sorted)+len(prev)), sorted...), prev...)
		}
		// Walk from the third newest back to the oldest; each step scores
		// the location one position newer, which sits between the two.
		for i := 2; i < len(chain); i++ {
			tail := tailcache.Tail{Older: chain[i], Newer: chain[i-1]}
			scores[chain[i-1].ID] = ScoreFor(tail, chain[i-2])
		}

		if top := newestTwo(sorted, prev); len(top) == 2 {
			seeds[id] = top
		}
	}

	if err := e.store.UpdateScores(ctx, scores); err != nil {
		if insert {
			// The rows are stored but unscored; cached tails no longer
			// reflect the newest locations.
			for _, id := range nodeIDs {
				e.cache.Invalidate(id)
			}
		}
		return nil, fmt.Errorf("persist batch scores: %w", err)
	}

	for _, loc := range locs {
		if s, ok := scores[loc.ID]; ok {
			loc.Score = s
		}
	}
	for _, id := range nodeIDs {
		top, ok := seeds[id]
		if !ok {
			e.cache.Invalidate(id)
			continue
		}
		older, newer := *top[1], *top[0]
		if s, ok := scores[older.ID]; ok {
			older.Score = s
		}
		e.cache.Set(id, tailcache.Tail{Older: &older, Newer: &newer})
	}

	log.Printf("assign many: %d locations across %d nodes, %d scored", len(locs), len(nodeIDs), len(scores))
	return locs, nil
}

// newestFirst sorts a node's batch by timestamp, newest first. Reversed
// input order makes later entries win timestamp ties, matching the store's
// insertion tiebreak.
func newestFirst(group []*store.Location) []*store.Location {
	sorted := make([]*store.Location, len(group))
	for i, loc := range group {
		sorted[len(group)-1-i] = loc
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	return sorted
}

// tailPoints lists the known locations of a tail, newest first.
func tailPoints(t tailcache.Tail) []*store.Location {
	var pts []*store.Location
	if t.Newer != nil {
		pts = append(pts, t.Newer)
	}
	if t.Older != nil {
		pts = append(pts, t.Older)
	}
	return pts
}

// newestTwo merges two newest-first lists and keeps the first two. Batch
// rows win timestamp ties because they were stored after prev.
func newestTwo(batch, prev []*store.Location) []*store.Location {
	top := make([]*store.Location, 0, 2)
	for len(top) < 2 && len(batch)+len(prev) > 0 {
		if len(prev) == 0 || (len(batch) > 0 && batch[0].Timestamp >= prev[0].Timestamp) {
			top = append(top, batch[0])
			batch = batch[1:]
		} else {
			top = append(top, prev[0])
			prev = prev[1:]
		}
	}
	return top
}
