package tailcache

import "github.com/lazypower/visarea/internal/store"

// Tail is the pair of most recently observed locations for a node.
// Either side may be nil while the node has fewer than two locations.
type Tail struct {
	Older *store.Location
	Newer *store.Location

	gen uint64
}

// FromRecent builds a tail from a newest-first slice as returned by the store.
func FromRecent(recent []store.Location) Tail {
	var t Tail
	switch {
	case len(recent) >= 2:
		older, newer := recent[1], recent[0]
		t.Older, t.Newer = &older, &newer
	case len(recent) == 1:
		newer := recent[0]
		t.Newer = &newer
	}
	return t
}

// Full reports whether both neighbors are known, so a triangle can be formed.
func (t Tail) Full() bool { return t.Older != nil && t.Newer != nil }

// Empty reports whether the node has no known locations.
func (t Tail) Empty() bool { return t.Older == nil && t.Newer == nil }

// Contains reports whether a location id is part of the tail.
func (t Tail) Contains(id string) bool {
	return (t.Older != nil && t.Older.ID == id) || (t.Newer != nil && t.Newer.ID == id)
}

// Advance returns the tail after folding loc in: (t.Newer, loc).
func (t Tail) Advance(loc *store.Location) Tail {
	return Tail{Older: t.Newer, Newer: loc}
}
