package engine

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/lazypower/visarea/internal/store"
	"github.com/lazypower/visarea/internal/tailcache"
)

// pointOf projects a location onto the plane as (lon, lat).
func pointOf(loc *store.Location) orb.Point {
	return orb.Point{loc.Lon, loc.Lat}
}

// TriangleArea returns the planar area of the closed triangle a→b→c→a.
// Collinear points yield 0.
func TriangleArea(a, b, c orb.Point) float64 {
	return math.Abs(planar.Area(orb.Ring{a, b, c, a}))
}

// ScoreFor scores the tail's newer location given its successor next.
// A tail without two known locations marks the boundary and yields the
// unremovable sentinel without touching the geometry.
func ScoreFor(tail tailcache.Tail, next *store.Location) store.Score {
	if !tail.Full() {
		return store.Unremovable()
	}
	return store.AreaScore(TriangleArea(pointOf(tail.Older), pointOf(tail.Newer), pointOf(next)))
}
