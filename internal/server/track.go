package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/lazypower/visarea/internal/engine"
	"github.com/lazypower/visarea/internal/store"
)

// trackLocations loads a node's stored track in timestamp order, simplified
// by the optional min_area query parameter.
func (s *Server) trackLocations(w http.ResponseWriter, r *http.Request) ([]store.Location, bool) {
	nodeID := chi.URLParam(r, "nodeID")

	minArea := 0.0
	if v := r.URL.Query().Get("min_area"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid min_area %q", v))
			return nil, false
		}
		minArea = f
	}

	if _, err := s.db.GetNode(r.Context(), nodeID); err != nil {
		fail(w, r, err)
		return nil, false
	}
	locs, err := s.db.ListLocations(r.Context(), nodeID, 0)
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return engine.Simplify(locs, minArea), true
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	locs, ok := s.trackLocations(w, r)
	if !ok {
		return
	}

	body, err := trackGeoJSON(chi.URLParam(r, "nodeID"), locs)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

func (s *Server) handleTrackWKT(w http.ResponseWriter, r *http.Request) {
	locs, ok := s.trackLocations(w, r)
	if !ok {
		return
	}

	line := make(orb.LineString, len(locs))
	for i, loc := range locs {
		line[i] = orb.Point{loc.Lon, loc.Lat}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, wkt.MarshalString(line))
}

// trackGeoJSON renders a track as a FeatureCollection: one LineString for the
// whole track followed by a Point per location carrying its score.
func trackGeoJSON(nodeID string, locs []store.Location) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	coords := make([][]float64, len(locs))
	for i, loc := range locs {
		coords[i] = []float64{loc.Lon, loc.Lat}
	}
	if len(coords) >= 2 {
		line := geojson.NewLineStringFeature(coords)
		line.SetProperty("node", nodeID)
		line.SetProperty("points", len(locs))
		fc.AddFeature(line)
	}

	for i, loc := range locs {
		pt := geojson.NewPointFeature(coords[i])
		pt.ID = loc.ID
		pt.SetProperty("node", nodeID)
		pt.SetProperty("ts", loc.Timestamp)
		pt.SetProperty("score", scoreValue(loc.Score))
		fc.AddFeature(pt)
	}

	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal track %s: %w", nodeID, err)
	}
	return b, nil
}
