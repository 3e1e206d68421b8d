package server

import (
	"net/http"
	"strings"
	"testing"

	geojson "github.com/paulmach/go.geojson"
)

func TestTrackGeoJSON(t *testing.T) {
	srv, _ := testServer(t)
	createNode(t, srv, "bus-7")
	ingestSquare(t, srv, "bus-7")

	w := do(t, srv, "GET", "/api/nodes/bus-7/track.geojson", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %q", ct)
	}

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != 5 {
		t.Fatalf("expected line + 4 points, got %d features", len(fc.Features))
	}

	line := fc.Features[0]
	if !line.Geometry.IsLineString() || len(line.Geometry.LineString) != 4 {
		t.Errorf("first feature = %v, want 4-point LineString", line.Geometry.Type)
	}
	if got := line.Geometry.LineString[1]; got[0] != 1 || got[1] != 0 {
		t.Errorf("second vertex = %v, want lon,lat [1 0]", got)
	}

	var scores []any
	for _, f := range fc.Features[1:] {
		if !f.Geometry.IsPoint() {
			t.Fatalf("feature %v is not a point", f.ID)
		}
		scores = append(scores, f.Properties["score"])
	}
	want := []any{nil, 0.5, 0.5, nil}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("point %d score = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestTrackSimplified(t *testing.T) {
	srv, _ := testServer(t)
	createNode(t, srv, "bus-7")
	ingestSquare(t, srv, "bus-7")

	// Both interior corners score 0.5, so a higher threshold leaves the ends.
	w := do(t, srv, "GET", "/api/nodes/bus-7/track.wkt?min_area=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != "LINESTRING(0 0,0 1)" {
		t.Errorf("wkt = %q", got)
	}

	w = do(t, srv, "GET", "/api/nodes/bus-7/track.wkt", "")
	if got := strings.TrimSpace(w.Body.String()); got != "LINESTRING(0 0,1 0,1 1,0 1)" {
		t.Errorf("wkt = %q", got)
	}
}

func TestTrackErrors(t *testing.T) {
	srv, _ := testServer(t)
	createNode(t, srv, "a")

	if w := do(t, srv, "GET", "/api/nodes/a/track.geojson?min_area=big", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad min_area status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "GET", "/api/nodes/ghost/track.geojson", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown node status = %d, want 404", w.Code)
	}

	w := do(t, srv, "GET", "/api/nodes/a/track.geojson", "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty track status = %d", w.Code)
	}
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("empty track has %d features", len(fc.Features))
	}
}
