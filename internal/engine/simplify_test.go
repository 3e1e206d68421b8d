package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lazypower/visarea/internal/store"
)

func TestSimplify(t *testing.T) {
	locs := []store.Location{
		{ID: "first"},
		{ID: "flat", Score: store.AreaScore(0.001)},
		{ID: "corner", Score: store.AreaScore(2)},
		{ID: "edge", Score: store.Unremovable()},
		{ID: "exact", Score: store.AreaScore(0.5)},
		{ID: "last"},
	}

	ids := func(ls []store.Location) []string {
		var out []string
		for _, l := range ls {
			out = append(out, l.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		minArea float64
		want    []string
	}{
		{"zero keeps all", 0, []string{"first", "flat", "corner", "edge", "exact", "last"}},
		{"drops small areas", 0.5, []string{"first", "corner", "edge", "exact", "last"}},
		{"keeps boundaries", 10, []string{"first", "edge", "last"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(Simplify(locs, tt.minArea))); diff != "" {
				t.Errorf("kept mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
