package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lazypower/visarea/internal/store"
)

func TestReadJSONL(t *testing.T) {
	input := `{"id":"a","node":"bus-7","lat":52.1,"lon":4.3,"ts":1000}

# comment lines are skipped
{"node":"bus-7","lat":0,"lon":0,"ts":2000}`

	locs, err := Read(strings.NewReader(input), JSONL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []*store.Location{
		{ID: "a", NodeID: "bus-7", Lat: 52.1, Lon: 4.3, Timestamp: 1000},
		{NodeID: "bus-7", Lat: 0, Lon: 0, Timestamp: 2000},
	}
	if diff := cmp.Diff(want, locs); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
}

func TestReadJSONLErrorsCarryLineNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad json", `{"node":"n","lat":1,"lon":1,"ts":1}` + "\n{nope", "line 2"},
		{"missing lat", `{"node":"n","lon":1,"ts":1}`, "missing lat"},
		{"missing node", `{"lat":1,"lon":1,"ts":1}`, "missing node"},
		{"missing ts", "\n\n" + `{"node":"n","lat":1,"lon":1}`, "line 3: missing ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), JSONL)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "node,lat,lon,ts\nbus-7, 52.1, 4.3, 1000\nbus-8,1.5,-2.25,2000,loc-9\n"

	locs, err := Read(strings.NewReader(input), CSV)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []*store.Location{
		{NodeID: "bus-7", Lat: 52.1, Lon: 4.3, Timestamp: 1000},
		{ID: "loc-9", NodeID: "bus-8", Lat: 1.5, Lon: -2.25, Timestamp: 2000},
	}
	if diff := cmp.Diff(want, locs); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVWithoutHeader(t *testing.T) {
	locs, err := Read(strings.NewReader("n,1,2,3\n"), CSV)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(locs) != 1 || locs[0].Timestamp != 3 {
		t.Errorf("locs = %+v", locs)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad lat", "node,lat,lon,ts\nn,north,2,3\n", "line 2: lat"},
		{"too few fields", "n,1,2\n", "line 1: want 4 or 5 fields"},
		{"bad ts", "n,1,2,3\nn,1,2,yesterday\n", "line 2: ts"},
		{"empty node", "n,1,2,3\n,1,2,4\n", "line 2: missing node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), CSV)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracks.jsonl")
	if err := os.WriteFile(path, []byte(`{"node":"n","lat":1,"lon":2,"ts":3}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	locs, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}

	_, err = ReadFile(filepath.Join(dir, "tracks.gpx"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestChunkByNode(t *testing.T) {
	loc := func(node string, ts int64) *store.Location {
		return &store.Location{NodeID: node, Timestamp: ts}
	}
	locs := []*store.Location{
		loc("a", 1), loc("b", 1), loc("a", 2), loc("c", 1),
		loc("b", 2), loc("c", 2), loc("c", 3), loc("d", 1),
	}

	chunks := ChunkByNode(locs, 4)

	var got [][]string
	for _, chunk := range chunks {
		var nodes []string
		for _, l := range chunk {
			nodes = append(nodes, l.NodeID)
		}
		got = append(got, nodes)
	}
	want := [][]string{
		{"a", "a", "b", "b"},
		{"c", "c", "c", "d"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkByNodeOversizedNode(t *testing.T) {
	var locs []*store.Location
	for i := 0; i < 5; i++ {
		locs = append(locs, &store.Location{NodeID: "big", Timestamp: int64(i + 1)})
	}
	locs = append(locs, &store.Location{NodeID: "small", Timestamp: 1})

	chunks := ChunkByNode(locs, 2)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 5 {
		t.Errorf("oversized node was split: %d", len(chunks[0]))
	}
}

func TestNodes(t *testing.T) {
	locs := []*store.Location{{NodeID: "b"}, {NodeID: "a"}, {NodeID: "b"}}
	if diff := cmp.Diff([]string{"b", "a"}, Nodes(locs)); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
}
