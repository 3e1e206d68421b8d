// Package ingest reads location files for bulk import.
//
// Two formats are accepted, chosen by file extension:
//
//	.jsonl  one object per line: {"id":"..","node":"..","lat":..,"lon":..,"ts":..}
//	.csv    node,lat,lon,ts[,id] with an optional header row
//
// ts is unix milliseconds. id is optional; missing ids are generated at
// insert time.
package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lazypower/visarea/internal/store"
)

// Format is an input file format.
type Format string

const (
	JSONL Format = "jsonl"
	CSV   Format = "csv"
)

// ErrUnknownFormat is returned for file extensions with no reader.
var ErrUnknownFormat = errors.New("unknown location file format")

// record is the JSONL line shape. Pointers tell missing from zero.
type record struct {
	ID   string   `json:"id"`
	Node string   `json:"node"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	TS   *int64   `json:"ts"`
}

// FormatOf picks the format from a path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return JSONL, nil
	case ".csv":
		return CSV, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// ReadFile reads all locations from path.
func ReadFile(path string) ([]*store.Location, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations: %w", err)
	}
	defer f.Close()

	locs, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return locs, nil
}

// Read reads all locations from r. Any malformed line fails the whole read
// with its line number.
func Read(r io.Reader, format Format) ([]*store.Location, error) {
	switch format {
	case JSONL:
		return readJSONL(r)
	case CSV:
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

func readJSONL(r io.Reader) ([]*store.Location, error) {
	var locs []*store.Location
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		loc, err := parseRecord([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		locs = append(locs, loc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan locations: %w", err)
	}
	return locs, nil
}

func parseRecord(data []byte) (*store.Location, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	switch {
	case rec.Node == "":
		return nil, errors.New("missing node")
	case rec.Lat == nil:
		return nil, errors.New("missing lat")
	case rec.Lon == nil:
		return nil, errors.New("missing lon")
	case rec.TS == nil:
		return nil, errors.New("missing ts")
	}
	return &store.Location{
		ID:        rec.ID,
		NodeID:    rec.Node,
		Lat:       *rec.Lat,
		Lon:       *rec.Lon,
		Timestamp: *rec.TS,
	}, nil
}

func readCSV(r io.Reader) ([]*store.Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var locs []*store.Location
	first := true
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(fields[0]), "node") {
				continue
			}
		}
		loc, err := parseFields(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func parseFields(fields []string) (*store.Location, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return nil, fmt.Errorf("want 4 or 5 fields, got %d", len(fields))
	}
	node := strings.TrimSpace(fields[0])
	if node == "" {
		return nil, errors.New("missing node")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("lon: %w", err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ts: %w", err)
	}
	loc := &store.Location{NodeID: node, Lat: lat, Lon: lon, Timestamp: ts}
	if len(fields) == 5 {
		loc.ID = strings.TrimSpace(fields[4])
	}
	return loc, nil
}
