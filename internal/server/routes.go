package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/visarea/internal/ingest"
	"github.com/lazypower/visarea/internal/store"
	"github.com/lazypower/visarea/internal/tailcache"
)

type locationJSON struct {
	ID    string  `json:"id"`
	Node  string  `json:"node"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	TS    int64   `json:"ts"`
	Score any     `json:"score"`
}

type nodeJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func toLocationJSON(loc *store.Location) *locationJSON {
	if loc == nil {
		return nil
	}
	return &locationJSON{
		ID:    loc.ID,
		Node:  loc.NodeID,
		Lat:   loc.Lat,
		Lon:   loc.Lon,
		TS:    loc.Timestamp,
		Score: scoreValue(loc.Score),
	}
}

// scoreValue renders a score as a number, "inf" for unremovable points, or
// null when unset.
func scoreValue(s store.Score) any {
	switch s.Kind {
	case store.ScoreArea:
		return s.Area
	case store.ScoreUnremovable:
		return "inf"
	default:
		return nil
	}
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.db.ListNodes(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		out[i] = nodeJSON{ID: n.ID, Name: n.Name, CreatedAt: n.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(out),
		"nodes": out,
	})
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	n, err := s.db.EnsureNode(r.Context(), req.ID, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nodeJSON{ID: n.ID, Name: n.Name, CreatedAt: n.CreatedAt})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var req struct {
		ID  string   `json:"id"`
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
		TS  int64    `json:"ts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	loc, err := s.engine.Ingest(ctx, &store.Location{
		ID:        req.ID,
		NodeID:    nodeID,
		Lat:       *req.Lat,
		Lon:       *req.Lon,
		Timestamp: req.TS,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationJSON(loc))
}

// handleBatch stores and scores a body of locations in one AssignMany pass.
// The body is JSONL, or CSV when sent as text/csv. Every node must exist.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	format := ingest.JSONL
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "text/csv" {
		format = ingest.CSV
	}

	locs, err := ingest.Read(http.MaxBytesReader(w, r.Body, s.maxBatchBytes), format)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("batch body exceeds %d bytes", tooLarge.Limit))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(locs) == 0 {
		writeError(w, http.StatusBadRequest, "no locations")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	nodes := ingest.Nodes(locs)
	for _, id := range nodes {
		if _, err := s.db.GetNode(ctx, id); err != nil {
			fail(w, r, err)
			return
		}
	}

	if _, err := s.engine.IngestMany(ctx, locs); err != nil {
		fail(w, r, err)
		return
	}

	scored := 0
	for _, loc := range locs {
		if loc.Score.IsSet() {
			scored++
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ingested": len(locs),
		"scored":   scored,
		"nodes":    len(nodes),
	})
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", l))
			return
		}
		limit = n
	}

	if _, err := s.db.GetNode(r.Context(), nodeID); err != nil {
		fail(w, r, err)
		return
	}
	locs, err := s.db.ListLocations(r.Context(), nodeID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}

	out := make([]*locationJSON, len(locs))
	for i := range locs {
		out[i] = toLocationJSON(&locs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":      nodeID,
		"count":     len(out),
		"locations": out,
	})
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tail, err := s.engine.Tail(ctx, nodeID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tailJSON(nodeID, tail))
}

func tailJSON(nodeID string, t tailcache.Tail) map[string]any {
	return map[string]any{
		"node":  nodeID,
		"older": toLocationJSON(t.Older),
		"newer": toLocationJSON(t.Newer),
		"full":  t.Full(),
	}
}
