package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/visarea/internal/engine"
	"github.com/lazypower/visarea/internal/store"
	"github.com/lazypower/visarea/internal/tailcache"
)

// requestTimeout bounds engine work done on behalf of a single request.
const requestTimeout = 30 * time.Second

// defaultMaxBatchBytes caps the body of a batch upload.
const defaultMaxBatchBytes = 64 << 20

// statusClientClosedRequest is reported when the caller went away before
// the work finished. Nothing is listening for it, so it is not logged.
const statusClientClosedRequest = 499

// Server is the visarea HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time

	maxBatchBytes int64
}

// New creates a new Server over db and eng.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),

		maxBatchBytes: defaultMaxBatchBytes,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/nodes", s.handleListNodes)
		r.Post("/nodes", s.handleCreateNode)
		r.Post("/nodes/{nodeID}/locations", s.handleIngest)
		r.Get("/nodes/{nodeID}/locations", s.handleListLocations)
		r.Get("/nodes/{nodeID}/tail", s.handleTail)
		r.Get("/nodes/{nodeID}/track.geojson", s.handleTrack)
		r.Get("/nodes/{nodeID}/track.wkt", s.handleTrackWKT)

		r.Post("/locations/batch", s.handleBatch)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"uptime":       time.Since(s.started).Seconds(),
		"db":           dbOK,
		"db_path":      s.db.Path,
		"cached_tails": s.engine.CachedTails(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMalformedLocation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDuplicateLocation),
		errors.Is(err, store.ErrConflictOrMissing),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, tailcache.ErrStaleTail):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error())
}
