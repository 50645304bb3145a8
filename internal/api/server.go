package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/triage/internal/ingest"
	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/query"
	"github.com/MikeSquared-Agency/triage/internal/record"
	"github.com/MikeSquared-Agency/triage/internal/responder"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

const (
	defaultRecentLimit = 10
	maxIngestBody      = 10 << 20
)

// Ingester runs an ingest cycle. A nil source means the configured one.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source) processor.Report
}

type Deps struct {
	Store     *store.Store
	Responder *responder.Generator
	Ingester  Ingester
	APIToken  string
	Logger    *slog.Logger
}

type Server struct {
	router  *chi.Mux
	port    int
	http    *http.Server
	store   *store.Store
	query   *query.Engine
	replies *responder.Generator
	ingest  Ingester
	logger  *slog.Logger
	started time.Time
}

func NewServer(port int, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		store:   d.Store,
		query:   query.New(d.Store),
		replies: d.Responder,
		ingest:  d.Ingester,
		logger:  d.Logger,
		started: time.Now().UTC(),
	}

	router.Get("/health", s.health)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(d.APIToken))
		r.Get("/triage/status", s.status)
		r.Get("/records", s.listRecords)
		r.Get("/records/recent", s.recentRecords)
		r.Get("/records/{id}", s.getRecord)
		r.Get("/records/{id}/reply", s.draftReply)
		r.Get("/records/{id}/quick-replies", s.quickReplies)
		r.Get("/stats", s.stats)
		r.Get("/volume", s.volume)
		r.Post("/ingest", s.runIngest)
	})

	return s
}

// Handler exposes the router, mainly for embedding in tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the token. An empty token
// disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := "Bearer " + token
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != want {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"agent":     "triage",
		"status":    "ok",
		"records":   s.store.Len(),
		"startedAt": s.started,
	}
	if loaded := s.store.LoadedAt(); !loaded.IsZero() {
		resp["loadedAt"] = loaded
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filters{
		Query:     q.Get("query"),
		Sender:    q.Get("sender"),
		Priority:  record.Priority(q.Get("priority")),
		Sentiment: record.Sentiment(q.Get("sentiment")),
		Category:  q.Get("category"),
	}
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"start", &f.Start}, {"end", &f.End}} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, ok := ingest.ParseTimestamp(v)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", bound.name, v))
			return
		}
		*bound.dst = t
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	field, err := query.ParseSortField(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := query.ParseSortOrder(q.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs := s.query.Search(f)
	query.Sort(recs, field, order)
	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"count":   len(recs),
	})
}

func (s *Server) recentRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	recs := s.store.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"count":   len(recs),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (record.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, ok := s.store.ByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id))
	}
	return rec, ok
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) draftReply(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.replies.Generate(rec))
}

func (s *Server) quickReplies(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recordId": rec.ID,
		"replies":  s.replies.QuickReplies(rec),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Stats())
}

func (s *Server) volume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"days": s.query.Volume()})
}

type ingestResponse struct {
	processor.Report
	Error string `json:"error,omitempty"`
}

// runIngest ingests a CSV request body, or the configured source when the
// body is empty.
func (s *Server) runIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest not available")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var src ingest.Source
	if len(body) > 0 {
		src = ingest.NewReaderSource("http:"+middleware.GetReqID(r.Context()), body, s.logger)
	}

	rep := s.ingest.Ingest(r.Context(), src)
	resp := ingestResponse{Report: rep}
	code := http.StatusOK
	switch {
	case errors.Is(rep.Err, ingest.ErrNoSource):
		code = http.StatusBadRequest
	case rep.Err != nil:
		code = http.StatusBadGateway
	}
	if rep.Err != nil {
		resp.Error = rep.Err.Error()
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
