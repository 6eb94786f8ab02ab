package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"ETFRotation/internal/backtest"
	"ETFRotation/internal/model"
	"ETFRotation/internal/pipeline"
	"ETFRotation/internal/recorder"
	"ETFRotation/internal/scheduler"
)

// Backend is what the HTTP surface reads from and triggers.
type Backend interface {
	Latest() *pipeline.Outcome
	RunNow(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Outcome, error)
	Chart(out *pipeline.Outcome) []byte
	RecentRuns(limit int) ([]recorder.RunSummary, error)
}

// Server exposes health, metrics and the latest run results over HTTP.
type Server struct {
	router  *mux.Router
	server  *http.Server
	backend Backend
	metrics http.Handler
}

// New creates a new HTTP server instance.
func New(addr string, backend Backend, metrics http.Handler) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		backend: backend,
		metrics: metrics,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/signal", s.signal).Methods(http.MethodGet)
	api.HandleFunc("/backtest", s.backtest).Methods(http.MethodGet)
	api.HandleFunc("/chart.png", s.chart).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.runs).Methods(http.MethodGet)
	api.HandleFunc("/run", s.run).Methods(http.MethodPost)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Interface("request_id", r.Context().Value(requestIDKey)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// latest answers 503 until the first run completes.
func (s *Server) latest(w http.ResponseWriter) *pipeline.Outcome {
	out := s.backend.Latest()
	if out == nil {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
	}
	return out
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if out := s.backend.Latest(); out != nil {
		resp["last_run_id"] = out.RunID
		resp["last_run_at"] = out.StartedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) signal(w http.ResponseWriter, r *http.Request) {
	out := s.latest(w)
	if out == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   out.RunID,
		"signal":   out.Signal,
		"excluded": out.Excluded,
	})
}

type backtestResponse struct {
	RunID    string            `json:"run_id"`
	Stats    *backtest.Stats   `json:"stats"`
	Trades   []model.Trade     `json:"trades"`
	Excluded []string          `json:"excluded,omitempty"`
	Curve    model.EquityCurve `json:"curve,omitempty"`
}

func (s *Server) backtest(w http.ResponseWriter, r *http.Request) {
	out := s.latest(w)
	if out == nil {
		return
	}
	resp := backtestResponse{RunID: out.RunID, Stats: out.Stats, Excluded: out.Excluded, Trades: []model.Trade{}}
	if out.Result != nil {
		if out.Result.Trades != nil {
			resp.Trades = out.Result.Trades
		}
		if r.URL.Query().Get("curve") == "true" {
			resp.Curve = out.Result.Curve
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	out := s.latest(w)
	if out == nil {
		return
	}
	buf := s.backend.Chart(out)
	if buf == nil {
		writeError(w, http.StatusInternalServerError, "chart unavailable")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.backend.RecentRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	notify := r.URL.Query().Get("notify") == "true"
	out, err := s.backend.RunNow(r.Context(), pipeline.RunOptions{Notify: notify})
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    out.RunID,
		"signal":    out.Signal,
		"stats":     out.Stats,
		"delivered": out.Delivered,
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}
