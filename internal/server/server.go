package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/feed"
	"github.com/Henry6262/opus-x-sub001/internal/metrics"
)

// Options configure the API server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the feed session over a read-only HTTP API plus a
// WebSocket push channel for the rendering layer.
type Server struct {
	opts    Options
	session *feed.Session
	metrics *metrics.Metrics
	logger  zerolog.Logger
	router  *mux.Router
	hub     *hub
}

// New constructs the API server around a session.
func New(opts Options, session *feed.Session, m *metrics.Metrics, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8090"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		opts:    opts,
		session: session,
		metrics: m,
		logger:  logger.With().Str("component", "server").Logger(),
		hub:     newHub(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/decisions", s.handleDecisions).Methods(http.MethodGet)
	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/ranked", s.handleRanked).Methods(http.MethodGet)
	api.HandleFunc("/flash", s.handleFlash).Methods(http.MethodGet)
	api.HandleFunc("/scores/history", s.handleScoreHistory).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast pushes an update frame to every WebSocket subscriber.
func (s *Server) Broadcast(kind string, payload any) {
	s.hub.broadcast(kind, payload)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	writeJSON(w, http.StatusOK, envelope{Data: s.session.Decisions(limit)})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	writeJSON(w, http.StatusOK, envelope{Data: s.session.Activity(limit)})
}

func (s *Server) handleRanked(w http.ResponseWriter, r *http.Request) {
	includeExpired := r.URL.Query().Get("include_expired") == "true"
	writeJSON(w, http.StatusOK, envelope{Data: s.session.Ranked(includeExpired)})
}

func (s *Server) handleFlash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Data: s.session.Flashes()})
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "mint query parameter is required"})
		return
	}
	points := s.session.History(mint)
	if points == nil {
		points = []feed.ScorePoint{}
	}
	writeJSON(w, http.StatusOK, envelope{Data: points})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.session.ID()})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The rendering layer is served from another origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.add(conn)
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
