package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/model"
	"github.com/rickgao/realtime-client/internal/version"
	"github.com/rickgao/realtime-client/internal/view"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Channels is the part of the connection manager the server reads.
type Channels interface {
	Snapshots() []connection.Snapshot
	Stats() connection.ManagerStats
	Enqueue(id connection.ID, msg any) error
}

// Pinger checks a dependency, such as the journal database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's dependencies. Board, Gatherer and Journal are
// optional; their routes report 404 or skip the check when unset.
type Options struct {
	Channels    Channels
	Board       *view.Board
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Journal     Pinger
	Logger      *slog.Logger
}

// Health is the /health response body.
type Health struct {
	Status     string                  `json:"status"`
	Version    version.Info            `json:"version"`
	Channels   []connection.Snapshot   `json:"channels"`
	Stats      connection.ManagerStats `json:"stats"`
	Components map[string]any          `json:"components,omitempty"`
}

// NewHandler builds the status router.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	h := &handlers{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, opts.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.leaderboard)
		r.Post("/leaderboard/refresh", h.refreshLeaderboard)
		r.Get("/presence", h.presence)
		r.Get("/notifications", h.notifications)
	})
	return r
}

// Server runs the status handler on an address.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on :port.
func NewServer(port int, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewHandler(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}

type handlers struct {
	opts Options
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body := Health{
		Status:     StatusHealthy,
		Version:    version.Get(),
		Channels:   []connection.Snapshot{},
		Components: make(map[string]any),
	}
	if h.opts.Channels != nil {
		body.Channels = h.opts.Channels.Snapshots()
		body.Stats = h.opts.Channels.Stats()
	}
	for _, s := range body.Channels {
		if s.State == connection.StateFailed {
			body.Status = StatusDegraded
		}
	}

	if h.opts.Journal != nil {
		if err := h.opts.Journal.Ping(ctx); err != nil {
			body.Status = StatusUnhealthy
			body.Components["journal"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			body.Components["journal"] = "connected"
		}
	}

	code := http.StatusOK
	if body.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, body)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.opts.Board == nil {
		http.NotFound(w, r)
		return
	}
	updated, _ := h.opts.Board.UpdatedAt()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"rows":       h.opts.Board.Leaderboard(),
		"updated_at": updated,
	})
}

func (h *handlers) refreshLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.opts.Channels == nil {
		http.NotFound(w, r)
		return
	}
	// Failed and Closed channels never flush.
	for _, s := range h.opts.Channels.Snapshots() {
		if s.ID == connection.Leaderboard && s.State.Terminal() {
			http.Error(w, "leaderboard channel is "+s.State.String(), http.StatusServiceUnavailable)
			return
		}
	}
	err := h.opts.Channels.Enqueue(connection.Leaderboard, model.RefreshLeaderboard)
	if errors.Is(err, connection.ErrUnknownChannel) {
		http.Error(w, "leaderboard channel is not active", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *handlers) presence(w http.ResponseWriter, r *http.Request) {
	if h.opts.Board == nil {
		http.NotFound(w, r)
		return
	}
	users := h.opts.Board.Online()
	_, updated := h.opts.Board.UpdatedAt()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(users),
		"users":      users,
		"updated_at": updated,
	})
}

func (h *handlers) notifications(w http.ResponseWriter, r *http.Request) {
	if h.opts.Board == nil {
		http.NotFound(w, r)
		return
	}
	body := map[string]any{
		"notifications": h.opts.Board.Notifications(),
		"sidequests":    h.opts.Board.Sidequests(),
	}
	if lu, ok := h.opts.Board.LastLevelUp(); ok {
		body["last_level_up"] = lu
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.opts.Logger.Debug("write response", "error", err)
	}
}
