// Package api exposes the Cockpit timer engine over HTTP.
//
// Every response uses the models.APIResponse envelope. Engine errors map to
// status codes in errorStatus.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/schedule"
	"github.com/BTreeMap/Cockpit/internal/store"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

// Server defaults.
const (
	DefaultAddr            = ":8787"
	DefaultShutdownTimeout = 10 * time.Second
)

// Engine is the timer surface the server drives.
type Engine interface {
	Status() models.RunSnapshot
	Profiles() map[string]models.PhaseProfile
	Start(req timer.StartRequest) (models.RunSnapshot, error)
	Begin(blocks []models.Block) (models.RunSnapshot, error)
	Pause() (models.RunSnapshot, error)
	Resume() (models.RunSnapshot, error)
	Stop() (models.RunSnapshot, error)
	Cancel() (models.RunSnapshot, error)
	Confirm(completed bool) (models.RunSnapshot, error)
}

// Opts holds optional server configuration.
type Opts struct {
	Addr    string
	History store.Store
	Days    *schedule.Store
	Clock   timer.Clock
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithHistory sets the run history store backing /api/timer/history and /stats.
func WithHistory(s store.Store) Option {
	return func(o *Opts) { o.History = s }
}

// WithDays sets the day plan store backing /api/day and /api/today.
func WithDays(d *schedule.Store) Option {
	return func(o *Opts) { o.Days = d }
}

// WithClock sets the clock used to resolve day targets. Defaults to the system clock.
func WithClock(c timer.Clock) Option {
	return func(o *Opts) { o.Clock = c }
}

// Server is the HTTP front of the engine.
type Server struct {
	engine  Engine
	history store.Store
	days    *schedule.Store
	clock   timer.Clock
	addr    string
}

// NewServer creates a server over engine.
func NewServer(engine Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.History == nil {
		cfg.History = store.NewInMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = timer.SystemClock{}
	}
	return &Server{
		engine:  engine,
		history: cfg.History,
		days:    cfg.Days,
		clock:   cfg.Clock,
		addr:    cfg.Addr,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)

	mux.HandleFunc("/api/timer/status", s.statusHandler)
	mux.HandleFunc("/api/timer/profiles", s.profilesHandler)
	mux.HandleFunc("/api/timer/history", s.historyHandler)
	mux.HandleFunc("/api/timer/stats", s.statsHandler)
	mux.HandleFunc("/api/timer/start", s.startHandler)
	mux.HandleFunc("/api/timer/pause", s.commandHandler("pause", s.engine.Pause))
	mux.HandleFunc("/api/timer/resume", s.commandHandler("resume", s.engine.Resume))
	mux.HandleFunc("/api/timer/stop", s.commandHandler("stop", s.engine.Stop))
	mux.HandleFunc("/api/timer/cancel", s.commandHandler("cancel", s.engine.Cancel))
	mux.HandleFunc("/api/timer/confirm", s.confirmHandler)

	mux.HandleFunc("/api/day/start", s.dayStartHandler)
	mux.HandleFunc("/api/today/reschedule", s.rescheduleHandler)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: API server failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		return nil
	}
}

// StartDay begins a block-driven run over the plan for target
// (today, tomorrow, yesterday or YYYY-MM-DD).
func (s *Server) StartDay(target string) (models.RunSnapshot, error) {
	if s.days == nil {
		return models.RunSnapshot{}, errNoSchedule
	}
	day, err := s.days.BlocksFor(target, s.clock.Now())
	if err != nil {
		return models.RunSnapshot{}, err
	}
	slog.Debug("Server.StartDay: loaded plan", "date", day.Date, "blocks", len(day.Blocks))
	return s.engine.Begin(day.Blocks)
}
