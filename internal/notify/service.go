// Package notify delivers timer phase events to the operator's sinks
// (a webhook, a local command) off the engine's hot path.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// Constants for Service configuration
const (
	// DefaultChannelBufferSize is the number of events held while sinks are busy
	DefaultChannelBufferSize = 64
	// DefaultDeliveryTimeout bounds a single sink delivery
	DefaultDeliveryTimeout = 10 * time.Second
)

// ErrStopped is returned by Start on a service that was already stopped.
var ErrStopped = errors.New("notify service stopped")

// Sink is one notification destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev models.PhaseEvent) error
}

// Service fans phase events out to sinks from a single worker goroutine.
// It implements timer.Notifier.
type Service struct {
	sinks   []Sink
	events  chan models.PhaseEvent
	timeout time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a service over sinks. Nil sinks are skipped.
func NewService(sinks ...Sink) *Service {
	s := &Service{
		events:  make(chan models.PhaseEvent, DefaultChannelBufferSize),
		timeout: DefaultDeliveryTimeout,
	}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	slog.Debug("Service.NewService: created", "sinks", len(s.sinks))
	return s
}

// Sinks returns the configured sink names.
func (s *Service) Sinks() []string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return names
}

// Notify enqueues ev without blocking. Events are dropped when the buffer is full
// or the service has stopped.
func (s *Service) Notify(ev models.PhaseEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.events <- ev:
	default:
		slog.Warn("Service.Notify: event buffer full, dropping event", "kind", ev.Kind, "run_id", ev.RunID)
	}
}

// Start launches the delivery worker. It returns immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	slog.Info("Service.Start: notification worker started", "sinks", s.Sinks())
	return nil
}

// Stop drains queued events and waits for the worker to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.events)
	started := s.started
	s.mu.Unlock()

	if started {
		s.wg.Wait()
		s.cancel()
	}
	slog.Info("Service.Stop: notification worker stopped")
	return nil
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	for ev := range s.events {
		s.deliver(ctx, ev)
	}
}

func (s *Service) deliver(ctx context.Context, ev models.PhaseEvent) {
	for _, sink := range s.sinks {
		dctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := sink.Deliver(dctx, ev)
		cancel()
		if err != nil {
			slog.Error("Service.deliver: sink failed", "sink", sink.Name(), "kind", ev.Kind, "run_id", ev.RunID, "error", err)
			continue
		}
		slog.Debug("Service.deliver: delivered", "sink", sink.Name(), "kind", ev.Kind, "run_id", ev.RunID)
	}
}
