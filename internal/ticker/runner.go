// Package ticker drives the engine's phase clock on a fixed interval.
package ticker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is used when a non-positive interval is configured.
const DefaultInterval = time.Second

// Ticker is anything that evaluates phase boundaries when poked.
type Ticker interface {
	Tick()
}

// Runner calls Tick on a fixed interval until its context is cancelled.
type Runner struct {
	target   Ticker
	interval time.Duration
}

// NewRunner creates a Runner for target.
func NewRunner(target Ticker, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{target: target, interval: interval}
}

// Interval returns the effective tick interval.
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Run ticks once immediately and then on every interval. It blocks until ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("Runner.Run: starting ticker", "interval", r.interval)

	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.target.Tick()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Runner.Run: stopping")
			return
		case <-t.C:
			r.target.Tick()
		}
	}
}
