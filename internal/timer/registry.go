package timer

import (
	"sync/atomic"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// runView is an immutable published copy of the run. Remaining time is derived
// from it on every read, so polling cadence never drifts the clock.
type runView struct {
	snap     models.RunSnapshot
	running  bool
	deadline time.Time
	frozen   time.Duration
}

// RunRegistry holds at most one active run and publishes a lock-free view of it.
// install, release and publish must be called with Engine.mu held; Snapshot may
// be called from any goroutine.
type RunRegistry struct {
	active *runState
	view   atomic.Pointer[runView]
}

func newRunRegistry() *RunRegistry {
	g := &RunRegistry{}
	g.view.Store(&runView{snap: models.RunSnapshot{Status: models.RunStatusIdle}})
	return g
}

// Active returns the active run or nil when idle.
func (g *RunRegistry) Active() *runState {
	return g.active
}

func (g *RunRegistry) install(r *runState) {
	g.active = r
}

// release drops the active run and leaves an idle view summarising it.
func (g *RunRegistry) release(r *runState, outcome models.RunOutcome) {
	g.active = nil
	profile := r.profile
	g.view.Store(&runView{snap: models.RunSnapshot{
		RunID:       r.id,
		Status:      models.RunStatusIdle,
		CycleIndex:  r.cycleIndex,
		Cycles:      r.cycles,
		AutoAdvance: r.autoAdvance,
		Profile:     &profile,
		LastOutcome: outcome,
	}})
}

func (g *RunRegistry) publish(now time.Time) {
	r := g.active
	if r == nil {
		return
	}
	g.view.Store(&runView{
		snap:     r.snapshot(now),
		running:  r.status == models.RunStatusRunning,
		deadline: r.deadline,
		frozen:   r.frozen,
	})
}

// Snapshot returns the published view with remaining time computed at now.
// Pointer fields are shared with the published view and must not be modified.
func (g *RunRegistry) Snapshot(now time.Time) models.RunSnapshot {
	v := g.view.Load()
	snap := v.snap
	if v.running {
		rem := v.deadline.Sub(now)
		if rem < 0 {
			rem = 0
		}
		snap.RemainingSeconds = ceilSeconds(rem)
		end := v.deadline
		snap.PhaseEndsAt = &end
		return snap
	}
	snap.RemainingSeconds = ceilSeconds(v.frozen)
	return snap
}
