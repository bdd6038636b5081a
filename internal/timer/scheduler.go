// Package timer implements the focus/break interval engine behind the dashboard
// Timer widget.
//
// A single Engine owns at most one run. Commands and the periodic Tick are
// serialized by one mutex; Status reads a published snapshot without locking.
package timer

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/util"
)

// Recorder receives a record for every run that ends.
type Recorder interface {
	AddRunRecord(r models.RunRecord) error
}

// Notifier receives phase events. Notify is called without the engine lock
// held and must not block.
type Notifier interface {
	Notify(ev models.PhaseEvent)
}

// Opts holds optional engine configuration.
type Opts struct {
	Clock    Clock
	Recorder Recorder
	Notifier Notifier
	Settings models.Settings
	Policy   ConfirmationPolicy
}

// Option configures an Engine.
type Option func(*Opts)

// WithClock sets the clock used for deadlines. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(o *Opts) { o.Clock = c }
}

// WithRecorder sets where run records are written.
func WithRecorder(r Recorder) Option {
	return func(o *Opts) { o.Recorder = r }
}

// WithNotifier sets where phase events are sent.
func WithNotifier(n Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// WithSettings sets operator defaults (default profile, auto advance, binding type).
func WithSettings(s models.Settings) Option {
	return func(o *Opts) { o.Settings = s }
}

// WithConfirmationPolicy overrides the gate policy.
func WithConfirmationPolicy(p ConfirmationPolicy) Option {
	return func(o *Opts) { o.Policy = p }
}

// StartRequest describes a profile-driven run. Zero values fall back to settings.
type StartRequest struct {
	Profile     string `json:"profile"`
	Cycles      int    `json:"cycles,omitempty"`
	AutoAdvance *bool  `json:"auto_advance,omitempty"`
	BindType    string `json:"bind_type,omitempty"`
	BindName    string `json:"bind_name,omitempty"`
}

// Engine is the phase scheduler and the single-run registry.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	profiles map[string]models.PhaseProfile
	settings models.Settings
	registry *RunRegistry
	gate     *ConfirmationGate
	queue    *BlockQueue
	recorder Recorder
	notifier Notifier
	finished []models.RunRecord
	events   []models.PhaseEvent
}

// NewEngine creates an engine over the given profile registry.
func NewEngine(profiles map[string]models.PhaseProfile, opts ...Option) (*Engine, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	registered := make(map[string]models.PhaseProfile, len(profiles))
	for name, p := range profiles {
		p.Name = name
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		registered[name] = p
	}
	if d := cfg.Settings.DefaultProfile; d != "" {
		if _, ok := registered[d]; !ok {
			return nil, fmt.Errorf("default profile: %w: %q", ErrUnknownProfile, d)
		}
	}

	slog.Debug("Engine.NewEngine: created", "profiles", len(registered), "default_profile", cfg.Settings.DefaultProfile)
	return &Engine{
		clock:    cfg.Clock,
		profiles: registered,
		settings: cfg.Settings,
		registry: newRunRegistry(),
		gate:     NewConfirmationGate(cfg.Policy),
		queue:    &BlockQueue{},
		recorder: cfg.Recorder,
		notifier: cfg.Notifier,
	}, nil
}

// command runs fn under the engine lock, publishes the result and flushes
// finished run records after unlocking.
func (e *Engine) command(name string, fn func(now time.Time) (models.RunSnapshot, error)) (models.RunSnapshot, error) {
	e.mu.Lock()
	now := e.clock.Now()
	snap, err := fn(now)
	e.registry.publish(now)
	records, events := e.takeFinished()
	e.mu.Unlock()

	e.flush(records, events)
	if err != nil {
		slog.Warn("Engine."+name+": rejected", "error", err)
		return models.RunSnapshot{}, err
	}
	slog.Info("Engine."+name+": ok", "run_id", snap.RunID, "status", snap.Status, "phase", snap.CurrentPhase)
	return snap, nil
}

// Start begins a profile-driven run.
func (e *Engine) Start(req StartRequest) (models.RunSnapshot, error) {
	return e.command("Start", func(now time.Time) (models.RunSnapshot, error) {
		if err := e.ensureIdle(); err != nil {
			return models.RunSnapshot{}, err
		}
		name := strings.TrimSpace(req.Profile)
		if name == "" {
			name = e.settings.DefaultProfile
		}
		profile, ok := e.profiles[name]
		if !ok {
			return models.RunSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
		}
		cycles := req.Cycles
		if cycles <= 0 {
			cycles = profile.CyclesDefault
		}

		r := e.newRun(now, name, req.AutoAdvance, e.binding(req.BindType, req.BindName))
		r.profile = profile
		r.cycles = cycles
		r.phase = models.PhaseFocus
		r.enterPhase(now, true)
		e.registry.install(r)
		e.emit(r, models.EventPhaseStarted, now)
		return r.snapshot(now), nil
	})
}

// Begin starts a block-driven run over an ordered day plan.
func (e *Engine) Begin(blocks []models.Block) (models.RunSnapshot, error) {
	return e.command("Begin", func(now time.Time) (models.RunSnapshot, error) {
		if err := e.ensureIdle(); err != nil {
			return models.RunSnapshot{}, err
		}
		cursor, err := e.queue.Plan(blocks)
		if err != nil {
			return models.RunSnapshot{}, err
		}

		r := e.newRun(now, dayPlanProfile, nil, nil)
		r.schedule = cursor
		e.queue.Load(r)
		r.enterPhase(now, true)
		e.registry.install(r)
		e.emit(r, models.EventPhaseStarted, now)
		return r.snapshot(now), nil
	})
}

// Pause freezes the remaining time of a running phase.
func (e *Engine) Pause() (models.RunSnapshot, error) {
	return e.command("Pause", func(now time.Time) (models.RunSnapshot, error) {
		r, err := e.expect("pause", models.RunStatusRunning)
		if err != nil {
			return models.RunSnapshot{}, err
		}
		r.settle(now)
		r.frozen = r.remaining(now)
		r.status = models.RunStatusPaused
		r.deadline = time.Time{}
		return r.snapshot(now), nil
	})
}

// Resume restarts a paused phase with the frozen remaining time.
func (e *Engine) Resume() (models.RunSnapshot, error) {
	return e.command("Resume", func(now time.Time) (models.RunSnapshot, error) {
		r, err := e.expect("resume", models.RunStatusPaused)
		if err != nil {
			return models.RunSnapshot{}, err
		}
		r.deadline = now.Add(r.frozen)
		r.runningSince = now
		r.frozen = 0
		r.status = models.RunStatusRunning
		return r.snapshot(now), nil
	})
}

// Stop ends the run gracefully. The stopped snapshot is returned once and the
// registry goes back to idle.
func (e *Engine) Stop() (models.RunSnapshot, error) {
	return e.command("Stop", func(now time.Time) (models.RunSnapshot, error) {
		r, err := e.expect("stop", models.RunStatusRunning, models.RunStatusPaused, models.RunStatusAwaitingConfirmation)
		if err != nil {
			return models.RunSnapshot{}, err
		}
		rem := r.remaining(now)
		r.settle(now)
		r.status = models.RunStatusStopped
		r.frozen = rem
		snap := r.snapshot(now)
		e.finish(r, models.RunOutcomeStopped, now)
		return snap, nil
	})
}

// Cancel discards the run, including any pending confirmation and plan.
func (e *Engine) Cancel() (models.RunSnapshot, error) {
	return e.command("Cancel", func(now time.Time) (models.RunSnapshot, error) {
		r, err := e.expect("cancel", models.RunStatusRunning, models.RunStatusPaused, models.RunStatusAwaitingConfirmation)
		if err != nil {
			return models.RunSnapshot{}, err
		}
		rem := r.remaining(now)
		r.settle(now)
		r.status = models.RunStatusCancelled
		r.frozen = rem
		r.pending = nil
		snap := r.snapshot(now)
		snap.ScheduleState = nil
		snap.CurrentBlock = nil
		e.finish(r, models.RunOutcomeCancelled, now)
		return snap, nil
	})
}

// Confirm resolves a pending confirmation. completed=true marks the block done
// and moves to the next one; completed=false leaves it open and either requeues
// it or idles the run, per settings.
func (e *Engine) Confirm(completed bool) (models.RunSnapshot, error) {
	return e.command("Confirm", func(now time.Time) (models.RunSnapshot, error) {
		r := e.registry.Active()
		if _, err := e.gate.Resolve(r); err != nil {
			return models.RunSnapshot{}, err
		}

		if r.schedule == nil {
			if completed {
				e.advancePhase(r, now, true)
			} else {
				r.enterPhase(now, true)
				e.emit(r, models.EventPhaseStarted, now)
			}
			return e.current(now), nil
		}

		if completed {
			r.blocksCompleted++
			if !e.queue.Advance(r, now, true) {
				e.finish(r, models.RunOutcomeCompleted, now)
			} else {
				e.emit(r, models.EventPhaseStarted, now)
			}
			return e.current(now), nil
		}

		if e.settings.RequeueUnconfirmed {
			r.enterPhase(now, true)
			e.emit(r, models.EventPhaseStarted, now)
			return r.snapshot(now), nil
		}
		e.finish(r, models.RunOutcomeStopped, now)
		return e.current(now), nil
	})
}

// Tick evaluates phase boundaries at the current time. It is the only path
// that advances phases or opens a confirmation.
func (e *Engine) Tick() {
	e.mu.Lock()
	now := e.clock.Now()
	for {
		r := e.registry.Active()
		if r == nil || r.status != models.RunStatusRunning || now.Before(r.deadline) {
			break
		}
		e.phaseEnded(r)
	}
	e.registry.publish(now)
	records, events := e.takeFinished()
	e.mu.Unlock()

	e.flush(records, events)
}

// phaseEnded handles a running phase that reached its deadline. Deadlines are
// chained from the previous deadline so late ticks catch up without drift.
func (e *Engine) phaseEnded(r *runState) {
	at := r.deadline
	r.settle(at)

	if e.gate.Required(r) {
		e.gate.Request(r, at)
		e.emit(r, models.EventConfirmationRequested, at)
		slog.Info("Engine.Tick: awaiting confirmation", "run_id", r.id, "block", r.pending.Block.Name)
		return
	}

	if r.schedule != nil {
		r.blocksCompleted++
		if !e.queue.Advance(r, at, r.autoAdvance) {
			e.finish(r, models.RunOutcomeCompleted, at)
			return
		}
		e.emit(r, models.EventPhaseStarted, at)
		slog.Info("Engine.Tick: next block", "run_id", r.id, "block", r.schedule.current().Name)
		return
	}

	e.advancePhase(r, at, r.autoAdvance)
}

// advancePhase moves a profile run to its next phase or completes it.
func (e *Engine) advancePhase(r *runState, at time.Time, running bool) {
	switch r.phase {
	case models.PhaseFocus:
		if (r.cycleIndex+1)%r.profile.LongBreakEvery == 0 {
			r.phase = models.PhaseLongBreak
		} else {
			r.phase = models.PhaseShortBreak
		}
	default:
		r.cycleIndex++
		if r.cycleIndex >= r.cycles {
			e.finish(r, models.RunOutcomeCompleted, at)
			return
		}
		r.phase = models.PhaseFocus
	}
	r.enterPhase(at, running)
	e.emit(r, models.EventPhaseStarted, at)
	slog.Info("Engine.Tick: phase advanced", "run_id", r.id, "phase", r.phase, "cycle_index", r.cycleIndex, "status", r.status)
}

func (e *Engine) finish(r *runState, outcome models.RunOutcome, at time.Time) {
	e.finished = append(e.finished, r.record(outcome, at))
	e.registry.release(r, outcome)
	if e.notifier != nil {
		e.events = append(e.events, models.PhaseEvent{
			Kind: models.EventRunEnded, RunID: r.id, Profile: r.label,
			Status: models.RunStatusIdle, CycleIndex: r.cycleIndex, Outcome: outcome, At: at,
		})
	}
	slog.Info("Engine.finish: run ended", "run_id", r.id, "outcome", outcome, "focus", r.focusElapsed)
}

func (e *Engine) newRun(now time.Time, label string, autoAdvance *bool, binding *models.Binding) *runState {
	auto := e.settings.AutoAdvance
	if autoAdvance != nil {
		auto = *autoAdvance
	}
	return &runState{
		id:          util.GenerateRunID(),
		label:       label,
		autoAdvance: auto,
		binding:     binding,
		startedAt:   now,
	}
}

func (e *Engine) binding(bindType, bindName string) *models.Binding {
	name := strings.TrimSpace(bindName)
	if name == "" {
		return nil
	}
	t := strings.TrimSpace(bindType)
	if t == "" {
		t = e.settings.BindDefaultType
	}
	return &models.Binding{Type: t, Name: name}
}

func (e *Engine) ensureIdle() error {
	if r := e.registry.Active(); r != nil {
		return fmt.Errorf("%w: run %s is %s", ErrAlreadyRunning, r.id, r.status)
	}
	return nil
}

// expect returns the active run if its status is one of allowed.
func (e *Engine) expect(command string, allowed ...models.RunStatus) (*runState, error) {
	r := e.registry.Active()
	if r == nil {
		return nil, &TransitionError{Command: command, Status: models.RunStatusIdle}
	}
	for _, s := range allowed {
		if r.status == s {
			return r, nil
		}
	}
	return nil, &TransitionError{Command: command, Status: r.status}
}

// current returns the snapshot of the active run, or the idle view.
func (e *Engine) current(now time.Time) models.RunSnapshot {
	if r := e.registry.Active(); r != nil {
		return r.snapshot(now)
	}
	return e.registry.Snapshot(now)
}

// emit queues a phase event for delivery once the lock is released.
func (e *Engine) emit(r *runState, kind models.EventKind, at time.Time) {
	if e.notifier == nil {
		return
	}
	ev := models.PhaseEvent{
		Kind:       kind,
		RunID:      r.id,
		Profile:    r.label,
		Phase:      r.phase,
		Status:     r.status,
		CycleIndex: r.cycleIndex,
		Block:      r.currentBlock(),
		At:         at,
	}
	e.events = append(e.events, ev)
}

func (e *Engine) takeFinished() ([]models.RunRecord, []models.PhaseEvent) {
	records, events := e.finished, e.events
	e.finished, e.events = nil, nil
	return records, events
}

func (e *Engine) flush(records []models.RunRecord, events []models.PhaseEvent) {
	for _, ev := range events {
		e.notifier.Notify(ev)
	}
	if e.recorder == nil {
		return
	}
	for _, rec := range records {
		if err := e.recorder.AddRunRecord(rec); err != nil {
			slog.Error("Engine.flush: failed to record run", "error", err, "run_id", rec.ID, "outcome", rec.Outcome)
		}
	}
}
