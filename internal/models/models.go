// Package models defines the core data structures for Cockpit.
//
// It includes phase profiles, day-schedule blocks, run snapshots and run records,
// which are shared across the timer engine, the stores and the HTTP API.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase identifies one timed segment of a run.
type Phase string

const (
	// PhaseFocus is a focus (work) segment.
	PhaseFocus Phase = "focus"
	// PhaseShortBreak is the break following most focus segments.
	PhaseShortBreak Phase = "short_break"
	// PhaseLongBreak is the break following every long_break_every-th focus segment.
	PhaseLongBreak Phase = "long_break"
)

// RunStatus is the lifecycle status of the single timer run.
type RunStatus string

const (
	RunStatusIdle                 RunStatus = "idle"
	RunStatusRunning              RunStatus = "running"
	RunStatusPaused               RunStatus = "paused"
	RunStatusAwaitingConfirmation RunStatus = "awaiting_confirmation"
	RunStatusStopped              RunStatus = "stopped"
	RunStatusCancelled            RunStatus = "cancelled"
)

// IsActive reports whether the status belongs to a run that still holds the registry.
func (s RunStatus) IsActive() bool {
	switch s {
	case RunStatusRunning, RunStatusPaused, RunStatusAwaitingConfirmation:
		return true
	default:
		return false
	}
}

// RunOutcome describes how a run ended.
type RunOutcome string

const (
	// RunOutcomeCompleted means every cycle (or every block of the plan) finished.
	RunOutcomeCompleted RunOutcome = "completed"
	// RunOutcomeStopped is a graceful early end; elapsed focus time still counts.
	RunOutcomeStopped RunOutcome = "stopped"
	// RunOutcomeCancelled discards the run; its focus time is not counted.
	RunOutcomeCancelled RunOutcome = "cancelled"
)

// Validation errors for profiles and blocks.
var (
	ErrEmptyProfileName    = errors.New("profile name cannot be empty")
	ErrNonPositiveMinutes  = errors.New("phase minutes must be greater than zero")
	ErrNonPositiveCycles   = errors.New("cycles_default must be greater than zero")
	ErrInvalidClock        = errors.New("time must be in HH:MM format")
	ErrNonPositiveDuration = errors.New("block has no positive duration")
	ErrPhaseTooLong        = errors.New("phase cannot exceed 24 hours")
)

// MaxPhaseMinutes caps a single phase or block.
const MaxPhaseMinutes = 24 * 60

// PhaseProfile is a named configuration of phase durations and cycle count.
type PhaseProfile struct {
	Name              string `json:"name" yaml:"-"`
	FocusMinutes      int    `json:"focus_minutes" yaml:"focus_minutes"`
	ShortBreakMinutes int    `json:"short_break_minutes" yaml:"short_break_minutes"`
	LongBreakMinutes  int    `json:"long_break_minutes" yaml:"long_break_minutes"`
	CyclesDefault     int    `json:"cycles_default" yaml:"cycles_default"`
	LongBreakEvery    int    `json:"long_break_every" yaml:"long_break_every"`
}

// Normalize fills defaults that are derived from other fields.
func (p *PhaseProfile) Normalize() {
	if p.LongBreakEvery <= 0 {
		p.LongBreakEvery = p.CyclesDefault
	}
}

// Validate checks the profile invariants.
func (p PhaseProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProfileName
	}
	if p.FocusMinutes <= 0 || p.ShortBreakMinutes <= 0 || p.LongBreakMinutes <= 0 {
		return fmt.Errorf("profile %q: %w", p.Name, ErrNonPositiveMinutes)
	}
	if p.FocusMinutes > MaxPhaseMinutes || p.ShortBreakMinutes > MaxPhaseMinutes || p.LongBreakMinutes > MaxPhaseMinutes {
		return fmt.Errorf("profile %q: %w", p.Name, ErrPhaseTooLong)
	}
	if p.CyclesDefault <= 0 {
		return fmt.Errorf("profile %q: %w", p.Name, ErrNonPositiveCycles)
	}
	return nil
}

// PhaseLength returns the configured length of a phase.
func (p PhaseProfile) PhaseLength(phase Phase) time.Duration {
	switch phase {
	case PhaseFocus:
		return time.Duration(p.FocusMinutes) * time.Minute
	case PhaseShortBreak:
		return time.Duration(p.ShortBreakMinutes) * time.Minute
	case PhaseLongBreak:
		return time.Duration(p.LongBreakMinutes) * time.Minute
	default:
		return 0
	}
}

// Block is a named, timed segment of a day schedule. Blocks are owned by the
// day-schedule store; the timer engine only reads them.
type Block struct {
	Name       string `json:"name" yaml:"name"`
	Start      string `json:"start,omitempty" yaml:"start,omitempty"` // HH:MM
	End        string `json:"end,omitempty" yaml:"end,omitempty"`     // HH:MM
	Minutes    int    `json:"minutes,omitempty" yaml:"minutes,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	IsParallel bool   `json:"is_parallel,omitempty" yaml:"is_parallel,omitempty"`
}

// Duration returns the block length. Minutes wins when set; otherwise the
// length is derived from Start and End, wrapping past midnight.
func (b Block) Duration() (time.Duration, error) {
	if b.Minutes > MaxPhaseMinutes {
		return 0, fmt.Errorf("block %q: %w", b.Name, ErrPhaseTooLong)
	}
	if b.Minutes > 0 {
		return time.Duration(b.Minutes) * time.Minute, nil
	}
	if b.Start == "" || b.End == "" {
		return 0, fmt.Errorf("block %q: %w", b.Name, ErrNonPositiveDuration)
	}
	start, err := ParseClock(b.Start)
	if err != nil {
		return 0, fmt.Errorf("block %q start: %w", b.Name, err)
	}
	end, err := ParseClock(b.End)
	if err != nil {
		return 0, fmt.Errorf("block %q end: %w", b.Name, err)
	}
	d := end - start
	if d < 0 {
		d += 24 * time.Hour
	}
	if d <= 0 {
		return 0, fmt.Errorf("block %q: %w", b.Name, ErrNonPositiveDuration)
	}
	return d, nil
}

// ParseClock parses an HH:MM wall-clock time into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidClock)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock formats an offset from midnight as HH:MM, wrapping at 24h.
func FormatClock(d time.Duration) string {
	d %= 24 * time.Hour
	if d < 0 {
		d += 24 * time.Hour
	}
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// Binding points a run at an external tracked item. It is opaque to the engine.
type Binding struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// PendingConfirmation is the just-finished block awaiting a yes/no.
type PendingConfirmation struct {
	Block       Block     `json:"block"`
	Index       int       `json:"index"`
	RequestedAt time.Time `json:"requested_at"`
}

// ScheduleState is the read cursor over a day plan.
type ScheduleState struct {
	Plan         []Block `json:"plan"`
	CurrentIndex int     `json:"current_index"`
}

// RunSnapshot is the read model polled by the dashboard.
type RunSnapshot struct {
	RunID               string               `json:"run_id,omitempty"`
	Status              RunStatus            `json:"status"`
	CurrentPhase        Phase                `json:"current_phase,omitempty"`
	CycleIndex          int                  `json:"cycle_index"`
	Cycles              int                  `json:"cycles,omitempty"`
	RemainingSeconds    int                  `json:"remaining_seconds"`
	PhaseEndsAt         *time.Time           `json:"phase_ends_at,omitempty"`
	StartedAt           *time.Time           `json:"started_at,omitempty"`
	AutoAdvance         bool                 `json:"auto_advance"`
	Profile             *PhaseProfile        `json:"profile,omitempty"`
	Binding             *Binding             `json:"binding,omitempty"`
	CurrentBlock        *Block               `json:"current_block,omitempty"`
	ScheduleState       *ScheduleState       `json:"schedule_state,omitempty"`
	PendingConfirmation *PendingConfirmation `json:"pending_confirmation,omitempty"`
	LastOutcome         RunOutcome           `json:"last_outcome,omitempty"`
}

// RunRecord is the history entry written when a run ends.
type RunRecord struct {
	ID              string     `json:"id"`
	Profile         string     `json:"profile"`
	Outcome         RunOutcome `json:"outcome"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         time.Time  `json:"ended_at"`
	FocusSeconds    int64      `json:"focus_seconds"`
	CyclesCompleted int        `json:"cycles_completed"`
	BlocksCompleted int        `json:"blocks_completed"`
	BindType        string     `json:"bind_type,omitempty"`
	BindName        string     `json:"bind_name,omitempty"`
}

// Totals aggregates run records. Cancelled runs only contribute to CancelledRuns.
type Totals struct {
	Since           time.Time `json:"since"`
	CompletedRuns   int       `json:"completed_runs"`
	StoppedRuns     int       `json:"stopped_runs"`
	CancelledRuns   int       `json:"cancelled_runs"`
	FocusSeconds    int64     `json:"focus_seconds"`
	CyclesCompleted int       `json:"cycles_completed"`
	BlocksCompleted int       `json:"blocks_completed"`
}

// Add folds a record into the totals.
func (t *Totals) Add(r RunRecord) {
	switch r.Outcome {
	case RunOutcomeCancelled:
		t.CancelledRuns++
		return
	case RunOutcomeCompleted:
		t.CompletedRuns++
	case RunOutcomeStopped:
		t.StoppedRuns++
	}
	t.FocusSeconds += r.FocusSeconds
	t.CyclesCompleted += r.CyclesCompleted
	t.BlocksCompleted += r.BlocksCompleted
}

// Settings are the operator defaults consumed at run start.
type Settings struct {
	DefaultProfile     string `json:"default_profile" yaml:"default_profile"`
	AutoAdvance        bool   `json:"auto_advance" yaml:"auto_advance"`
	BindDefaultType    string `json:"bind_default_type" yaml:"bind_default_type"`
	RequeueUnconfirmed bool   `json:"requeue_unconfirmed" yaml:"requeue_unconfirmed"`
	ConfirmBlocks      bool   `json:"confirm_blocks" yaml:"confirm_blocks"`
	DayStartCron       string `json:"day_start_cron,omitempty" yaml:"day_start_cron,omitempty"`
}
