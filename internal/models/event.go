package models

import (
	"fmt"
	"strings"
	"time"
)

// EventKind names a timer transition worth telling the operator about.
type EventKind string

const (
	// EventPhaseStarted fires when a run enters a phase, running or paused.
	EventPhaseStarted EventKind = "phase_started"
	// EventConfirmationRequested fires when a finished block waits for a yes/no.
	EventConfirmationRequested EventKind = "confirmation_requested"
	// EventRunEnded fires once per run with its outcome.
	EventRunEnded EventKind = "run_ended"
)

// PhaseEvent describes one transition of the active run.
type PhaseEvent struct {
	Kind       EventKind  `json:"kind"`
	RunID      string     `json:"run_id"`
	Profile    string     `json:"profile"`
	Phase      Phase      `json:"phase,omitempty"`
	Status     RunStatus  `json:"status"`
	CycleIndex int        `json:"cycle_index"`
	Block      *Block     `json:"block,omitempty"`
	Outcome    RunOutcome `json:"outcome,omitempty"`
	At         time.Time  `json:"at"`
}

// Message renders the event as a short human notification.
func (e PhaseEvent) Message() string {
	switch e.Kind {
	case EventPhaseStarted:
		what := strings.ReplaceAll(string(e.Phase), "_", " ")
		if e.Block != nil {
			what = fmt.Sprintf("block %q", e.Block.Name)
		}
		if e.Status == RunStatusPaused {
			return fmt.Sprintf("Up next: %s (paused, resume to start)", what)
		}
		return fmt.Sprintf("Started %s", what)
	case EventConfirmationRequested:
		name := ""
		if e.Block != nil {
			name = e.Block.Name
		}
		return fmt.Sprintf("Block %q is over. Did you finish it?", name)
	case EventRunEnded:
		return fmt.Sprintf("Run %s", e.Outcome)
	default:
		return string(e.Kind)
	}
}
