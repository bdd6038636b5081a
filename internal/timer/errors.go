package timer

import (
	"errors"
	"fmt"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// Sentinel errors returned by engine commands. Callers match them with errors.Is.
var (
	// ErrAlreadyRunning is returned by Start and Begin while another run is active.
	ErrAlreadyRunning = errors.New("a timer run is already active")
	// ErrInvalidTransition is returned when a command is not valid for the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownProfile is returned when the requested profile is not registered.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrEmptyPlan is returned by Begin when the day plan has no blocks.
	ErrEmptyPlan = errors.New("day plan has no blocks")
	// ErrNoPendingConfirmation is returned by Confirm when nothing awaits confirmation.
	ErrNoPendingConfirmation = errors.New("no confirmation is pending")
	// ErrInvalidBlock is returned by Begin when a block has no usable duration.
	ErrInvalidBlock = errors.New("invalid block")
)

// TransitionError reports a command rejected by the current run status.
type TransitionError struct {
	Command string
	Status  models.RunStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", ErrInvalidTransition, e.Command, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
