package timer

import (
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// ConfirmationPolicy decides whether the end of a phase needs human confirmation.
// block is the block driving the phase, or nil for a bare profile run.
type ConfirmationPolicy func(block *models.Block) bool

// ConfirmBlocks gates every phase that was driven by a day-plan block.
func ConfirmBlocks(block *models.Block) bool {
	return block != nil
}

// ConfirmNever lets every phase end advance on its own.
func ConfirmNever(*models.Block) bool {
	return false
}

// ConfirmationGate holds a run in awaiting_confirmation until the operator
// says whether the finished block was actually done.
type ConfirmationGate struct {
	policy ConfirmationPolicy
}

// NewConfirmationGate creates a gate using policy, defaulting to ConfirmBlocks.
func NewConfirmationGate(policy ConfirmationPolicy) *ConfirmationGate {
	if policy == nil {
		policy = ConfirmBlocks
	}
	return &ConfirmationGate{policy: policy}
}

// Required reports whether the run's current phase end must be confirmed.
func (g *ConfirmationGate) Required(r *runState) bool {
	return g.policy(r.currentBlock())
}

// Request parks the run in awaiting_confirmation with its clock frozen at zero.
func (g *ConfirmationGate) Request(r *runState, at time.Time) {
	pending := &models.PendingConfirmation{RequestedAt: at}
	if r.schedule != nil {
		pending.Block = r.schedule.current()
		pending.Index = r.schedule.index
	} else {
		pending.Block = models.Block{Name: string(r.phase)}
		pending.Index = r.cycleIndex
	}
	r.pending = pending
	r.status = models.RunStatusAwaitingConfirmation
	r.frozen = 0
	r.deadline = time.Time{}
}

// Resolve clears the outstanding confirmation and returns it.
func (g *ConfirmationGate) Resolve(r *runState) (*models.PendingConfirmation, error) {
	if r == nil || r.pending == nil {
		return nil, ErrNoPendingConfirmation
	}
	p := r.pending
	r.pending = nil
	return p, nil
}
