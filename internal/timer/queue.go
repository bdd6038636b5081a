package timer

import (
	"fmt"
	"math"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// BlockQueue feeds an ordered day plan to the scheduler one block at a time.
// Blocks are consumed strictly in the order supplied; is_parallel is metadata only.
type BlockQueue struct{}

// Plan validates blocks and builds a cursor positioned on the first one.
func (q *BlockQueue) Plan(blocks []models.Block) (*planCursor, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyPlan
	}
	lengths := make([]time.Duration, len(blocks))
	for i, b := range blocks {
		d, err := b.Duration()
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrInvalidBlock, i, err)
		}
		lengths[i] = d
	}
	return &planCursor{
		plan:    append([]models.Block(nil), blocks...),
		lengths: lengths,
	}, nil
}

// Load points the run at the cursor's current block as a one-cycle profile.
func (q *BlockQueue) Load(r *runState) {
	c := r.schedule
	r.profile = blockProfile(c.current(), c.lengths[c.index])
	r.phase = models.PhaseFocus
	r.cycles = 1
	r.cycleIndex = 0
}

// Advance moves to the next block and restarts the run in place.
// It returns false when the plan is exhausted; the caller then idles the run.
func (q *BlockQueue) Advance(r *runState, at time.Time, running bool) bool {
	c := r.schedule
	if c.index+1 >= len(c.plan) {
		return false
	}
	c.index++
	q.Load(r)
	r.enterPhase(at, running)
	return true
}

// blockProfile derives the implicit one-cycle profile for a block.
func blockProfile(b models.Block, length time.Duration) models.PhaseProfile {
	return models.PhaseProfile{
		Name:           "block:" + b.Name,
		FocusMinutes:   int(math.Ceil(length.Minutes())),
		CyclesDefault:  1,
		LongBreakEvery: 1,
	}
}
