package timer

import (
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// dayPlanProfile is the profile name recorded for block-driven runs.
const dayPlanProfile = "day-plan"

// planCursor is the read cursor over a day plan. Block lengths are resolved once at Begin.
type planCursor struct {
	plan    []models.Block
	lengths []time.Duration
	index   int
}

func (c *planCursor) current() models.Block {
	return c.plan[c.index]
}

// runState is the mutable record of the single active run. It is only touched
// with Engine.mu held.
type runState struct {
	id          string
	label       string
	status      models.RunStatus
	profile     models.PhaseProfile
	cycles      int
	phase       models.Phase
	cycleIndex  int
	autoAdvance bool
	binding     *models.Binding
	startedAt   time.Time

	deadline     time.Time     // end of the current phase while running
	frozen       time.Duration // remaining time while paused or awaiting confirmation
	runningSince time.Time     // start of the current running segment
	focusElapsed time.Duration

	pending         *models.PendingConfirmation
	schedule        *planCursor
	blocksCompleted int
}

// currentBlock returns the block driving the current phase, or nil for profile runs.
func (r *runState) currentBlock() *models.Block {
	if r.schedule == nil {
		return nil
	}
	b := r.schedule.current()
	return &b
}

func (r *runState) phaseLength() time.Duration {
	if r.schedule != nil && r.phase == models.PhaseFocus {
		return r.schedule.lengths[r.schedule.index]
	}
	return r.profile.PhaseLength(r.phase)
}

func (r *runState) remaining(now time.Time) time.Duration {
	if r.status != models.RunStatusRunning {
		return r.frozen
	}
	d := r.deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// enterPhase starts the current phase at the given instant, either running or
// paused with its full length frozen.
func (r *runState) enterPhase(at time.Time, running bool) {
	length := r.phaseLength()
	if running {
		r.status = models.RunStatusRunning
		r.deadline = at.Add(length)
		r.runningSince = at
		r.frozen = 0
		return
	}
	r.status = models.RunStatusPaused
	r.deadline = time.Time{}
	r.frozen = length
}

// settle credits focus time of the current running segment up to at.
func (r *runState) settle(at time.Time) {
	if r.status != models.RunStatusRunning {
		return
	}
	end := at
	if end.After(r.deadline) {
		end = r.deadline
	}
	if r.phase == models.PhaseFocus && end.After(r.runningSince) {
		r.focusElapsed += end.Sub(r.runningSince)
	}
	r.runningSince = end
}

func (r *runState) snapshot(now time.Time) models.RunSnapshot {
	snap := models.RunSnapshot{
		RunID:            r.id,
		Status:           r.status,
		CurrentPhase:     r.phase,
		CycleIndex:       r.cycleIndex,
		Cycles:           r.cycles,
		RemainingSeconds: ceilSeconds(r.remaining(now)),
		AutoAdvance:      r.autoAdvance,
	}
	if r.status == models.RunStatusRunning {
		end := r.deadline
		snap.PhaseEndsAt = &end
	}
	started := r.startedAt
	snap.StartedAt = &started
	profile := r.profile
	snap.Profile = &profile
	if r.binding != nil {
		b := *r.binding
		snap.Binding = &b
	}
	if r.schedule != nil {
		snap.CurrentBlock = r.currentBlock()
		snap.ScheduleState = &models.ScheduleState{
			Plan:         append([]models.Block(nil), r.schedule.plan...),
			CurrentIndex: r.schedule.index,
		}
	}
	if r.pending != nil {
		p := *r.pending
		snap.PendingConfirmation = &p
	}
	return snap
}

func (r *runState) record(outcome models.RunOutcome, at time.Time) models.RunRecord {
	rec := models.RunRecord{
		ID:              r.id,
		Profile:         r.label,
		Outcome:         outcome,
		StartedAt:       r.startedAt,
		EndedAt:         at,
		FocusSeconds:    int64(r.focusElapsed / time.Second),
		CyclesCompleted: r.cycleIndex,
		BlocksCompleted: r.blocksCompleted,
	}
	if r.schedule != nil {
		rec.CyclesCompleted = 0
	}
	if r.binding != nil {
		rec.BindType = r.binding.Type
		rec.BindName = r.binding.Name
	}
	return rec
}

// ceilSeconds rounds up to whole seconds.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
