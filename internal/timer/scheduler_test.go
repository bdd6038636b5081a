package timer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Cockpit/internal/models"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type memRecorder struct {
	mu      sync.Mutex
	records []models.RunRecord
}

func (m *memRecorder) AddRunRecord(r models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memRecorder) all() []models.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RunRecord(nil), m.records...)
}

func testProfiles() map[string]models.PhaseProfile {
	return map[string]models.PhaseProfile{
		"classic": {FocusMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesDefault: 4, LongBreakEvery: 4},
		"short":   {FocusMinutes: 15, ShortBreakMinutes: 3, LongBreakMinutes: 10, CyclesDefault: 2},
		"deep":    {FocusMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 30, CyclesDefault: 6, LongBreakEvery: 3},
	}
}

func testSettings() models.Settings {
	return models.Settings{
		DefaultProfile:     "classic",
		AutoAdvance:        true,
		BindDefaultType:    "task",
		RequeueUnconfirmed: true,
		ConfirmBlocks:      true,
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *ManualClock, *memRecorder) {
	t.Helper()
	clock := NewManualClock(t0)
	rec := &memRecorder{}
	all := append([]Option{WithClock(clock), WithRecorder(rec), WithSettings(testSettings())}, opts...)
	e, err := NewEngine(testProfiles(), all...)
	require.NoError(t, err)
	return e, clock, rec
}

// tickAt moves the clock to at and runs one tick.
func tickAt(e *Engine, clock *ManualClock, at time.Time) models.RunSnapshot {
	clock.Set(at)
	e.Tick()
	return e.Status()
}

func TestNewEngineRejectsBadProfiles(t *testing.T) {
	_, err := NewEngine(map[string]models.PhaseProfile{
		"broken": {FocusMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesDefault: 4},
	})
	require.ErrorIs(t, err, models.ErrNonPositiveMinutes)

	_, err = NewEngine(testProfiles(), WithSettings(models.Settings{DefaultProfile: "missing"}))
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestProfilesAreNormalized(t *testing.T) {
	e, _, _ := newTestEngine(t)
	profiles := e.Profiles()
	require.Len(t, profiles, 3)
	assert.Equal(t, "short", profiles["short"].Name)
	assert.Equal(t, 2, profiles["short"].LongBreakEvery)
	assert.Equal(t, []string{"classic", "deep", "short"}, e.ProfileNames())
}

func TestInitialStatusIsIdle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	snap := e.Status()
	assert.Equal(t, models.RunStatusIdle, snap.Status)
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Nil(t, snap.Profile)
}

func TestStartInitializesFocus(t *testing.T) {
	e, _, _ := newTestEngine(t)

	snap, err := e.Start(StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, snap.Status)
	assert.Equal(t, models.PhaseFocus, snap.CurrentPhase)
	assert.Equal(t, 0, snap.CycleIndex)
	assert.Equal(t, 4, snap.Cycles)
	assert.Equal(t, 25*60, snap.RemainingSeconds)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "classic", snap.Profile.Name)
	require.NotNil(t, snap.PhaseEndsAt)
	assert.Equal(t, t0.Add(25*time.Minute), *snap.PhaseEndsAt)
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, snap.RunID, e.Status().RunID)
}

func TestStartUnknownProfile(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "nope"})
	require.ErrorIs(t, err, ErrUnknownProfile)
	assert.Equal(t, models.RunStatusIdle, e.Status().Status)
}

func TestStartWhileActiveFailsWithoutMutation(t *testing.T) {
	for _, setup := range []struct {
		name string
		fn   func(e *Engine, clock *ManualClock)
	}{
		{name: "running", fn: func(e *Engine, clock *ManualClock) {}},
		{name: "paused", fn: func(e *Engine, clock *ManualClock) {
			clock.Advance(3 * time.Minute)
			_, _ = e.Pause()
		}},
	} {
		t.Run(setup.name, func(t *testing.T) {
			e, clock, _ := newTestEngine(t)
			_, err := e.Start(StartRequest{Profile: "classic", BindName: "write report"})
			require.NoError(t, err)
			setup.fn(e, clock)
			before := e.Status()

			_, err = e.Start(StartRequest{Profile: "short"})
			require.ErrorIs(t, err, ErrAlreadyRunning)

			_, err = e.Begin([]models.Block{{Name: "A", Minutes: 10}})
			require.ErrorIs(t, err, ErrAlreadyRunning)

			after := e.Status()
			assert.Equal(t, before.RunID, after.RunID)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.CurrentPhase, after.CurrentPhase)
			assert.Equal(t, before.RemainingSeconds, after.RemainingSeconds)
			assert.Equal(t, "classic", after.Profile.Name)
			assert.Equal(t, before.Binding, after.Binding)
		})
	}
}

func TestClassicTimeline(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	steps := []struct {
		at    time.Duration
		phase models.Phase
		cycle int
	}{
		{25 * time.Minute, models.PhaseShortBreak, 0},
		{30 * time.Minute, models.PhaseFocus, 1},
		{55 * time.Minute, models.PhaseShortBreak, 1},
		{60 * time.Minute, models.PhaseFocus, 2},
		{85 * time.Minute, models.PhaseShortBreak, 2},
		{90 * time.Minute, models.PhaseFocus, 3},
		{115 * time.Minute, models.PhaseLongBreak, 3},
	}
	for _, step := range steps {
		snap := tickAt(e, clock, t0.Add(step.at))
		require.Equal(t, models.RunStatusRunning, snap.Status, "at %v", step.at)
		assert.Equal(t, step.phase, snap.CurrentPhase, "at %v", step.at)
		assert.Equal(t, step.cycle, snap.CycleIndex, "at %v", step.at)
	}

	snap := tickAt(e, clock, t0.Add(129*time.Minute+59*time.Second))
	assert.Equal(t, models.PhaseLongBreak, snap.CurrentPhase)
	assert.Equal(t, 1, snap.RemainingSeconds)

	snap = tickAt(e, clock, t0.Add(130*time.Minute))
	assert.Equal(t, models.RunStatusIdle, snap.Status)
	assert.Equal(t, 4, snap.CycleIndex)
	assert.Equal(t, models.RunOutcomeCompleted, snap.LastOutcome)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.RunOutcomeCompleted, records[0].Outcome)
	assert.Equal(t, int64(4*25*60), records[0].FocusSeconds)
	assert.Equal(t, 4, records[0].CyclesCompleted)
	assert.Equal(t, "classic", records[0].Profile)
}

func TestEveryProfileRunsToIdle(t *testing.T) {
	for name, profile := range testProfiles() {
		t.Run(name, func(t *testing.T) {
			e, clock, _ := newTestEngine(t)
			snap, err := e.Start(StartRequest{Profile: name})
			require.NoError(t, err)

			for i := 0; snap.Status == models.RunStatusRunning; i++ {
				require.Less(t, i, 100, "run never finished")
				require.NotNil(t, snap.PhaseEndsAt)
				snap = tickAt(e, clock, *snap.PhaseEndsAt)
			}
			assert.Equal(t, models.RunStatusIdle, snap.Status)
			assert.Equal(t, profile.CyclesDefault, snap.CycleIndex)
		})
	}
}

func TestLateTickCatchesUpWithoutDrift(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	snap := tickAt(e, clock, t0.Add(31*time.Minute))
	assert.Equal(t, models.PhaseFocus, snap.CurrentPhase)
	assert.Equal(t, 1, snap.CycleIndex)
	assert.Equal(t, 24*60, snap.RemainingSeconds)
	assert.Equal(t, t0.Add(55*time.Minute), *snap.PhaseEndsAt)
}

func TestCyclesOverride(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	snap, err := e.Start(StartRequest{Profile: "classic", Cycles: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Cycles)

	// One focus, then a short break (long break only every 4th), then done.
	snap = tickAt(e, clock, t0.Add(25*time.Minute))
	assert.Equal(t, models.PhaseShortBreak, snap.CurrentPhase)
	snap = tickAt(e, clock, t0.Add(30*time.Minute))
	assert.Equal(t, models.RunStatusIdle, snap.Status)
	assert.Equal(t, 1, snap.CycleIndex)
}

func TestRemainingNeverIncreasesWhileRunning(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	last := e.Status().RemainingSeconds
	for i := 0; i < 30; i++ {
		clock.Advance(997 * time.Millisecond)
		got := e.Status().RemainingSeconds
		assert.LessOrEqual(t, got, last)
		assert.GreaterOrEqual(t, got, 0)
		last = got
	}

	// Past the deadline but before the tick: clamped at zero.
	clock.Set(t0.Add(26 * time.Minute))
	assert.Equal(t, 0, e.Status().RemainingSeconds)
}

func TestPauseResumeKeepsRemaining(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	clock.Advance(10*time.Minute + 500*time.Millisecond)
	paused, err := e.Pause()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPaused, paused.Status)
	assert.Nil(t, paused.PhaseEndsAt)

	resumed, err := e.Resume()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, resumed.Status)
	assert.Equal(t, paused.RemainingSeconds, resumed.RemainingSeconds)
}

func TestPauseFreezesClock(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = e.Pause()
	require.NoError(t, err)

	// A long pause, including ticks well past the original deadline.
	snap := tickAt(e, clock, t0.Add(2*time.Hour))
	assert.Equal(t, models.RunStatusPaused, snap.Status)
	assert.Equal(t, models.PhaseFocus, snap.CurrentPhase)
	assert.Equal(t, 15*60, snap.RemainingSeconds)

	snap, err = e.Resume()
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Hour+15*time.Minute), *snap.PhaseEndsAt)

	snap = tickAt(e, clock, t0.Add(2*time.Hour+15*time.Minute))
	assert.Equal(t, models.PhaseShortBreak, snap.CurrentPhase)
}

func TestInvalidTransitions(t *testing.T) {
	e, _, _ := newTestEngine(t)

	tests := []struct {
		name    string
		command func() (models.RunSnapshot, error)
		status  models.RunStatus
	}{
		{name: "pause idle", command: e.Pause, status: models.RunStatusIdle},
		{name: "resume idle", command: e.Resume, status: models.RunStatusIdle},
		{name: "stop idle", command: e.Stop, status: models.RunStatusIdle},
		{name: "cancel idle", command: e.Cancel, status: models.RunStatusIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.command()
			require.ErrorIs(t, err, ErrInvalidTransition)
			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.Status)
		})
	}

	_, err := e.Start(StartRequest{})
	require.NoError(t, err)
	_, err = e.Resume()
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.Pause()
	require.NoError(t, err)
	_, err = e.Pause()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStopEmitsStoppedOnceThenIdle(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic", BindName: "essay"})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	snap, err := e.Stop()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusStopped, snap.Status)
	assert.Equal(t, 15*60, snap.RemainingSeconds)

	status := e.Status()
	assert.Equal(t, models.RunStatusIdle, status.Status)
	assert.Equal(t, models.RunOutcomeStopped, status.LastOutcome)
	assert.Equal(t, snap.RunID, status.RunID)

	_, err = e.Stop()
	require.ErrorIs(t, err, ErrInvalidTransition)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.RunOutcomeStopped, records[0].Outcome)
	assert.Equal(t, int64(600), records[0].FocusSeconds)
	assert.Equal(t, "task", records[0].BindType)
	assert.Equal(t, "essay", records[0].BindName)

	// A new run can start right away.
	_, err = e.Start(StartRequest{})
	require.NoError(t, err)
}

func TestFocusTimeExcludesPausesAndBreaks(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = e.Pause()
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = e.Resume()
	require.NoError(t, err)

	// Finish focus (20 more minutes) and spend 2 minutes of the break.
	snap := tickAt(e, clock, clock.Now().Add(20*time.Minute))
	require.Equal(t, models.PhaseShortBreak, snap.CurrentPhase)
	clock.Advance(2 * time.Minute)

	_, err = e.Stop()
	require.NoError(t, err)
	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, int64(25*60), records[0].FocusSeconds)
}

func TestCancelFromPaused(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	_, err := e.Start(StartRequest{})
	require.NoError(t, err)
	clock.Advance(7 * time.Minute)
	_, err = e.Pause()
	require.NoError(t, err)

	snap, err := e.Cancel()
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, snap.Status)
	assert.Equal(t, models.RunStatusIdle, e.Status().Status)
	assert.Equal(t, models.RunOutcomeCancelled, e.Status().LastOutcome)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.RunOutcomeCancelled, records[0].Outcome)
}

func TestAutoAdvanceOffEntersNextPhasePaused(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	off := false
	snap, err := e.Start(StartRequest{Profile: "classic", AutoAdvance: &off})
	require.NoError(t, err)
	assert.False(t, snap.AutoAdvance)

	snap = tickAt(e, clock, t0.Add(40*time.Minute))
	assert.Equal(t, models.RunStatusPaused, snap.Status)
	assert.Equal(t, models.PhaseShortBreak, snap.CurrentPhase)
	assert.Equal(t, 5*60, snap.RemainingSeconds)

	snap, err = e.Resume()
	require.NoError(t, err)
	assert.Equal(t, t0.Add(45*time.Minute), *snap.PhaseEndsAt)
}

func TestBindingDefaults(t *testing.T) {
	e, _, _ := newTestEngine(t)
	snap, err := e.Start(StartRequest{BindName: "  inbox zero "})
	require.NoError(t, err)
	require.NotNil(t, snap.Binding)
	assert.Equal(t, models.Binding{Type: "task", Name: "inbox zero"}, *snap.Binding)
	_, err = e.Cancel()
	require.NoError(t, err)

	snap, err = e.Start(StartRequest{BindType: "habit", BindName: "stretch"})
	require.NoError(t, err)
	assert.Equal(t, "habit", snap.Binding.Type)
	_, err = e.Cancel()
	require.NoError(t, err)

	snap, err = e.Start(StartRequest{BindType: "habit"})
	require.NoError(t, err)
	assert.Nil(t, snap.Binding)
}

func TestGatedProfileRun(t *testing.T) {
	always := func(*models.Block) bool { return true }
	e, clock, _ := newTestEngine(t, WithConfirmationPolicy(always))
	_, err := e.Start(StartRequest{Profile: "classic"})
	require.NoError(t, err)

	snap := tickAt(e, clock, t0.Add(25*time.Minute))
	require.Equal(t, models.RunStatusAwaitingConfirmation, snap.Status)
	require.NotNil(t, snap.PendingConfirmation)
	assert.Equal(t, "focus", snap.PendingConfirmation.Block.Name)

	clock.Advance(3 * time.Minute)
	snap, err = e.Confirm(true)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, snap.Status)
	assert.Equal(t, models.PhaseShortBreak, snap.CurrentPhase)
	assert.Equal(t, t0.Add(33*time.Minute), *snap.PhaseEndsAt)
}

func TestConcurrentCommandsAndReads(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch (i + j) % 6 {
				case 0:
					_, _ = e.Start(StartRequest{})
				case 1:
					_, _ = e.Pause()
				case 2:
					_, _ = e.Resume()
				case 3:
					clock.Advance(time.Minute)
					e.Tick()
				case 4:
					_, _ = e.Cancel()
				default:
					snap := e.Status()
					if snap.RemainingSeconds < 0 {
						t.Errorf("negative remaining: %d", snap.RemainingSeconds)
					}
				}
			}
		}(i)
	}
	wg.Wait()

	// Whatever happened, at most one run is active and it is consistent.
	snap := e.Status()
	if snap.Status != models.RunStatusIdle {
		_, err := e.Start(StartRequest{})
		require.ErrorIs(t, err, ErrAlreadyRunning)
	}
}
