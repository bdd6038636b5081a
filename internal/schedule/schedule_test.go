package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Cockpit/internal/models"
)

var now = time.Date(2026, 10, 19, 7, 45, 0, 0, time.UTC)

func writeDay(t *testing.T, dir, date, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, date+".yaml"), []byte(body), 0o644))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{target: "", want: "2026-10-19"},
		{target: "today", want: "2026-10-19"},
		{target: "Tomorrow", want: "2026-10-20"},
		{target: "yesterday", want: "2026-10-18"},
		{target: "2026-12-31", want: "2026-12-31"},
		{target: "next week", wantErr: true},
		{target: "2026-13-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := Resolve(tt.target, now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSortsAndDerivesMinutes(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, "2026-10-19", `
blocks:
  - name: Email
    start: "11:00"
    end: "11:30"
    type: admin
  - name: Flexible
    minutes: 20
  - name: Deep work
    start: "09:00"
    end: "10:30"
    type: deep
  - name: Standup
    start: "09:00"
    minutes: 15
    is_parallel: true
`)
	s := NewStore(dir)

	day, err := s.BlocksFor("today", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", day.Date)
	require.Len(t, day.Blocks, 4)

	names := make([]string, len(day.Blocks))
	for i, b := range day.Blocks {
		names[i] = b.Name
	}
	assert.Equal(t, []string{"Deep work", "Standup", "Email", "Flexible"}, names)
	assert.Equal(t, 90, day.Blocks[0].Minutes)
	assert.Equal(t, 15, day.Blocks[1].Minutes)
	assert.True(t, day.Blocks[1].IsParallel)
	assert.Equal(t, 30, day.Blocks[2].Minutes)
	assert.Equal(t, 20, day.Blocks[3].Minutes)
}

func TestLoadMissingDay(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.BlocksFor("tomorrow", now)
	require.ErrorIs(t, err, ErrDayNotFound)
	assert.Contains(t, err.Error(), "2026-10-20")
}

func TestLoadInvalidDay(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, "2026-10-19", "blocks:\n  - name: nothing\n")
	writeDay(t, dir, "2026-10-20", "blocks: {oops")

	s := NewStore(dir)
	_, err := s.Load("2026-10-19")
	require.ErrorIs(t, err, ErrInvalidDay)
	_, err = s.Load("2026-10-20")
	require.ErrorIs(t, err, ErrInvalidDay)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans")
	s := NewStore(dir)

	day := Day{Date: "2026-10-21"}
	day.Blocks = append(day.Blocks,
		blockAt("Review", "14:00", "15:00"),
		blockAt("Write", "09:00", "11:00"),
	)
	require.NoError(t, s.Save(day))
	assert.FileExists(t, filepath.Join(dir, "2026-10-21.yaml"))

	got, err := s.Load("2026-10-21")
	require.NoError(t, err)
	assert.Equal(t, "Write", got.Blocks[0].Name)

	require.ErrorIs(t, s.Save(Day{Date: "soon"}), ErrInvalidTarget)
}

func TestReschedule(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, "2026-10-19", `
blocks:
  - {name: Early, start: "08:00", end: "09:00"}
  - {name: Focus, start: "10:00", end: "11:30"}
  - {name: Late, start: "13:00", minutes: 45}
  - {name: Floating, minutes: 10}
`)
	s := NewStore(dir)

	day, err := s.Reschedule("2026-10-19", "10:00", 30)
	require.NoError(t, err)
	require.Len(t, day.Blocks, 4)
	assert.Equal(t, "08:00", day.Blocks[0].Start)
	assert.Equal(t, "10:30", day.Blocks[1].Start)
	assert.Equal(t, "12:00", day.Blocks[1].End)
	assert.Equal(t, 90, day.Blocks[1].Minutes)
	assert.Equal(t, "13:30", day.Blocks[2].Start)
	assert.Equal(t, "Floating", day.Blocks[3].Name)

	reloaded, err := s.Load("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, day.Blocks, reloaded.Blocks)

	day, err = s.Reschedule("2026-10-19", "", -15)
	require.NoError(t, err)
	assert.Equal(t, "07:45", day.Blocks[0].Start)
	assert.Equal(t, "08:45", day.Blocks[0].End)
}

func TestRescheduleErrors(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Reschedule("2026-10-19", "", 10)
	require.ErrorIs(t, err, ErrDayNotFound)

	_, err = s.Reschedule("2026-10-19", "ten", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from")
}

func TestRescheduleStaysWithinDay(t *testing.T) {
	dir := t.TempDir()
	writeDay(t, dir, "2026-10-19", `
blocks:
  - {name: Morning, start: "09:00", end: "10:00"}
  - {name: Late, start: "23:00", end: "23:45"}
`)
	s := NewStore(dir)

	_, err := s.Reschedule("2026-10-19", "22:00", 90)
	require.ErrorIs(t, err, ErrShiftOutOfDay)
	_, err = s.Reschedule("2026-10-19", "", -10*60)
	require.ErrorIs(t, err, ErrShiftOutOfDay)
	_, err = s.Reschedule("2026-10-19", "", 24*60)
	require.ErrorIs(t, err, ErrShiftOutOfDay)

	day, err := s.Load("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Morning", day.Blocks[0].Name)
	assert.Equal(t, "23:00", day.Blocks[1].Start)

	// The start may reach 23:59; the end is free to wrap.
	day, err = s.Reschedule("2026-10-19", "22:00", 59)
	require.NoError(t, err)
	assert.Equal(t, "Morning", day.Blocks[0].Name)
	assert.Equal(t, "23:59", day.Blocks[1].Start)
	assert.Equal(t, "00:44", day.Blocks[1].End)
}

func blockAt(name, start, end string) models.Block {
	return models.Block{Name: name, Start: start, End: end}
}
