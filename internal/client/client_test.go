package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Cockpit/internal/api"
	"github.com/BTreeMap/Cockpit/internal/config"
	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/schedule"
	"github.com/BTreeMap/Cockpit/internal/store"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	client *Client
	engine *timer.Engine
	clock  *timer.ManualClock
	dayDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timer.NewManualClock(t0)
	history := store.NewInMemoryStore()
	engine, err := timer.NewEngine(config.DefaultProfiles(),
		timer.WithClock(clock),
		timer.WithRecorder(history),
		timer.WithSettings(config.DefaultSettings()),
	)
	require.NoError(t, err)

	dayDir := t.TempDir()
	server := api.NewServer(engine,
		api.WithHistory(history),
		api.WithDays(schedule.NewStore(dayDir)),
		api.WithClock(clock),
	)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &fixture{client: New(ts.URL + "/"), engine: engine, clock: clock, dayDir: dayDir}
}

func TestNewDefaults(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultURL, c.baseURL)
	assert.Equal(t, 10*time.Second, c.http.Timeout)

	custom := &http.Client{}
	c = New("http://example.test/", WithHTTPClient(custom))
	assert.Equal(t, "http://example.test", c.baseURL)
	assert.Same(t, custom, c.http)
}

func TestClientRunLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusIdle, snap.Status)

	snap, err = f.client.Start(ctx, timer.StartRequest{Profile: "short", Cycles: 2, BindType: "task", BindName: "inbox"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, snap.Status)
	assert.Equal(t, 2, snap.Cycles)
	require.NotNil(t, snap.Binding)
	assert.Equal(t, "inbox", snap.Binding.Name)

	snap, err = f.client.Command(ctx, "pause")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPaused, snap.Status)

	snap, err = f.client.Command(ctx, "resume")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, snap.Status)

	f.clock.Advance(5 * time.Minute)
	snap, err = f.client.Command(ctx, "stop")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusStopped, snap.Status)

	records, err := f.client.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RunOutcomeStopped, records[0].Outcome)
	assert.Equal(t, int64(300), records[0].FocusSeconds)

	totals, err := f.client.Stats(ctx, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, totals.StoppedRuns)
	assert.Equal(t, int64(300), totals.FocusSeconds)
}

func TestClientErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.Start(ctx, timer.StartRequest{Profile: "nope"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "nope")

	_, err = f.client.Command(ctx, "resume")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "HTTP 409")

	_, err = f.client.Confirm(ctx, true)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = f.client.Command(ctx, "explode")
	require.Error(t, err)
	assert.False(t, errors.As(err, &apiErr))
}

func TestClientDayPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(f.dayDir, "2026-10-19.yaml"), []byte(`
blocks:
  - {name: Writing, start: "09:00", end: "09:30"}
  - {name: Review, start: "10:00", minutes: 15}
`), 0o644))

	snap, err := f.client.StartDay(ctx, "today")
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentBlock)
	assert.Equal(t, "Writing", snap.CurrentBlock.Name)

	f.clock.Advance(30 * time.Minute)
	f.engine.Tick()
	snap, err = f.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusAwaitingConfirmation, snap.Status)

	snap, err = f.client.Confirm(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "Review", snap.CurrentBlock.Name)

	day, err := f.client.Reschedule(ctx, 15, "10:00")
	require.NoError(t, err)
	require.Len(t, day.Blocks, 2)
	assert.Equal(t, "09:00", day.Blocks[0].Start)
	assert.Equal(t, "10:15", day.Blocks[1].Start)

	profiles, err := f.client.Profiles(ctx)
	require.NoError(t, err)
	assert.Contains(t, profiles, "classic")
	assert.Equal(t, 25, profiles["classic"].FocusMinutes)
}

func TestClientRejectsNonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Status(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "invalid JSON response", apiErr.Message)
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, WithTimeout(time.Second)).Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/timer/status")
}
