// Package client talks to a running Cockpit server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/schedule"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

// DefaultURL is the server address used when none is configured.
const DefaultURL = "http://localhost:8787"

// APIError is a non-ok envelope returned by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// Opts holds optional client configuration.
type Opts struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option configures a Client.
type Option func(*Opts)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client is a typed wrapper over the Cockpit HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL. An empty baseURL means DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: cfg.HTTPClient}
}

// Do sends a request and returns the raw result field of an ok envelope.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("Client.Do: request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid JSON response"}
	}

	envelope := gjson.ParseBytes(data)
	if envelope.Get("status").String() != string(models.APIStatusOK) {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: envelope.Get("message").String()}
	}
	return []byte(envelope.Get("result").Raw), nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	raw, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) snapshot(ctx context.Context, method, path string, body interface{}) (models.RunSnapshot, error) {
	var snap models.RunSnapshot
	err := c.call(ctx, method, path, body, &snap)
	return snap, err
}

// Status fetches the current run snapshot.
func (c *Client) Status(ctx context.Context) (models.RunSnapshot, error) {
	return c.snapshot(ctx, http.MethodGet, "/api/timer/status", nil)
}

// Start begins a profile run.
func (c *Client) Start(ctx context.Context, req timer.StartRequest) (models.RunSnapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/api/timer/start", req)
}

// Command sends one of pause, resume, stop or cancel.
func (c *Client) Command(ctx context.Context, name string) (models.RunSnapshot, error) {
	switch name {
	case "pause", "resume", "stop", "cancel":
	default:
		return models.RunSnapshot{}, fmt.Errorf("unknown command %q", name)
	}
	return c.snapshot(ctx, http.MethodPost, "/api/timer/"+name, nil)
}

// Confirm resolves a pending block confirmation.
func (c *Client) Confirm(ctx context.Context, completed bool) (models.RunSnapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/api/timer/confirm", map[string]bool{"completed": completed})
}

// StartDay begins the day plan for target.
func (c *Client) StartDay(ctx context.Context, target string) (models.RunSnapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/api/day/start", map[string]string{"target": target})
}

// Reschedule shifts today's blocks starting at or after from.
func (c *Client) Reschedule(ctx context.Context, shiftMinutes int, from string) (schedule.Day, error) {
	var day schedule.Day
	err := c.call(ctx, http.MethodPost, "/api/today/reschedule", map[string]interface{}{"shift_minutes": shiftMinutes, "from": from}, &day)
	return day, err
}

// Profiles fetches the profile registry.
func (c *Client) Profiles(ctx context.Context) (map[string]models.PhaseProfile, error) {
	var profiles map[string]models.PhaseProfile
	err := c.call(ctx, http.MethodGet, "/api/timer/profiles", nil, &profiles)
	return profiles, err
}

// History fetches the most recent run records.
func (c *Client) History(ctx context.Context, limit int) ([]models.RunRecord, error) {
	path := "/api/timer/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var records []models.RunRecord
	err := c.call(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

// Stats fetches totals since the given time. A zero since means the server default.
func (c *Client) Stats(ctx context.Context, since time.Time) (models.Totals, error) {
	path := "/api/timer/stats"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339))
	}
	var totals models.Totals
	err := c.call(ctx, http.MethodGet, path, nil, &totals)
	return totals, err
}
