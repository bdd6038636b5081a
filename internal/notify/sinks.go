package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// WebhookSink posts each event as JSON to a URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to url. A nil client means http.DefaultClient.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSink{url: url, client: client}
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return "webhook" }

type webhookPayload struct {
	models.PhaseEvent
	Message string `json:"message"`
}

// Deliver implements Sink. Any non-2xx response is an error.
func (w *WebhookSink) Deliver(ctx context.Context, ev models.PhaseEvent) error {
	body, err := json.Marshal(webhookPayload{PhaseEvent: ev, Message: ev.Message()})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// CommandSink runs a shell command per event, with the event in its environment:
// COCKPIT_EVENT, COCKPIT_RUN_ID, COCKPIT_PROFILE, COCKPIT_PHASE, COCKPIT_STATUS,
// COCKPIT_CYCLE, COCKPIT_BLOCK, COCKPIT_OUTCOME and COCKPIT_MESSAGE.
type CommandSink struct {
	command string
	shell   string
}

// NewCommandSink creates a sink running command through /bin/sh.
func NewCommandSink(command string) *CommandSink {
	return &CommandSink{command: command, shell: "/bin/sh"}
}

// Name implements Sink.
func (c *CommandSink) Name() string { return "command" }

// Deliver implements Sink.
func (c *CommandSink) Deliver(ctx context.Context, ev models.PhaseEvent) error {
	cmd := exec.CommandContext(ctx, c.shell, "-c", c.command)
	cmd.Env = append(os.Environ(), eventEnv(ev)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func eventEnv(ev models.PhaseEvent) []string {
	block := ""
	if ev.Block != nil {
		block = ev.Block.Name
	}
	return []string{
		"COCKPIT_EVENT=" + string(ev.Kind),
		"COCKPIT_RUN_ID=" + ev.RunID,
		"COCKPIT_PROFILE=" + ev.Profile,
		"COCKPIT_PHASE=" + string(ev.Phase),
		"COCKPIT_STATUS=" + string(ev.Status),
		"COCKPIT_CYCLE=" + strconv.Itoa(ev.CycleIndex),
		"COCKPIT_BLOCK=" + block,
		"COCKPIT_OUTCOME=" + string(ev.Outcome),
		"COCKPIT_MESSAGE=" + ev.Message(),
	}
}
