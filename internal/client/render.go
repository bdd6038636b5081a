package client

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/Cockpit/internal/models"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	focusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	breakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	attentionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// FormatRemaining renders seconds as MM:SS, or H:MM:SS past an hour.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func phaseLabel(p models.Phase) string {
	switch p {
	case models.PhaseFocus:
		return focusStyle.Render("FOCUS")
	case models.PhaseShortBreak:
		return breakStyle.Render("SHORT BREAK")
	case models.PhaseLongBreak:
		return breakStyle.Render("LONG BREAK")
	default:
		return string(p)
	}
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + value
}

// RenderStatus renders a run snapshot as a bordered panel.
func RenderStatus(snap models.RunSnapshot) string {
	var lines []string

	switch snap.Status {
	case models.RunStatusIdle, "":
		lines = append(lines, mutedStyle.Render("Idle"))
		if snap.LastOutcome != "" {
			lines = append(lines, row("last run", string(snap.LastOutcome)))
		}
		return boxStyle.Render(strings.Join(lines, "\n"))
	case models.RunStatusAwaitingConfirmation:
		lines = append(lines, attentionStyle.Render("Did you finish this block?")+" "+mutedStyle.Render("cockpit confirm yes|no"))
	default:
		lines = append(lines, phaseLabel(snap.CurrentPhase)+"  "+clockStyle.Render(FormatRemaining(snap.RemainingSeconds)))
	}

	lines = append(lines, row("status", string(snap.Status)))
	if snap.CurrentBlock != nil {
		block := snap.CurrentBlock.Name
		if snap.ScheduleState != nil {
			block = fmt.Sprintf("%s (%d/%d)", block, snap.ScheduleState.CurrentIndex+1, len(snap.ScheduleState.Plan))
		}
		lines = append(lines, row("block", block))
	} else if snap.Profile != nil {
		lines = append(lines, row("profile", snap.Profile.Name))
		lines = append(lines, row("cycle", fmt.Sprintf("%d/%d", snap.CycleIndex+1, snap.Cycles)))
	}
	if snap.PendingConfirmation != nil {
		lines = append(lines, row("pending", snap.PendingConfirmation.Block.Name))
	}
	if snap.Binding != nil {
		lines = append(lines, row("working on", snap.Binding.Type+": "+snap.Binding.Name))
	}
	if snap.PhaseEndsAt != nil {
		lines = append(lines, row("ends at", snap.PhaseEndsAt.Local().Format("15:04")))
	}
	if !snap.AutoAdvance {
		lines = append(lines, mutedStyle.Render("auto advance off"))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderProfiles lists profiles sorted by name.
func RenderProfiles(profiles map[string]models.PhaseProfile) string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		p := profiles[name]
		fmt.Fprintf(&b, "%s  %s\n", focusStyle.Render(fmt.Sprintf("%-10s", name)),
			mutedStyle.Render(fmt.Sprintf("%dm focus / %dm short / %dm long, %d cycles, long break every %d",
				p.FocusMinutes, p.ShortBreakMinutes, p.LongBreakMinutes, p.CyclesDefault, p.LongBreakEvery)))
	}
	return b.String()
}

// RenderHistory lists run records, most recent first.
func RenderHistory(records []models.RunRecord) string {
	if len(records) == 0 {
		return mutedStyle.Render("No runs recorded yet.") + "\n"
	}
	var b strings.Builder
	for _, r := range records {
		focus := time.Duration(r.FocusSeconds) * time.Second
		line := fmt.Sprintf("%s  %-10s %-9s focus %s", r.EndedAt.Local().Format("2006-01-02 15:04"), r.Profile, r.Outcome, focus)
		if r.BindName != "" {
			line += "  " + mutedStyle.Render(r.BindType+": "+r.BindName)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
