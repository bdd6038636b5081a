package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/BTreeMap/Cockpit/internal/client"
	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

type clientFactory func() *client.Client

func printSnapshot(cmd *cobra.Command, snap models.RunSnapshot) {
	fmt.Fprintln(cmd.OutOrStdout(), client.RenderStatus(snap))
}

func newStatusCmd(newClient clientFactory) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if asJSON {
				raw, err := c.Do(cmd.Context(), http.MethodGet, "/api/timer/status", nil)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(pretty.Pretty(raw))
				return err
			}
			snap, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")
	return cmd
}

func newStartCmd(newClient clientFactory) *cobra.Command {
	var (
		req           timer.StartRequest
		noAutoAdvance bool
	)
	cmd := &cobra.Command{
		Use:   "start [profile]",
		Short: "Start a profile run",
		Long:  "Start a run of the named profile, or the default profile when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Profile = args[0]
			}
			if req.Cycles < 0 {
				return fmt.Errorf("--cycles must not be negative")
			}
			if noAutoAdvance {
				off := false
				req.AutoAdvance = &off
			}
			snap, err := newClient().Start(cmd.Context(), req)
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.Cycles, "cycles", 0, "number of focus cycles (default from the profile)")
	f.StringVar(&req.BindType, "bind-type", "", "type of the item this run works on")
	f.StringVar(&req.BindName, "bind-name", "", "name of the item this run works on")
	f.BoolVar(&noAutoAdvance, "no-auto-advance", false, "enter each new phase paused")
	return cmd
}

func newSimpleCmd(name string, newClient clientFactory) *cobra.Command {
	short := map[string]string{
		"pause":  "Pause the running phase",
		"resume": "Resume a paused phase",
		"stop":   "End the run, keeping its focus time",
		"cancel": "Abandon the run",
	}[name]
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newClient().Command(cmd.Context(), name)
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
}

// parseAnswer reads a yes/no confirmation answer.
func parseAnswer(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "done":
		return true, nil
	case "no", "n", "false":
		return false, nil
	default:
		return false, fmt.Errorf("answer must be yes or no, got %q", s)
	}
}

func newConfirmCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:       "confirm yes|no",
		Short:     "Answer whether the finished block was completed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"yes", "no"},
		RunE: func(cmd *cobra.Command, args []string) error {
			completed, err := parseAnswer(args[0])
			if err != nil {
				return err
			}
			snap, err := newClient().Confirm(cmd.Context(), completed)
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
}

func newDayCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "day [today|tomorrow|yesterday|YYYY-MM-DD]",
		Short: "Start a day plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "today"
			if len(args) == 1 {
				target = args[0]
			}
			snap, err := newClient().StartDay(cmd.Context(), target)
			if err != nil {
				return err
			}
			printSnapshot(cmd, snap)
			return nil
		},
	}
}

func newRescheduleCmd(newClient clientFactory) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "reschedule <minutes>",
		Short: "Shift today's remaining blocks",
		Long:  "Shift today's blocks starting at or after --from by the given minutes (negative moves them earlier).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shift, err := strconv.Atoi(args[0])
			if err != nil || shift == 0 {
				return fmt.Errorf("minutes must be a non-zero integer, got %q", args[0])
			}
			day, err := newClient().Reschedule(cmd.Context(), shift, from)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", day.Date)
			for _, b := range day.Blocks {
				fmt.Fprintf(out, "  %-5s  %-5s  %s\n", b.Start, b.End, b.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "only shift blocks starting at or after HH:MM")
	return cmd
}

func newProfilesCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List phase profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := newClient().Profiles(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), client.RenderProfiles(profiles))
			return nil
		},
	}
}

func newHistoryCmd(newClient clientFactory) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := newClient().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), client.RenderHistory(records))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of runs to show")
	return cmd
}

func newStatsCmd(newClient clientFactory) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				from = t
			}
			totals, err := newClient().Stats(cmd.Context(), from)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "since      %s\n", totals.Since.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "focus      %s\n", time.Duration(totals.FocusSeconds)*time.Second)
			fmt.Fprintf(out, "runs       %d completed, %d stopped, %d cancelled\n", totals.CompletedRuns, totals.StoppedRuns, totals.CancelledRuns)
			fmt.Fprintf(out, "cycles     %d\n", totals.CyclesCompleted)
			fmt.Fprintf(out, "blocks     %d\n", totals.BlocksCompleted)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "start of the window, RFC3339 (default: today's midnight)")
	return cmd
}
