package main

import (
	"github.com/spf13/cobra"

	"github.com/BTreeMap/Cockpit/internal/client"
)

func newRootCmd(cfg Config) *cobra.Command {
	var (
		logLevel  string
		serverURL string
	)

	root := &cobra.Command{
		Use:   "cockpit",
		Short: "Focus/break interval timer",
		Long: `Cockpit runs a single focus timer with configurable phase profiles and
day plans made of timed blocks. "cockpit serve" hosts the timer; the other
commands talk to a running server over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeLogger(cmd.ErrOrStderr(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error (overrides $COCKPIT_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&serverURL, "url", cfg.ServerURL, "Cockpit server URL for client commands (overrides $COCKPIT_URL)")

	newClient := func() *client.Client { return client.New(serverURL) }

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newStatusCmd(newClient))
	root.AddCommand(newStartCmd(newClient))
	for _, name := range []string{"pause", "resume", "stop", "cancel"} {
		root.AddCommand(newSimpleCmd(name, newClient))
	}
	root.AddCommand(newConfirmCmd(newClient))
	root.AddCommand(newDayCmd(newClient))
	root.AddCommand(newRescheduleCmd(newClient))
	root.AddCommand(newProfilesCmd(newClient))
	root.AddCommand(newHistoryCmd(newClient))
	root.AddCommand(newStatsCmd(newClient))
	return root
}
