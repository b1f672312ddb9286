package main

import (
	"io"

	"github.com/rpggio/fastwatch/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	user       string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "fastwatch",
		Short:         "Track intermittent fasts",
		Long:          `fastwatch records fasting sessions, keeps at most one fast active, and completes overdue fasts automatically. It runs as an MCP server or as a local CLI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $FASTWATCH_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", "", "User id to act as (default from config)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newStartCommand(opts),
		newEndCommand(opts),
		newDeleteCommand(opts),
		newClearCommand(opts),
		newListCommand(opts),
		newStatsCommand(opts),
		newLeaderboardCommand(opts),
		newProtocolsCommand(opts),
		newActivityCommand(opts),
		newWatchCommand(opts),
		newKeysCommand(opts),
	)
	return rootCmd
}

// withApp opens the app for one command invocation, logging to stderr.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := openApp(opts, func(*config.Config) io.Writer { return cmd.ErrOrStderr() })
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
