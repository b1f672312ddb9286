package main

import (
	"github.com/rpggio/fastwatch/internal/tui"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the active fast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx := cmd.Context()
				a.watchProtocols(ctx)

				obs, err := a.fasts.Observe(ctx, a.userID)
				if err != nil {
					return err
				}
				defer obs.Close()
				return tui.Run(ctx, a.userID, obs.Updates(), a.protocols, a.clock)
			})
		},
	}
}
