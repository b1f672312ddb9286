package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/spf13/cobra"
)

func newStartCommand(opts *rootOptions) *cobra.Command {
	var protocolID, notes string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a fast now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.ensureState(cmd.Context()); err != nil {
					return err
				}
				req := fast.StartRequest{}
				if protocolID != "" {
					req.Protocol = &protocolID
				}
				if notes != "" {
					req.Notes = &notes
				}
				sess, err := a.fasts.Start(cmd.Context(), a.userID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started fast %s at %s\n", sess.ID, formatTime(sess.StartTime))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&protocolID, "protocol", "p", "", "Protocol id, e.g. 16:8 (see 'fastwatch protocols')")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func newEndCommand(opts *rootOptions) *cobra.Command {
	var mood, energy int
	cmd := &cobra.Command{
		Use:   "end [id]",
		Short: "End a fast now (the active one when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				st, err := a.ensureState(cmd.Context())
				if err != nil {
					return err
				}
				req := fast.EndRequest{}
				switch {
				case len(args) == 1:
					req.ID = args[0]
				case st.Active != nil:
					req.ID = st.Active.ID
				default:
					return errors.New("no active fast")
				}
				if cmd.Flags().Changed("mood") {
					req.Mood = &mood
				}
				if cmd.Flags().Changed("energy") {
					req.EnergyLevel = &energy
				}

				sess, err := a.fasts.End(cmd.Context(), a.userID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ended fast %s after %s\n", sess.ID, formatMinutes(sess.Duration))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&mood, "mood", 0, "Mood rating 1-5")
	cmd.Flags().IntVar(&energy, "energy", 0, "Energy level 1-5")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a fast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if _, err := a.ensureState(cmd.Context()); err != nil {
					return err
				}
				if err := a.fasts.Delete(cmd.Context(), a.userID, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted fast %s\n", args[0])
				return nil
			})
		},
	}
}

func newClearCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every fast of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return withApp(cmd, opts, func(a *app) error {
				if err := a.fasts.ClearAll(cmd.Context(), a.userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared all fasts for %s\n", a.userID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the reconciled fasts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				st, err := a.ensureState(cmd.Context())
				if err != nil {
					return err
				}
				sessions := st.Sessions
				if limit > 0 && len(sessions) > limit {
					sessions = sessions[:limit]
				}
				return printSessions(cmd.OutOrStdout(), sessions)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum fasts to show (0 for all)")
	return cmd
}

func printSessions(out io.Writer, sessions []fast.Session) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No fasts recorded.")
		return nil
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		protocolID := "-"
		if s.Protocol != nil {
			protocolID = *s.Protocol
		}
		end := "-"
		if s.EndTime != nil {
			end = formatTime(*s.EndTime)
		}
		rows = append(rows, []string{s.ID, string(s.Status), protocolID, formatTime(s.StartTime), end, formatMinutes(s.Duration)})
	}
	return writeTable(out, []string{"ID", "STATUS", "PROTOCOL", "START", "END", "DURATION"}, rows)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
