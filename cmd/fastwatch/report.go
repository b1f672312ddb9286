package main

import (
	"fmt"
	"sort"

	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize fasting history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sum, err := a.stats.Summary(cmd.Context(), a.userID)
				if err != nil {
					return err
				}
				fields := [][]string{
					{"User", sum.UserID},
					{"Fasts", fmt.Sprintf("%d (%d completed)", sum.TotalFasts, sum.CompletedFasts)},
					{"Total", formatMinutes(sum.TotalMinutes)},
					{"Average", formatMinutes(sum.AverageMinutes)},
					{"Longest", formatMinutes(sum.LongestMinutes)},
					{"Goals met", fmt.Sprintf("%d", sum.GoalsMet)},
					{"Streak", fmt.Sprintf("%d days (best %d)", sum.CurrentStreak, sum.LongestStreak)},
				}
				if sum.ActiveFastID != "" {
					fields = append(fields, []string{"Active", fmt.Sprintf("%s, %s elapsed", sum.ActiveFastID, formatMinutes(sum.ActiveElapsed))})
				}
				protocols := make([]string, 0, len(sum.ByProtocol))
				for id := range sum.ByProtocol {
					protocols = append(protocols, id)
				}
				sort.Strings(protocols)
				for _, id := range protocols {
					fields = append(fields, []string{"  " + id, fmt.Sprintf("%d", sum.ByProtocol[id])})
				}
				return writeFields(cmd.OutOrStdout(), fields)
			})
		},
	}
}

func newLeaderboardCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by total completed fasting time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				entries, err := a.stats.Leaderboard(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No completed fasts yet.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{fmt.Sprintf("%d", e.Rank), e.UserID, fmt.Sprintf("%d", e.CompletedFasts), formatMinutes(e.TotalMinutes)})
				}
				return writeTable(cmd.OutOrStdout(), []string{"RANK", "USER", "FASTS", "TOTAL"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of users to show")
	return cmd
}

func newProtocolsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List fasting protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				var rows [][]string
				for _, p := range a.protocols.List() {
					fasting := "-"
					if target, ok := p.Target(); ok {
						fasting = fmt.Sprintf("%dh", int(target.Hours()))
					}
					rows = append(rows, []string{p.ID, p.Name, fasting, fmt.Sprintf("%dh", p.EatingHours)})
				}
				return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "FASTING", "EATING"}, rows)
			})
		},
	}
}

func newActivityCommand(opts *rootOptions) *cobra.Command {
	var (
		limit        int
		fastID       string
		activityType string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				listOpts := activity.ListActivityOptions{Limit: limit}
				if fastID != "" {
					listOpts.FastID = &fastID
				}
				if activityType != "" {
					t := activity.ActivityType(activityType)
					listOpts.ActivityType = &t
				}
				entries, err := a.activity.GetRecentActivity(cmd.Context(), a.userID, listOpts)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No activity.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{formatTime(e.CreatedAt), string(e.ActivityType), e.Summary})
				}
				return writeTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "SUMMARY"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries")
	cmd.Flags().StringVar(&fastID, "fast", "", "Only events for this fast id")
	cmd.Flags().StringVar(&activityType, "type", "", "Only events of this type, e.g. fast_auto_completed")
	return cmd
}
