package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	lostmatch "github.com/kailas-cloud/lostmatch/pkg/client"
)

func newPeriodicCommand(ctx *commandContext) *cobra.Command {
	periodicCmd := &cobra.Command{
		Use:   "periodic",
		Short: "Inspect and drive periodic re-matching",
	}

	periodicCmd.AddCommand(newPeriodicStatusCommand(ctx))
	periodicCmd.AddCommand(newPeriodicSetCommand(ctx))
	periodicCmd.AddCommand(newPeriodicTriggerCommand(ctx))
	periodicCmd.AddCommand(newPeriodicTriggerReportCommand(ctx))
	periodicCmd.AddCommand(newPeriodicCycleCommand(ctx))
	periodicCmd.AddCommand(newPeriodicStatsCommand(ctx))

	return periodicCmd
}

func newPeriodicStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show periodic search state of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				st, err := cl.Periodic().Status(c, args[0])
				if err != nil {
					return err
				}
				return printPeriodicStatus(cmd, ctx, st)
			})
		},
	}
}

func newPeriodicSetCommand(ctx *commandContext) *cobra.Command {
	var (
		enabled   bool
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Update periodic search preferences of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in lostmatch.Settings
			if cmd.Flags().Changed("enabled") {
				in.Enabled = &enabled
			}
			if cmd.Flags().Changed("threshold") {
				if threshold < 0 || threshold > 100 {
					return fmt.Errorf("--threshold must be within 0..100, got %v", threshold)
				}
				in.Threshold = &threshold
			}
			if in.Enabled == nil && in.Threshold == nil {
				return errors.New("nothing to update: pass --enabled and/or --threshold")
			}
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				st, err := cl.Periodic().Set(c, args[0], in)
				if err != nil {
					return err
				}
				return printPeriodicStatus(cmd, ctx, st)
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", false, "Enable or disable periodic search")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Matching threshold in percent (0..100)")
	return cmd
}

func newPeriodicTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <user-id>",
		Short: "Re-match every open lost report of a user now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				cy, err := cl.Periodic().TriggerUser(c, args[0])
				if err != nil {
					return err
				}
				return printCycle(cmd, ctx, cy)
			})
		},
	}
}

func newPeriodicTriggerReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-report <lost|found> <report-id>",
		Short: "Queue a matching run for one report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				if err := cl.Periodic().TriggerReport(c, lostmatch.Kind(args[0]), args[1]); err != nil {
					return err
				}
				printf(cmd, "Queued %s report %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newPeriodicCycleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one full periodic pass and wait for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				cy, err := cl.Periodic().Cycle(c)
				if errors.Is(err, lostmatch.ErrSchedulerOverlap) {
					return errors.New("a periodic cycle is already running; try again later")
				}
				if err != nil {
					return err
				}
				return printCycle(cmd, ctx, cy)
			})
		},
	}
}

func newPeriodicStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show scheduler state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				st, err := cl.Periodic().Stats(c)
				if err != nil {
					return err
				}
				if ctx.json {
					return writeJSON(cmd, st)
				}
				pairs := [][2]string{
					{"Service running", yesNo(st.ServiceRunning)},
					{"Cycle in progress", yesNo(st.CycleInProgress)},
					{"Interval", fmt.Sprintf("%ds", st.IntervalSeconds)},
					{"Next run", optTime(st.NextRunTime)},
					{"Users enabled", fmt.Sprint(st.UsersWithPeriodicSearchEnabled)},
				}
				if lc := st.LastCycle; lc != nil {
					pairs = append(pairs,
						[2]string{"Last cycle finished", timestamp(lc.FinishedAt)},
						[2]string{"Last cycle reports", fmt.Sprint(lc.Reports)},
						[2]string{"Last cycle failures", fmt.Sprint(lc.Failures)},
					)
				}
				printf(cmd, "%s", renderPairs(pairs))
				return nil
			})
		},
	}
}

func printPeriodicStatus(cmd *cobra.Command, ctx *commandContext, st lostmatch.PeriodicStatus) error {
	if ctx.json {
		return writeJSON(cmd, st)
	}
	printf(cmd, "%s", renderPairs([][2]string{
		{"User enabled", yesNo(st.UserEnabled)},
		{"Service running", yesNo(st.ServiceRunning)},
		{"Next run", optTime(st.NextRunTime)},
		{"Threshold", optInt(st.MatchingThreshold)},
	}))
	return nil
}

func printCycle(cmd *cobra.Command, ctx *commandContext, cy lostmatch.Cycle) error {
	if ctx.json {
		return writeJSON(cmd, cy)
	}
	printf(cmd, "%s", renderTable([]column{
		{title: "Users", numeric: true}, {title: "Reports", numeric: true},
		{title: "Failures", numeric: true}, {title: "Skipped", numeric: true},
		{title: "Duration"},
	}, [][]string{{
		fmt.Sprint(cy.Users), fmt.Sprint(cy.Reports), fmt.Sprint(cy.Failures), fmt.Sprint(cy.Skipped),
		cy.FinishedAt.Sub(cy.StartedAt).String(),
	}}))
	return nil
}
