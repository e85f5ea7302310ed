package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	lostmatch "github.com/kailas-cloud/lostmatch/pkg/client"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Run matching and manage persisted matches",
	}

	matchCmd.AddCommand(newMatchRunCommand(ctx))
	matchCmd.AddCommand(newMatchListCommand(ctx))
	matchCmd.AddCommand(newMatchGetCommand(ctx))
	matchCmd.AddCommand(newMatchSetStatusCommand(ctx))

	return matchCmd
}

func newMatchRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <lost|found> <report-id>",
		Short: "Match one report against the opposite side now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				run, err := cl.Matches().Run(c, lostmatch.Kind(args[0]), args[1])
				if err != nil {
					return err
				}
				if ctx.json {
					return writeJSON(cmd, run)
				}
				printf(cmd, "Source %s, threshold %s, notified %s\n", run.Source, score(run.Threshold), yesNo(run.Notified))
				if len(run.Candidates) == 0 {
					printf(cmd, "No candidates above threshold\n")
					return nil
				}
				rows := make([][]string, len(run.Candidates))
				for i, cand := range run.Candidates {
					rows[i] = []string{
						fmt.Sprint(i + 1), cand.ID, cand.Name, score(cand.Similarity),
						score(cand.Confidence), fmt.Sprint(cand.MatchPoints),
					}
				}
				printf(cmd, "%s", renderTable([]column{
					{title: "#", numeric: true}, {title: "Candidate"}, {title: "Name"},
					{title: "Similarity", numeric: true}, {title: "Confidence", numeric: true},
					{title: "Points", numeric: true},
				}, rows))
				return nil
			})
		},
	}
}

func newMatchListCommand(ctx *commandContext) *cobra.Command {
	var lostID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted matches of a lost report or in a status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (lostID == "") == (status == "") {
				return errors.New("exactly one of --lost or --status is required")
			}
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				var (
					ms  []lostmatch.Match
					err error
				)
				if lostID != "" {
					ms, err = cl.Matches().ByLostReport(c, lostID)
				} else {
					ms, err = cl.Matches().ByStatus(c, status)
				}
				if err != nil {
					return err
				}
				if ctx.json {
					return writeJSON(cmd, ms)
				}
				if len(ms) == 0 {
					printf(cmd, "No matches\n")
					return nil
				}
				printf(cmd, "%s", renderMatches(ms))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lostID, "lost", "", "Lost report id")
	cmd.Flags().StringVar(&status, "status", "", "Match status ("+lostmatch.StatusPendingClaim+", "+
		lostmatch.StatusClaimApproved+" or "+lostmatch.StatusUnderApproval+")")
	return cmd
}

func newMatchGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <match-id>",
		Short: "Show one match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				m, err := cl.Matches().Get(c, args[0])
				if err != nil {
					return err
				}
				return printMatch(cmd, ctx, m)
			})
		},
	}
}

func newMatchSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <match-id> <status>",
		Short: "Move a match to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				m, err := cl.Matches().SetStatus(c, args[0], args[1])
				if err != nil {
					return err
				}
				return printMatch(cmd, ctx, m)
			})
		},
	}
}

func printMatch(cmd *cobra.Command, ctx *commandContext, m lostmatch.Match) error {
	if ctx.json {
		return writeJSON(cmd, m)
	}
	printf(cmd, "%s", renderPairs([][2]string{
		{"ID", m.ID},
		{"Lost report", m.LostReportID},
		{"Found report", m.FoundReportID},
		{"Score", score(m.Score)},
		{"Status", m.Status},
		{"Created", timestamp(m.CreatedAt)},
		{"Updated", timestamp(m.UpdatedAt)},
	}))
	return nil
}

func renderMatches(ms []lostmatch.Match) string {
	rows := make([][]string, len(ms))
	for i, m := range ms {
		rows[i] = []string{m.ID, m.LostReportID, m.FoundReportID, score(m.Score), m.Status, timestamp(m.UpdatedAt)}
	}
	return renderTable([]column{
		{title: "ID"}, {title: "Lost"}, {title: "Found"}, {title: "Score", numeric: true},
		{title: "Status"}, {title: "Updated"},
	}, rows)
}
