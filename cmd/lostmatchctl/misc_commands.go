package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/lostmatch/internal/version"
	lostmatch "github.com/kailas-cloud/lostmatch/pkg/client"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(cmd, func(c context.Context, cl *lostmatch.Client) error {
				hs, err := cl.Health(c)
				if err != nil {
					return err
				}
				if ctx.json {
					return writeJSON(cmd, hs)
				}
				names := make([]string, 0, len(hs.Checks))
				for name := range hs.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, len(names))
				for i, name := range names {
					rows[i] = []string{name, hs.Checks[name]}
				}
				printf(cmd, "Status: %s\n", hs.Status)
				printf(cmd, "%s", renderTable([]column{{title: "Check"}, {title: "Result"}}, rows))
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lostmatchctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lostmatchctl %s\n", version.String())
			return err
		},
	}
}
