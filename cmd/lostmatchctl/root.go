package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	lostmatch "github.com/kailas-cloud/lostmatch/pkg/client"
)

const (
	envServer = "LOSTMATCH_URL"
	envAPIKey = "LOSTMATCH_API_KEY"

	defaultServer = "http://localhost:8080"
)

type commandContext struct {
	server  string
	apiKey  string
	timeout time.Duration
	json    bool

	// newClient is swapped in tests.
	newClient func(baseURL string, opts ...lostmatch.Option) (*lostmatch.Client, error)
}

func (c *commandContext) client() (*lostmatch.Client, error) {
	opts := []lostmatch.Option{lostmatch.WithUserAgent("lostmatchctl")}
	if c.apiKey != "" {
		opts = append(opts, lostmatch.WithAPIKey(c.apiKey))
	}
	if c.timeout > 0 {
		opts = append(opts, lostmatch.WithTimeout(c.timeout))
	}
	return c.newClient(c.server, opts...)
}

// withClient runs fn with a fresh client and the command's context.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(context.Context, *lostmatch.Client) error) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, cl)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{newClient: lostmatch.New}

	rootCmd := &cobra.Command{
		Use:           "lostmatchctl",
		Short:         "Operate a lostmatch server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.server, "server", envOr(envServer, defaultServer), "lostmatch base URL (env "+envServer+")")
	flags.StringVar(&ctx.apiKey, "api-key", os.Getenv(envAPIKey), "Bearer token for the admin API (env "+envAPIKey+")")
	flags.DurationVar(&ctx.timeout, "timeout", lostmatch.DefaultTimeout, "Per-request timeout")
	flags.BoolVar(&ctx.json, "json", false, "Print raw JSON instead of tables")

	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newPeriodicCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
