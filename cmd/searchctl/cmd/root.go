// Package cmd provides the commands of the searchctl admin CLI.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// globalOptions are shared by every command talking to the service.
type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
}

// NewRootCmd creates the root command for the searchctl CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "searchctl",
		Short: "Administer the content search service",
		Long: `searchctl talks to a running content search service over its HTTP API.

Write commands need a bearer token; mint one with 'searchctl token'
using the service's JWT secret, or pass --token / SEARCHCTL_TOKEN.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("SEARCHCTL_SERVER", "http://localhost:8011"), "Base URL of the search service")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SEARCHCTL_TOKEN"), "Bearer token for authenticated endpoints")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newClearCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newJobsCmd(opts))
	cmd.AddCommand(newSuggestionsCmd(opts))
	cmd.AddCommand(newAnalyticsCmd(opts))
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.server, o.token, o.timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
