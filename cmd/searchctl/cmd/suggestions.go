package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/utafrali/contentsearch/internal/domain"
)

func newSuggestionsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Manage autocomplete suggestions",
	}
	cmd.AddCommand(newSuggestionsPopularCmd(opts))
	cmd.AddCommand(newSuggestionsCleanupCmd(opts))
	return cmd
}

func newSuggestionsPopularCmd(opts *globalOptions) *cobra.Command {
	var (
		language string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List the most used suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if language != "" {
				q.Set("language", language)
			}
			var list []domain.Suggestion
			if err := opts.client().call(cmd.Context(), "GET", "/autocomplete/popular?"+q.Encode(), nil, &list); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range list {
				fmt.Fprintf(out, "%6d  %s (%s)\n", s.UsageCount, s.Text, s.Language)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Suggestion language")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum suggestions")
	return cmd
}

func newSuggestionsCleanupCmd(opts *globalOptions) *cobra.Command {
	var minUsage int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete rarely used suggestions (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Deleted int `json:"deleted"`
			}
			path := "/autocomplete/suggestions?min_usage=" + strconv.Itoa(minUsage)
			if err := opts.client().call(cmd.Context(), "DELETE", path, nil, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d suggestions\n", res.Deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&minUsage, "min-usage", 2, "Keep suggestions used at least this often")
	return cmd
}

func newAnalyticsCmd(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show aggregate search metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m domain.SearchMetrics
			path := "/analytics/metrics?days=" + strconv.Itoa(days)
			if err := opts.client().call(cmd.Context(), "GET", path, nil, &m); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Window in days")
	return cmd
}
