package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/pkg/pagination"
)

func newJobsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect indexing jobs",
	}
	cmd.AddCommand(newJobsListCmd(opts))
	cmd.AddCommand(newJobsGetCmd(opts))
	return cmd
}

func newJobsListCmd(opts *globalOptions) *cobra.Command {
	var (
		status   string
		jobType  string
		source   string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List jobs, newest first",
		Example: `  searchctl jobs list --status failed`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("page", strconv.Itoa(page))
			q.Set("page_size", strconv.Itoa(pageSize))
			if status != "" {
				q.Set("status", status)
			}
			if jobType != "" {
				q.Set("job_type", jobType)
			}
			if source != "" {
				q.Set("source_service", source)
			}

			var res pagination.Result[domain.IndexJob]
			if err := opts.client().call(cmd.Context(), "GET", "/indexing/jobs?"+q.Encode(), nil, &res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d jobs (page %d/%d)\n", res.Total, res.Page, res.TotalPages)
			for _, j := range res.Items {
				fmt.Fprintf(out, "%s  %-15s %-9s %d/%d failed=%d %s\n",
					j.ID, j.JobType, j.Status, j.DocumentsProcessed, j.DocumentsTotal, j.DocumentsFailed, j.SourceService)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "pending, running, completed or failed")
	cmd.Flags().StringVar(&jobType, "type", "", "single_document, bulk, incremental or full_reindex")
	cmd.Flags().StringVar(&source, "source", "", "Source service")
	cmd.Flags().IntVar(&page, "page", 1, "Page")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Jobs per page")
	return cmd
}

func newJobsGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			var job domain.IndexJob
			if err := opts.client().call(cmd.Context(), "GET", "/indexing/jobs/"+id.String(), nil, &job); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}
