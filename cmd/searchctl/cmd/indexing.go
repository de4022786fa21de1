package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/service"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Index one document or a batch from a JSON file",
		Long: `Reads a JSON document (object) or a batch of documents (array) from
the given file, or from stdin when the file is omitted or "-".
Arrays are sent to the bulk endpoint and reported per document.`,
		Example: `  searchctl index article.json
  cat batch.json | searchctl index --source cms`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd.Context(), cmd, opts, path, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source service recorded on bulk jobs")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts *globalOptions, path, source string) error {
	raw, err := readInput(cmd, path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New("no documents in input")
	}

	client := opts.client()
	out := cmd.OutOrStdout()

	if raw[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(raw, &docs); err != nil {
			return fmt.Errorf("parse documents: %w", err)
		}
		body := map[string]any{"documents": docs}
		if source != "" {
			body["source_service"] = source
		}
		var res service.BulkResult
		if err := client.call(ctx, "POST", "/indexing/bulk", body, &res); err != nil {
			return err
		}
		fmt.Fprintf(out, "job %s %s: %d indexed, %d failed\n", res.JobID, res.Status, res.Indexed, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  %s/%s: %s\n", e.DocumentType, e.DocumentID, e.Error)
		}
		return nil
	}

	var doc json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	var indexed domain.Document
	if err := client.call(ctx, "POST", "/indexing/index", doc, &indexed); err != nil {
		return err
	}
	fmt.Fprintf(out, "indexed %s/%s\n", indexed.DocumentType, indexed.DocumentID)
	return nil
}

func newReindexCmd(opts *globalOptions) *cobra.Command {
	var (
		wait     bool
		all      bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reindex [service]",
		Short: "Rebuild the index from an upstream service",
		Example: `  searchctl reindex cms
  searchctl reindex directory --wait
  searchctl reindex --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if len(args) > 0 {
					return errors.New("--all takes no service argument")
				}
				return runReindexAll(cmd.Context(), cmd, opts)
			}
			if len(args) == 0 {
				return errors.New("a service name or --all is required")
			}
			return runReindex(cmd.Context(), cmd, opts, args[0], wait, interval)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reindex every configured upstream service")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll the job until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --wait")
	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command, opts *globalOptions, svc string, wait bool, interval time.Duration) error {
	client := opts.client()
	out := cmd.OutOrStdout()

	var res service.ReindexResult
	if err := client.call(ctx, "POST", "/indexing/reindex/"+url.PathEscape(svc), nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "job %s %s: ~%d documents from %s\n", res.JobID, res.Status, res.EstimatedDocuments, res.Service)
	if !wait {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var job domain.IndexJob
		if err := client.call(ctx, "GET", "/indexing/jobs/"+res.JobID.String(), nil, &job); err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			fmt.Fprintf(out, "job %s %s: %d processed, %d failed\n", job.ID, job.Status, job.DocumentsProcessed, job.DocumentsFailed)
			if job.Status == domain.JobStatusFailed {
				return fmt.Errorf("reindex failed: %s", job.ErrorMessage)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runReindexAll(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	var results []service.ReindexResult
	if err := opts.client().call(ctx, "POST", "/indexing/reindex", nil, &results); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		fmt.Fprintf(out, "job %s %s: ~%d documents from %s\n", res.JobID, res.Status, res.EstimatedDocuments, res.Service)
		if res.Status == domain.JobStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d services failed to fetch", failed, len(results))
	}
	return nil
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Remove a document from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/indexing/delete/" + url.PathEscape(args[0]) + "?document_type=" + url.QueryEscape(docType)
			if err := opts.client().call(cmd.Context(), "DELETE", path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", docType, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Document type (required)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newClearCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every document from the index (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the index without --yes")
			}
			var res struct {
				Deleted int `json:"deleted"`
			}
			if err := opts.client().call(cmd.Context(), "DELETE", "/indexing/clear", nil, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", res.Deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the index")
	return cmd
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats domain.IndexStats
			if err := opts.client().call(cmd.Context(), "GET", "/indexing/stats", nil, &stats); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}
