package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/contentsearch/internal/domain"
)

var typeRoutes = map[string]string{
	"article":      "/articles",
	"project":      "/projects",
	"person":       "/people",
	"partner":      "/partners",
	"social_post":  "/social",
	"notification": "/notifications",
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		docType  string
		language string
		page     int
		pageSize int
		sortBy   string
		order    string
		filters  []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a search query",
		Example: `  searchctl search "volcano monitoring"
  searchctl search flood --type project --filter status=published
  searchctl search "" --sort-by created_at --order desc --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.SearchRequest{
				Query:     args[0],
				Language:  language,
				SortBy:    sortBy,
				SortOrder: order,
				Page:      page,
				PageSize:  pageSize,
			}
			if len(filters) > 0 {
				f, err := parseFilters(filters)
				if err != nil {
					return err
				}
				req.Filters = f
			}
			return runSearch(cmd.Context(), cmd, opts, docType, req, asJSON)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "Restrict to article, project, person or partner")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Query language (defaults to the service default)")
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Results per page")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "relevance, created_at, updated_at or title")
	cmd.Flags().StringVar(&order, "order", "", "asc or desc")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter as key=value (repeatable; comma-separate values for a list)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts *globalOptions, docType string, req domain.SearchRequest, asJSON bool) error {
	path := "/search"
	if docType != "" {
		suffix, ok := typeRoutes[strings.ToLower(docType)]
		if !ok {
			return fmt.Errorf("unsupported --type %q", docType)
		}
		path += suffix
	}

	var resp domain.SearchResponse
	if err := opts.client().call(ctx, "POST", path, req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, resp)
	}

	fmt.Fprintf(out, "%d results (page %d/%d, %dms) query_id=%s\n",
		resp.Total, resp.Page, resp.TotalPages, resp.ExecutionTimeMs, resp.QueryID)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%3d. [%s] %s  (%s, score %.3f)\n",
			(resp.Page-1)*resp.PageSize+i+1, r.DocumentType, r.Title, r.DocumentID, r.RelevanceScore)
	}
	return nil
}

// parseFilters turns key=value pairs into a filter map. A value with
// commas becomes a list.
func parseFilters(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=value", p)
		}
		k = strings.TrimSpace(k)
		if strings.Contains(v, ",") {
			parts := strings.Split(v, ",")
			list := make([]any, 0, len(parts))
			for _, part := range parts {
				list = append(list, strings.TrimSpace(part))
			}
			out[k] = list
			continue
		}
		out[k] = v
	}
	return out, nil
}
