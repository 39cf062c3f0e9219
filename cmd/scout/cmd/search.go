package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	root   string
	limit  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the repository",
		Long: `Search indexes the repository and runs a hybrid query against it.

Examples:
  scout search "snapshot lifecycle"
  scout search "parseConfig" --limit 5
  scout search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.limit > 0 {
				cfg.Search.MaxResults = opts.limit
			}

			mgr, cleanup, err := buildManager(cmd.Context(), cfg, opts.root)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := mgr.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			if resp.Partial {
				fmt.Fprintln(out, "(partial results: a ranking signal did not complete)")
			}
			for i, r := range resp.Results {
				symbol := r.Symbol
				if symbol == "" {
					symbol = "-"
				}
				fmt.Fprintf(out, "%2d. %s:%d-%d  %s  (score %.3f)\n",
					i+1, r.FilePath, r.StartLine, r.EndLine, symbol, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.root, "path", "p", ".", "Repository root to index")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}
