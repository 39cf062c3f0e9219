package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [path]",
		Short: "Index a repository and report statistics",
		Long: `Index builds a full snapshot of the repository and reports what
was indexed. Embeddings are cached under .scout/ so later runs
only embed changed content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			start := time.Now()
			mgr, cleanup, err := buildManager(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer cleanup()

			snap := mgr.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d files into %d chunks in %s\n",
				snap.FileCount(), snap.ChunkCount(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
