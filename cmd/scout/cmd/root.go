// Package cmd provides the CLI commands for Scout.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scoutindex/scout/internal/config"
	"github.com/scoutindex/scout/internal/embed"
	scouterr "github.com/scoutindex/scout/internal/errors"
	"github.com/scoutindex/scout/internal/logging"
	"github.com/scoutindex/scout/internal/repo"
	"github.com/scoutindex/scout/internal/snapshot"
	"github.com/scoutindex/scout/internal/store"
	"github.com/scoutindex/scout/pkg/version"
)

var (
	flagConfig string
	flagDebug  bool
)

// NewRootCmd creates the root command for the scout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Hybrid code search over a repository",
		Long: `Scout indexes a repository into structural chunks and answers
queries by fusing lexical, fuzzy, and embedding signals.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("scout version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "scout.yaml", "Config file path")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	logging.SetupDefault(logging.Config{Level: cfg.LogLevel, JSON: true})
	return cfg, nil
}

// newProvider builds the configured embedding backend, wrapped with
// bounded backoff when max_retries is positive.
func newProvider(cfg *config.Config) (embed.Provider, error) {
	var p embed.Provider
	switch cfg.Embedding.Provider {
	case "", "static":
		p = embed.NewStaticProvider(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.MaxRetries > 0 {
		retry := scouterr.DefaultRetryConfig()
		retry.MaxRetries = cfg.Embedding.MaxRetries
		p = embed.WithRetry(p, retry)
	}
	return p, nil
}

// buildManager indexes the repository under root and returns a Ready
// manager. The caller owns the returned cleanup.
func buildManager(ctx context.Context, cfg *config.Config, root string) (*snapshot.Manager, func(), error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	var persist embed.PersistentCache
	cachePath := cfg.Cache.Path
	if cachePath == "" {
		dir := filepath.Join(root, ".scout")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			cachePath = filepath.Join(dir, "embeddings.db")
		}
	}
	if cachePath != "" {
		if c, err := store.OpenBoltCache(cachePath); err == nil {
			persist = c
		} else {
			fmt.Fprintf(os.Stderr, "warning: embedding cache disabled: %v\n", err)
		}
	}

	cached, err := embed.NewCachedProvider(provider, cfg.Cache.MemoryEntries, persist)
	if err != nil {
		return nil, nil, err
	}

	mgr := snapshot.NewManager(cfg, cached, repo.NoEdges{})
	cleanup := func() {
		_ = mgr.Close()
		_ = cached.Close()
	}

	files, err := repo.NewDirProvider(root).Files(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := mgr.Build(ctx, files); err != nil {
		cleanup()
		return nil, nil, err
	}

	return mgr, cleanup, nil
}
