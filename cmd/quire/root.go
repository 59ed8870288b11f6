package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire/internal/cache"
	"github.com/quireapp/quire/internal/config"
	"github.com/quireapp/quire/internal/home"
)

var (
	cfgFile string
	homeDir string

	cfgManager *config.Manager
	quireHome  *home.Dir
)

var rootCmd = &cobra.Command{
	Use:   "quire",
	Short: "Paged-document reader core: list, extract, and prefetch pages",
	Long: `Quire opens paginated documents (cbz/zip archives, PDFs, EPUBs,
image folders, single images) and presents them as a uniform sequence
of pages that can be materialized on demand.

Extracted pages are cached in a session-scoped scratch directory with
windowed prefetch and distance-based eviction, so documents with
thousands of pages stay within a small working set.`,
	Version:       versionString(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.quire/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "quire home directory (default: ~/.quire)",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		quireHome, err = home.New(homeDir)
		if err != nil {
			return err
		}

		cfgManager, err = config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(cfgManager.Get().Log.Level)); err != nil {
			level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(prefetchCmd)
}

// cacheConfig maps the loaded configuration onto cache tuning.
func cacheConfig() cache.Config {
	c := cfgManager.Get().Cache
	return cache.Config{
		ImmediateWindow:  c.ImmediateWindow,
		BackgroundWindow: c.BackgroundWindow,
		MaxConcurrent:    c.MaxConcurrent,
		MaxCachedPages:   c.MaxCachedPages,
		PacingDelay:      c.PacingDelay,
	}
}
