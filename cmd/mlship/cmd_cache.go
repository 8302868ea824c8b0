package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlship/mlship/internal/cache"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/spf13/cobra"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the stage result cache",
		Long: `Manage the stage result cache.

The cache stores stage results and artifact archives so an unchanged train
stage can be replayed instead of re-run. Entries are keyed by the stage
configuration and the content of its input files.`,
	}

	cmd.AddCommand(newCacheClearCommand())
	cmd.AddCommand(newCacheInfoCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the stage result cache",
		Long: `Clear all cached stage results and artifact archives.

The next pipeline run will re-execute every stage from scratch.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", pipeline.DefaultCacheDir, "Cache directory to clear")

	return cmd
}

func newCacheInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show cache size and entry count",
		RunE:  cacheInfoE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", pipeline.DefaultCacheDir, "Cache directory to inspect")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	// Resolve to absolute path
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir) //nolint:errcheck
	return nil
}

func cacheInfoE(cmd *cobra.Command, args []string) error {
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	w := cmd.OutOrStdout()

	entries, err := os.ReadDir(absDir)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "Cache directory: %s (empty)\n", absDir) //nolint:errcheck
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	var results, archives int
	var totalSize int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(entry.Name(), ".tar.zst"):
			archives++
		case filepath.Ext(entry.Name()) == ".json":
			results++
		default:
			continue
		}
		if info, err := entry.Info(); err == nil {
			totalSize += info.Size()
		}
	}

	fmt.Fprintf(w, "Cache directory:   %s\n", absDir)              //nolint:errcheck
	fmt.Fprintf(w, "Cached results:    %d\n", results)             //nolint:errcheck
	fmt.Fprintf(w, "Artifact archives: %d\n", archives)            //nolint:errcheck
	fmt.Fprintf(w, "Total size:        %s\n", formatSize(totalSize)) //nolint:errcheck
	return nil
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
