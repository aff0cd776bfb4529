package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"petscan/internal/indexer"
	"petscan/internal/library"
	"petscan/internal/logging"

	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index a photo directory into the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndex,
	}
	cmd.Flags().Int("workers", 0, "parallel walker workers (default: INDEX_WORKERS or 3)")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir, err := libraryDir(args)
	if err != nil {
		return err
	}
	dbPath, err := catalogPath(cmd)
	if err != nil {
		return err
	}
	workers, _ := cmd.Flags().GetInt("workers")

	catalog, err := library.Open(cmd.Context(), dbPath, dir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := catalog.Close(); closeErr != nil {
			logging.Warn("Failed to close catalog: %v", closeErr)
		}
	}()

	result, err := indexLibrary(cmd.Context(), catalog, dir, workers)
	if err != nil {
		return err
	}
	printIndexResult(cmd.OutOrStdout(), result, catalog)
	return nil
}

// indexLibrary brings the catalog in step with dir.
func indexLibrary(ctx context.Context, catalog *library.Catalog, dir string, workers int) (indexer.Result, error) {
	idx := indexer.New(catalog, dir, 0)
	defer idx.Stop()

	if workers > 0 {
		cfg := indexer.DefaultParallelWalkerConfig()
		cfg.NumWorkers = workers
		idx.SetParallelConfig(cfg)
	}

	result, err := idx.Index(ctx)
	if err != nil {
		return indexer.Result{}, fmt.Errorf("index %s: %w", dir, err)
	}
	return result, nil
}

func printIndexResult(w io.Writer, result indexer.Result, catalog *library.Catalog) {
	stats := catalog.GetStats()
	fmt.Fprintf(w, "Indexed %d files in %d folders (%d removed) in %s\n",
		result.Files, result.Folders, result.Removed, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Catalog: %d images, %d videos, %d without a date\n",
		stats.Images, stats.Videos, stats.Undated)
}
