package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"petscan/internal/logging"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "petscan",
		Short: "Find the pet photos in a photo library",
		Long: `petscan indexes a directory of photos, classifies the newest ones
and lists every picture of a dog or cat, grouped by the day it was taken.`,
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "catalog database path (default: user cache dir)")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logging.Info("Received interrupt signal, cancelling...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("log-level")
	if name == "" {
		return nil
	}
	level, ok := logging.ParseLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	logging.SetLevel(level)
	return nil
}

// catalogPath resolves the --db flag.
func catalogPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		return path, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	dir := filepath.Join(cacheDir, "petscan")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// libraryDir resolves the optional directory argument.
func libraryDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
