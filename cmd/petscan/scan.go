package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"petscan/internal/classify"
	"petscan/internal/detector"
	"petscan/internal/imageload"
	"petscan/internal/library"
	"petscan/internal/logging"
	"petscan/internal/results"
	"petscan/internal/scan"

	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	defaults := scan.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Scan a photo directory for pets",
		Long: `Index the directory, classify its newest photos and print every
accepted dog or cat photo grouped by day, newest day first.

Examples:
  petscan scan ~/Pictures
  petscan scan --max 200 --threshold 0.8 ~/Pictures
  petscan scan --classifier http --classifier-url http://vision:8000 .`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().Int("max", defaults.MaxPhotos, "scan at most this many of the newest photos")
	cmd.Flags().Int("batch", defaults.BatchSize, "photos per published batch")
	cmd.Flags().Float64("threshold", defaults.Threshold, "minimum confidence (exclusive)")
	cmd.Flags().Duration("cooldown", defaults.Cooldown, "pause between batches")
	cmd.Flags().Int("size", defaults.TargetSize, "classification input size in pixels")
	cmd.Flags().String("timezone", "Local", "calendar used to group photos by day")
	cmd.Flags().String("classifier", "dnn", "classifier backend (dnn, http)")
	cmd.Flags().String("model", "./models/frozen_inference_graph.pb", "DNN weights")
	cmd.Flags().String("model-config", "./models/ssd_mobilenet_v2_coco.pbtxt", "DNN config")
	cmd.Flags().String("classifier-url", "", "HTTP classifier base URL")
	cmd.Flags().String("classifier-token", "", "HTTP classifier bearer token")
	cmd.Flags().Float64("classifier-rps", 5, "HTTP classifier requests per second")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

type scanOptions struct {
	config     scan.Config
	classifier string
	model      string
	modelCfg   string
	url        string
	token      string
	rps        float64
	json       bool
}

func scanOptionsFromFlags(cmd *cobra.Command) (scanOptions, error) {
	flags := cmd.Flags()
	opts := scanOptions{config: scan.DefaultConfig()}

	opts.config.MaxPhotos, _ = flags.GetInt("max")
	opts.config.BatchSize, _ = flags.GetInt("batch")
	opts.config.Threshold, _ = flags.GetFloat64("threshold")
	opts.config.Cooldown, _ = flags.GetDuration("cooldown")
	opts.config.TargetSize, _ = flags.GetInt("size")
	opts.classifier, _ = flags.GetString("classifier")
	opts.model, _ = flags.GetString("model")
	opts.modelCfg, _ = flags.GetString("model-config")
	opts.url, _ = flags.GetString("classifier-url")
	opts.token, _ = flags.GetString("classifier-token")
	opts.rps, _ = flags.GetFloat64("classifier-rps")
	opts.json, _ = flags.GetBool("json")

	if opts.config.Threshold < 0 || opts.config.Threshold >= 1 {
		return opts, fmt.Errorf("--threshold must be in [0, 1), got %v", opts.config.Threshold)
	}

	tz, _ := flags.GetString("timezone")
	opts.config.Location = time.Local
	if tz != "" && tz != "Local" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return opts, fmt.Errorf("invalid --timezone %q: %w", tz, err)
		}
		opts.config.Location = loc
	}
	return opts, nil
}

func (o scanOptions) newClassifier() (classify.Classifier, func() error, error) {
	switch o.classifier {
	case "http":
		if o.url == "" {
			return nil, nil, errors.New("--classifier-url is required with --classifier http")
		}
		httpOpts := []classify.HTTPOption{classify.WithRateLimit(o.rps, 1)}
		if o.token != "" {
			httpOpts = append(httpOpts, classify.WithToken(o.token))
		}
		c := classify.NewHTTPClassifier(o.url, httpOpts...)
		return classify.Instrumented("http", c), func() error { return nil }, nil
	case "dnn":
		d, err := detector.New(o.model, o.modelCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load detection model: %w", err)
		}
		return classify.Instrumented("dnn", d), d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier %q (want dnn or http)", o.classifier)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	opts, err := scanOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	dir, err := libraryDir(args)
	if err != nil {
		return err
	}
	dbPath, err := catalogPath(cmd)
	if err != nil {
		return err
	}

	classifier, closeClassifier, err := opts.newClassifier()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeClassifier(); closeErr != nil {
			logging.Warn("Failed to close classifier: %v", closeErr)
		}
	}()

	if err := imageload.InitVips(); err != nil {
		logging.Debug("libvips unavailable, using pure Go decoding: %v", err)
	} else {
		defer imageload.ShutdownVips()
	}

	ctx := cmd.Context()
	catalog, err := library.Open(ctx, dbPath, dir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := catalog.Close(); closeErr != nil {
			logging.Warn("Failed to close catalog: %v", closeErr)
		}
	}()

	if _, err := indexLibrary(ctx, catalog, dir, 0); err != nil {
		return err
	}

	pipeline := scan.New(catalog, imageload.NewLoader(), classifier, opts.config)
	final, err := runPipeline(ctx, pipeline, newProgressRenderer(os.Stderr))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		return writeResultsJSON(out, final)
	}
	printResults(out, final)
	return nil
}

// runPipeline runs one scan to completion, cancelling it when ctx ends, and
// returns the final state.
func runPipeline(ctx context.Context, pipeline *scan.Pipeline, progress progressRenderer) (scan.State, error) {
	updates, unsubscribe := pipeline.Subscribe(16)
	defer unsubscribe()

	if err := pipeline.Scan(ctx); err != nil {
		return scan.State{}, err
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = pipeline.Wait(context.Background())
	}()

	for {
		select {
		case state := <-updates:
			progress.Update(state)
		case <-ctx.Done():
			pipeline.Cancel()
			ctx = context.Background()
		case <-finished:
			progress.Finish()
			return pipeline.Snapshot(), nil
		}
	}
}

func pluralPets(n int) string {
	if n == 1 {
		return "1 pet photo"
	}
	return fmt.Sprintf("%d pet photos", n)
}

// printResults lists the accepted photos by day, newest first.
func printResults(w io.Writer, state scan.State) {
	status := "Scan complete"
	if state.Cancelled {
		status = "Scan cancelled"
	}
	fmt.Fprintf(w, "%s: %d of %d photos scanned, %s found\n",
		status, state.ScannedCount, state.TotalCount, pluralPets(len(state.Results)))

	for _, day := range state.ResultsByDate.Days() {
		fmt.Fprintf(w, "\n%s (%d)\n", day.Label, len(day.Photos))
		for _, photo := range day.Photos {
			location := photo.Path
			if location == "" {
				location = photo.URL
			}
			fmt.Fprintf(w, "  %s %-5s %3.0f%%  %s\n",
				photo.Category.Emoji(), photo.Category.DisplayName(), photo.Confidence*100, location)
		}
	}

	counts := results.CountByCategory(state.Results)
	if len(counts) > 0 {
		fmt.Fprintln(w)
		for _, category := range classify.Categories {
			if n := counts[category]; n > 0 {
				fmt.Fprintf(w, "%s %s: %d\n", category.Emoji(), category.DisplayName(), n)
			}
		}
	}
}

func writeResultsJSON(w io.Writer, state scan.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Cancelled bool               `json:"cancelled"`
		Scanned   int                `json:"scanned"`
		Total     int                `json:"total"`
		Days      []results.DayGroup `json:"days"`
	}{
		Cancelled: state.Cancelled,
		Scanned:   state.ScannedCount,
		Total:     state.TotalCount,
		Days:      state.ResultsByDate.Days(),
	})
}
