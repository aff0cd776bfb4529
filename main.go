package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petscan/internal/classify"
	"petscan/internal/detector"
	"petscan/internal/handlers"
	"petscan/internal/imageload"
	"petscan/internal/indexer"
	"petscan/internal/library"
	"petscan/internal/logging"
	"petscan/internal/memory"
	"petscan/internal/metrics"
	"petscan/internal/middleware"
	"petscan/internal/scan"
	"petscan/internal/startup"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(memory.ConfigureFromEnv())
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	startup.LogImagingInit(imageload.InitVips())

	catalogStart := time.Now()
	catalog, err := library.Open(context.Background(), config.DatabasePath, config.LibraryDir)
	if err != nil {
		startup.LogFatal("Failed to open catalog: %v", err)
	}
	startup.LogCatalogInit(config.DatabasePath, time.Since(catalogStart))

	classifier, closeClassifier, err := newClassifier(config)
	if err != nil {
		startup.LogFatal("Failed to initialize classifier: %v", err)
	}

	pipeline := scan.New(catalog, imageload.NewLoader(), classifier, config.Scan,
		scan.WithBackpressure(monitor))

	startup.LogIndexerInit(config.IndexInterval, config.ScanOnIndex)
	idx := indexer.New(catalog, config.LibraryDir, config.IndexInterval)
	if config.ScanOnIndex {
		idx.SetOnIndexComplete(func(indexer.Result) {
			if err := pipeline.Scan(context.Background()); err != nil {
				logging.Error("Scan after index failed: %v", err)
			}
		})
	}
	idx.Start()
	startup.LogIndexerStarted()

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	collector := metrics.NewCollector(catalog, config.DatabasePath, 30*time.Second)
	collector.Start()

	hubCtx, stopHub := context.WithCancel(context.Background())
	updates, unsubscribe := pipeline.Subscribe(32)
	hub := handlers.NewHub(pipeline.Snapshot)
	go hub.Run(hubCtx, updates)

	h := handlers.New(pipeline, idx, catalog, imageload.NewLoader(), hub)
	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", handlers.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	shutdownDone := make(chan struct{})
	go handleShutdown(shutdownDone, shutdownDeps{
		srv:        srv,
		metricsSrv: metricsSrv,
		pipeline:   pipeline,
		indexer:    idx,
		collector:  collector,
		monitor:    monitor,
		stopEvents: func() {
			unsubscribe()
			stopHub()
		},
		closers: []func() error{closeClassifier, catalog.Close},
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

// newClassifier builds the configured backend, wrapped with metrics.
func newClassifier(config *startup.Config) (classify.Classifier, func() error, error) {
	switch config.Classifier {
	case startup.ClassifierHTTP:
		opts := []classify.HTTPOption{classify.WithRateLimit(config.ClassifierRPS, 1)}
		if config.ClassifierToken != "" {
			opts = append(opts, classify.WithToken(config.ClassifierToken))
		}
		c := classify.NewHTTPClassifier(config.ClassifierURL, opts...)
		startup.LogClassifierInit(startup.ClassifierHTTP, config.ClassifierURL)
		return classify.Instrumented(startup.ClassifierHTTP, c), func() error { return nil }, nil

	default:
		d, err := detector.New(config.ModelPath, config.ModelConfigPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load detection model: %w", err)
		}
		startup.LogClassifierInit(startup.ClassifierDNN, config.ModelPath)
		return classify.Instrumented(startup.ClassifierDNN, d), d.Close, nil
	}
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	r.Use(mux.MiddlewareFunc(middleware.Logger(loggingConfig)))
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	return r
}

type shutdownDeps struct {
	srv        *http.Server
	metricsSrv *http.Server
	pipeline   *scan.Pipeline
	indexer    *indexer.Indexer
	collector  *metrics.Collector
	monitor    *memory.Monitor
	stopEvents func()
	closers    []func() error
}

func handleShutdown(done chan<- struct{}, deps shutdownDeps) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Cancelling scan")
	deps.pipeline.Cancel()
	if err := deps.pipeline.Wait(ctx); err != nil {
		logging.Warn("Scan did not wind down: %v", err)
	}
	startup.LogShutdownStepComplete("Scan stopped")

	startup.LogShutdownStep("Stopping indexer")
	deps.indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Closing scan event stream")
	deps.stopEvents()
	startup.LogShutdownStepComplete("Scan event stream closed")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if deps.metricsSrv != nil {
		if err := deps.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	deps.collector.Stop()
	deps.monitor.Stop()
	for _, closeFn := range deps.closers {
		if err := closeFn(); err != nil {
			logging.Warn("Close error: %v", err)
		}
	}

	imageload.ShutdownVips()
	startup.LogShutdownComplete()
}
