package handlers

import (
	"net/http"
	"time"

	"petscan/internal/imageload"
	"petscan/internal/indexer"
	"petscan/internal/metrics"
	"petscan/internal/scan"

	"github.com/gorilla/mux"
)

// Indexer is the part of the library indexer the API uses.
type Indexer interface {
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
	TriggerIndex() bool
}

// Handlers serves the petscan API.
type Handlers struct {
	pipeline *scan.Pipeline
	indexer  Indexer
	stats    metrics.StatsProvider
	images   imageload.Manager
	events   *Hub
	location *time.Location
}

// New creates the API handlers. stats may be nil.
func New(pipeline *scan.Pipeline, idx Indexer, stats metrics.StatsProvider, images imageload.Manager, events *Hub) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		indexer:  idx,
		stats:    stats,
		images:   images,
		events:   events,
		location: pipeline.Config().Location,
	}
}

// RegisterRoutes adds every API route to router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scan", h.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scan", h.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan", h.CancelScan).Methods(http.MethodDelete)
	api.HandleFunc("/scan/events", h.ScanEvents).Methods(http.MethodGet)

	api.HandleFunc("/photos", h.ListPhotos).Methods(http.MethodGet)
	api.HandleFunc("/photos/days", h.ListDays).Methods(http.MethodGet)
	api.HandleFunc("/photos/days/{date}", h.PhotosForDay).Methods(http.MethodGet)
	api.HandleFunc("/photos/{id}/image", h.PhotoImage).Methods(http.MethodGet)

	api.HandleFunc("/library/reindex", h.Reindex).Methods(http.MethodPost)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	router.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
}
