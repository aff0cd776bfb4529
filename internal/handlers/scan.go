package handlers

import (
	"errors"
	"net/http"

	"petscan/internal/assets"
	"petscan/internal/logging"
)

// GetScan returns the current scan state. With ?results=false the result
// lists are left out.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	state := h.pipeline.Snapshot()
	if r.URL.Query().Get("results") == "false" {
		state = state.Summary()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, state)
}

// StartScan starts a new scan, superseding any scan in flight.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Scan(r.Context()); err != nil {
		if errors.Is(err, assets.ErrUnauthorized) {
			writeJSONError(w, "photo library access not authorized", http.StatusForbidden)
			return
		}
		logging.Error("failed to start scan: %v", err)
		writeJSONError(w, "failed to start scan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.pipeline.Snapshot().Summary())
}

// CancelScan stops the scan in flight, if any.
func (h *Handlers) CancelScan(w http.ResponseWriter, _ *http.Request) {
	h.pipeline.Cancel()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.pipeline.Snapshot().Summary())
}

// Reindex starts a library index run in the background.
func (h *Handlers) Reindex(w http.ResponseWriter, _ *http.Request) {
	if !h.indexer.TriggerIndex() {
		writeJSONError(w, "index already in progress", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "indexing"})
}
