package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"petscan/internal/imageload"
	"petscan/internal/logging"
	"petscan/internal/results"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
)

// imageTimeout bounds a full-quality load, including remote downloads.
const imageTimeout = 60 * time.Second

// PhotosResponse lists accepted photos.
type PhotosResponse struct {
	Photos     []results.PetPhoto `json:"photos"`
	Count      int                `json:"count"`
	ByCategory map[string]int     `json:"byCategory"`
}

func newPhotosResponse(photos []results.PetPhoto) PhotosResponse {
	if photos == nil {
		photos = []results.PetPhoto{}
	}
	byCategory := make(map[string]int)
	for category, n := range results.CountByCategory(photos) {
		byCategory[string(category)] = n
	}
	return PhotosResponse{Photos: photos, Count: len(photos), ByCategory: byCategory}
}

// ListPhotos returns the accepted photos of the current state, newest day
// first.
func (h *Handlers) ListPhotos(w http.ResponseWriter, _ *http.Request) {
	state := h.pipeline.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, newPhotosResponse(state.ResultsByDate.Flatten()))
}

// ListDays returns the accepted photos grouped by day, newest first.
func (h *Handlers) ListDays(w http.ResponseWriter, _ *http.Request) {
	days := h.pipeline.Snapshot().ResultsByDate.Days()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, days)
}

// PhotosForDay returns the accepted photos of one YYYY-MM-DD day.
func (h *Handlers) PhotosForDay(w http.ResponseWriter, r *http.Request) {
	day, err := results.ParseDay(mux.Vars(r)["date"], h.location)
	if err != nil {
		writeJSONError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	photos := h.pipeline.PhotosForDate(day)
	response := struct {
		Day   string `json:"day"`
		Label string `json:"label"`
		PhotosResponse
	}{
		Day:            day.Format(results.DayLayout),
		Label:          results.DisplayDate(day),
		PhotosResponse: newPhotosResponse(photos),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// PhotoImage serves a full-quality JPEG of an accepted photo.
func (h *Handlers) PhotoImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	photo, ok := h.pipeline.Photo(id)
	if !ok {
		writeJSONError(w, "photo not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), imageTimeout)
	defer cancel()

	img, ok := imageload.Load(ctx, h.images, photo.Handle(), imageload.FullRequest())
	if !ok {
		writeJSONError(w, "image could not be loaded", http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		logging.Error("failed to encode image %s: %v", id, err)
		writeJSONError(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Debug("failed to write image %s: %v", id, err)
	}
}
