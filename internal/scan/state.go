package scan

import (
	"time"

	"petscan/internal/results"
)

// State is a published view of the pipeline. Values handed out by the
// pipeline are never modified afterwards.
type State struct {
	// RunID identifies the run that produced the state.
	RunID string `json:"runId,omitempty"`
	// Version increases with every publish.
	Version      uint64  `json:"version"`
	IsScanning   bool    `json:"isScanning"`
	Progress     float64 `json:"progress"`
	ScannedCount int     `json:"scannedCount"`
	TotalCount   int     `json:"totalCount"`
	// Cancelled is set when the run ended before scanning every item.
	Cancelled     bool               `json:"cancelled"`
	Results       []results.PetPhoto `json:"results"`
	ResultsByDate results.DateIndex  `json:"resultsByDate"`
	StartedAt     time.Time          `json:"startedAt,omitzero"`
	FinishedAt    time.Time          `json:"finishedAt,omitzero"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s.Results != nil {
		photos := make([]results.PetPhoto, len(s.Results))
		copy(photos, s.Results)
		s.Results = photos
	}
	if s.ResultsByDate != nil {
		s.ResultsByDate = s.ResultsByDate.Clone()
	}
	return s
}

// Summary drops the result lists, leaving counters only.
func (s State) Summary() State {
	s.Results = nil
	s.ResultsByDate = nil
	return s
}
