package scan

import (
	"time"

	"petscan/internal/imageload"
	"petscan/internal/results"
)

// Config controls a scan run.
type Config struct {
	// MaxPhotos caps the working set; only the newest assets are scanned.
	MaxPhotos int
	// BatchSize is the number of items between result publishes.
	BatchSize int
	// Threshold is the exclusive minimum confidence for acceptance.
	Threshold float64
	// Cooldown is the pause between batches.
	Cooldown time.Duration
	// TargetSize bounds both sides of the image handed to the classifier.
	TargetSize int
	// Quality is the image delivery tier used for classification input.
	Quality imageload.Quality
	// AllowRemote lets the loader fetch assets that are not stored locally.
	AllowRemote bool
	// ItemTimeout bounds the load and classify of a single item. Zero means
	// no bound.
	ItemTimeout time.Duration
	// Location is the calendar used to partition results by day.
	Location *time.Location
}

// DefaultConfig returns the standard scan settings.
func DefaultConfig() Config {
	return Config{
		MaxPhotos:   1000,
		BatchSize:   20,
		Threshold:   results.DefaultThreshold,
		Cooldown:    100 * time.Millisecond,
		TargetSize:  512,
		Quality:     imageload.QualityFast,
		AllowRemote: true,
		ItemTimeout: time.Minute,
		Location:    time.Local,
	}
}

// normalized fills zero or invalid fields from DefaultConfig.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxPhotos <= 0 {
		c.MaxPhotos = def.MaxPhotos
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.TargetSize <= 0 {
		c.TargetSize = def.TargetSize
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.ItemTimeout < 0 {
		c.ItemTimeout = 0
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	return c
}

func (c Config) imageRequest() imageload.Request {
	return imageload.Request{
		TargetWidth:  c.TargetSize,
		TargetHeight: c.TargetSize,
		Quality:      c.Quality,
		AllowRemote:  c.AllowRemote,
	}
}
