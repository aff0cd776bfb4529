package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

// restoreMemoryLimit resets the process limit after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() {
		debug.SetMemoryLimit(original)
	})
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name           string
		memoryLimit    string
		memoryRatio    string
		wantConfigured bool
		wantSource     string
		wantRatio      float64
		wantLimit      int64
	}{
		{
			name:       "nothing set",
			wantSource: "none",
		},
		{
			name:           "memory limit with default ratio",
			memoryLimit:    "1000000000",
			wantConfigured: true,
			wantSource:     "MEMORY_LIMIT",
			wantRatio:      DefaultMemoryRatio,
			wantLimit:      800000000,
		},
		{
			name:           "custom ratio",
			memoryLimit:    "1000000000",
			memoryRatio:    "0.5",
			wantConfigured: true,
			wantSource:     "MEMORY_LIMIT",
			wantRatio:      0.5,
			wantLimit:      500000000,
		},
		{
			name:           "ratio out of range",
			memoryLimit:    "1000000000",
			memoryRatio:    "1.5",
			wantConfigured: true,
			wantSource:     "MEMORY_LIMIT",
			wantRatio:      DefaultMemoryRatio,
			wantLimit:      800000000,
		},
		{
			name:           "ratio not a number",
			memoryLimit:    "1000000000",
			memoryRatio:    "lots",
			wantConfigured: true,
			wantSource:     "MEMORY_LIMIT",
			wantRatio:      DefaultMemoryRatio,
			wantLimit:      800000000,
		},
		{
			name:        "invalid limit",
			memoryLimit: "512Mi",
			wantSource:  "none",
		},
		{
			name:        "negative limit",
			memoryLimit: "-1",
			wantSource:  "none",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.memoryLimit)
			t.Setenv("MEMORY_RATIO", tt.memoryRatio)

			got := ConfigureFromEnv()

			if got.Configured != tt.wantConfigured {
				t.Errorf("Configured = %v, want %v", got.Configured, tt.wantConfigured)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if !tt.wantConfigured {
				return
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.wantRatio)
			}
			if got.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.wantLimit)
			}
			if limit := debug.SetMemoryLimit(-1); limit != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", limit, tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromEnvGOMEMLIMITWins(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(math.MaxInt64)
	t.Setenv("GOMEMLIMIT", "1GiB")
	t.Setenv("MEMORY_LIMIT", "1000000000")

	got := ConfigureFromEnv()
	if got.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", got.Source)
	}
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		t.Errorf("runtime limit changed to %d", limit)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
