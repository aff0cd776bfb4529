package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"petscan/internal/assets"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestParallelWalkerFindsMedia(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"a.jpg",
		"b.PNG",
		"notes.txt",
		"2024/clip.mp4",
		"2024/deep/c.heic",
		".hidden/secret.jpg",
		".dotfile.jpg",
	)

	for _, workers := range []int{1, 4} {
		cfg := DefaultParallelWalkerConfig()
		cfg.NumWorkers = workers
		walker := NewParallelWalker(root, cfg)

		rows, err := walker.Walk(context.Background())
		if err != nil {
			t.Fatalf("Walk() error: %v", err)
		}

		var got []string
		types := map[string]assets.MediaType{}
		for _, r := range rows {
			rel, _ := filepath.Rel(root, r.Path)
			rel = filepath.ToSlash(rel)
			got = append(got, rel)
			types[rel] = r.MediaType
			if r.ID != AssetID(rel) {
				t.Errorf("ID for %s = %s, want %s", rel, r.ID, AssetID(rel))
			}
			if r.CreatedAt.IsZero() {
				t.Errorf("CreatedAt for %s is zero", rel)
			}
		}
		sort.Strings(got)

		want := []string{"2024/clip.mp4", "2024/deep/c.heic", "a.jpg", "b.PNG"}
		if len(got) != len(want) {
			t.Fatalf("workers=%d: got %v, want %v", workers, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("workers=%d: got[%d] = %s, want %s", workers, i, got[i], want[i])
			}
		}
		if types["2024/clip.mp4"] != assets.MediaTypeVideo {
			t.Errorf("clip.mp4 type = %v, want video", types["2024/clip.mp4"])
		}

		files, folders, _ := walker.Stats()
		if files != 4 {
			t.Errorf("files = %d, want 4", files)
		}
		if folders != 3 {
			t.Errorf("folders = %d, want 3", folders)
		}
	}
}

func TestParallelWalkerMissingRoot(t *testing.T) {
	walker := NewParallelWalker(filepath.Join(t.TempDir(), "missing"), DefaultParallelWalkerConfig())
	if _, err := walker.Walk(context.Background()); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestParallelWalkerCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.jpg", "b.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	walker := NewParallelWalker(root, DefaultParallelWalkerConfig())
	if _, err := walker.Walk(ctx); err != context.Canceled {
		t.Errorf("Walk() error = %v, want context.Canceled", err)
	}
}

func TestAssetIDStable(t *testing.T) {
	if AssetID("2024/a.jpg") != AssetID(filepath.Join("2024", "a.jpg")) {
		t.Error("AssetID should not depend on the path separator")
	}
	if AssetID("a.jpg") == AssetID("b.jpg") {
		t.Error("distinct paths should have distinct ids")
	}
	if len(AssetID("a.jpg")) != 32 {
		t.Errorf("AssetID length = %d, want 32", len(AssetID("a.jpg")))
	}
}

func TestDefaultParallelWalkerConfigEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 3},
		{"8", 8},
		{"0", 3},
		{"abc", 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("INDEX_WORKERS", tt.value)
			if got := DefaultParallelWalkerConfig().NumWorkers; got != tt.want {
				t.Errorf("NumWorkers = %d, want %d", got, tt.want)
			}
		})
	}
}
