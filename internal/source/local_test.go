package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSourceListFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.MP4", "c.txt", "d.wav", ".hidden.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := NewLocalSource(dir).List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	// .hidden.mp3 still has a supported extension; directories and .txt do not.
	want := map[string]bool{".hidden.mp3": true, "a.mp3": true, "b.MP4": true, "d.wav": true}
	if len(files) != len(want) {
		t.Fatalf("files = %d, want %d: %+v", len(files), len(want), files)
	}
	for _, f := range files {
		if !want[f.Name] {
			t.Errorf("unexpected file %q in listing", f.Name)
		}
		if f.Size != 1 {
			t.Errorf("file %q size = %d, want 1", f.Name, f.Size)
		}
		if f.Key != filepath.Join(dir, f.Name) {
			t.Errorf("file %q key = %q", f.Name, f.Key)
		}
	}

	// Deterministic order by key.
	for i := 1; i < len(files); i++ {
		if files[i-1].Key >= files[i].Key {
			t.Error("listing not sorted by key")
		}
	}
}

func TestLocalSourceFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewLocalSource(dir)
	got, cleanup, err := src.Fetch(t.Context(), path, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer cleanup()
	if got != path {
		t.Errorf("Fetch = %q, want %q", got, path)
	}

	if _, _, err := src.Fetch(t.Context(), filepath.Join(dir, "missing.mp3"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}
