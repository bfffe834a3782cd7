package hmr

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChangeTrackerDetectChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.js")
	if err := os.WriteFile(path, []byte("export default 1"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker := NewChangeTracker()

	changed, err := tracker.DetectChange(path)
	if err != nil {
		t.Fatalf("DetectChange failed: %v", err)
	}
	if !changed {
		t.Error("first sighting should count as a change")
	}

	changed, _ = tracker.DetectChange(path)
	if changed {
		t.Error("unchanged content reported as change")
	}

	if err := os.WriteFile(path, []byte("export default 2"), 0644); err != nil {
		t.Fatal(err)
	}
	changed, _ = tracker.DetectChange(path)
	if !changed {
		t.Error("modified content not detected")
	}

	tracker.Forget(path)
	changed, _ = tracker.DetectChange(path)
	if !changed {
		t.Error("forgotten file should count as new")
	}
}

func TestChangeTrackerMissingFile(t *testing.T) {
	tracker := NewChangeTracker()
	if _, err := tracker.DetectChange(filepath.Join(t.TempDir(), "nope.js")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHashContent(t *testing.T) {
	a := hashContent([]byte("a"))
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %q", a)
	}
	if a == hashContent([]byte("b")) {
		t.Error("different content produced the same hash")
	}
}
