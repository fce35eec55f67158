package processor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestFlattenNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"ch1/page 2.jpg":  "second",
		"ch1/page 10.jpg": "tenth",
		"ch1/page 1.jpg":  "first",
	})

	moved, err := Flatten(dir)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if moved != 3 {
		t.Fatalf("moved = %d, want 3", moved)
	}

	// Numeric collation puts "page 2" before "page 10".
	for name, want := range map[string]string{
		"0001.jpg": "first",
		"0002.jpg": "second",
		"0003.jpg": "tenth",
	} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "ch1")); !os.IsNotExist(err) {
		t.Fatalf("emptied directory must be removed")
	}
}

func TestFlattenAlreadyFlat(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"001.jpg": "page"})

	moved, err := Flatten(dir)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if moved != 0 {
		t.Fatalf("flat tree must not move files, moved %d", moved)
	}
}

func TestFlattenNonImageCollision(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"info.txt":     "root",
		"ch1/info.txt": "nested",
	})

	if _, err := Flatten(dir); err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "info.txt"))
	if err != nil {
		t.Fatalf("read root file: %v", err)
	}
	if string(got) != "root" {
		t.Fatalf("root file overwritten by flatten")
	}
	if _, err := os.Stat(filepath.Join(dir, "info_1.txt")); err != nil {
		t.Fatalf("collision rename missing: %v", err)
	}
}

func TestRunStatsAccounting(t *testing.T) {
	var stats RunStats
	stats.Add(Result{
		Disposition:     DispositionProcessed,
		OriginalSize:    1_000_000,
		FinalSize:       400_000,
		ImagesConverted: 12,
		Repacked:        true,
	})
	stats.Add(Result{Disposition: DispositionFailed, OriginalSize: 5000, FinalSize: 5000})
	stats.Add(Result{Disposition: DispositionDeleted, OriginalSize: 200})

	if stats.Seen != 3 || stats.Processed != 1 || stats.Failed != 1 || stats.Deleted != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.BytesSaved != 600_200 {
		t.Fatalf("bytes saved = %d, want 600200", stats.BytesSaved)
	}
	if stats.Repacked != 1 {
		t.Fatalf("repacked = %d, want 1", stats.Repacked)
	}
}
