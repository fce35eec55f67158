package cbz

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	writer := zip.NewWriter(out)
	for name, content := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestExtractAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "book.cbz")
	writeArchive(t, archive, map[string]string{
		"001.jpg":       "page one",
		"sub/002.png":   "page two",
		"ComicInfo.xml": "<ComicInfo/>",
	})

	extractDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	count, err := Extract(context.Background(), archive, extractDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 files extracted, got %d", count)
	}
	got, err := os.ReadFile(filepath.Join(extractDir, "sub", "002.png"))
	if err != nil {
		t.Fatalf("read extracted entry: %v", err)
	}
	if string(got) != "page two" {
		t.Fatalf("unexpected entry content %q", got)
	}

	repacked := filepath.Join(dir, "repacked.cbz")
	if err := Create(context.Background(), extractDir, repacked); err != nil {
		t.Fatalf("Create: %v", err)
	}
	reader, err := zip.OpenReader(repacked)
	if err != nil {
		t.Fatalf("open repacked: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(reader.File))
	}
	if reader.File[0].Name != "001.jpg" {
		t.Fatalf("unexpected first entry %q", reader.File[0].Name)
	}
	if reader.File[0].Method != zip.Store {
		t.Fatalf("image entries should be stored, got method %d", reader.File[0].Method)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.cbz")
	writeArchive(t, archive, map[string]string{
		"../outside.txt": "nope",
	})

	extractDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Extract(context.Background(), archive, extractDir); err == nil {
		t.Fatalf("expected error for path traversal entry")
	}
	if _, err := os.Stat(filepath.Join(dir, "outside.txt")); !os.IsNotExist(err) {
		t.Fatalf("traversal entry must not be written")
	}
}

func TestReplaceSwapsArchiveAtomically(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "book.cbz")
	writeArchive(t, archive, map[string]string{"old.jpg": "old"})

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "new.jxl"), []byte("new"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Replace(context.Background(), srcDir, archive, dir); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	reader, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open replaced archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 1 || reader.File[0].Name != "new.jxl" {
		t.Fatalf("archive not replaced: %+v", reader.File)
	}

	// No staging leftovers.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Fatalf("staging file left behind: %s", entry.Name())
		}
	}
}

func TestExtractMissingArchive(t *testing.T) {
	if _, err := Extract(context.Background(), filepath.Join(t.TempDir(), "absent.cbz"), t.TempDir()); err == nil {
		t.Fatalf("expected error for missing archive")
	}
}
