package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"cbzxl/internal/config"
	"cbzxl/internal/encoder"
	"cbzxl/internal/ledger"
	"cbzxl/internal/processor"
)

func pngPage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func makeArchive(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	writer := zip.NewWriter(out)
	for name, content := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := entry.Write(content); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func newTestRunner(t *testing.T, root string, encoderScript string, mutate ...func(*processor.Options)) (*Runner, *ledger.Store) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub encoder scripts require a POSIX shell")
	}
	dataDir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Root = root
	cfg.Paths.DataDir = dataDir
	cfg.Paths.TempDir = t.TempDir()
	cfg.Processing.Threads = 2

	store, err := ledger.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	binary := filepath.Join(t.TempDir(), "cjxl-stub")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"+encoderScript), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	procOpts := processor.Options{
		TempDir: cfg.Paths.TempDir,
		Encoder: encoder.Options{Binary: binary, Effort: 8},
		Threads: cfg.Processing.Threads,
		Convert: true,
	}
	for _, fn := range mutate {
		fn(&procOpts)
	}
	proc := processor.New(procOpts, nil)

	r, err := New(&cfg, store, proc, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, store
}

func TestRunProcessesAndRemembers(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "a.cbz"), map[string][]byte{"001.png": pngPage(t)})
	makeArchive(t, filepath.Join(root, "series", "b.cbz"), map[string][]byte{"001.png": pngPage(t)})

	r, store := newTestRunner(t, root, `printf 'jxl' > "$5"`)
	ctx := context.Background()

	summary, err := r.Run(ctx, Options{Root: root, Quiet: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Processed != 2 {
		t.Fatalf("processed = %d, want 2", summary.Stats.Processed)
	}
	if summary.Stats.BytesSaved <= 0 {
		t.Fatalf("expected savings, got %d", summary.Stats.BytesSaved)
	}

	record, err := store.Get(ctx, "a.cbz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Status != ledger.StatusProcessed {
		t.Fatalf("unexpected record: %+v", record)
	}

	// A second run finds everything already recorded and converts nothing.
	summary, err = r.Run(ctx, Options{Root: root, Quiet: true, SuppressSkipped: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.AlreadyOK != 2 || summary.Stats.Seen != 0 {
		t.Fatalf("second run reprocessed archives: %+v", summary)
	}
}

func TestRunRecordsFailuresAndRetriesThem(t *testing.T) {
	root := t.TempDir()
	// An unreadable zip makes the archive fail without touching the encoder.
	badPath := filepath.Join(root, "broken.cbz")
	if err := os.WriteFile(badPath, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write broken archive: %v", err)
	}

	r, store := newTestRunner(t, root, `printf 'jxl' > "$5"`)
	ctx := context.Background()

	summary, err := r.Run(ctx, Options{Root: root, Quiet: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", summary.Stats.Failed)
	}
	record, err := store.Get(ctx, "broken.cbz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Status != ledger.StatusFailed || record.FailureReason == "" {
		t.Fatalf("unexpected record: %+v", record)
	}

	// Default runs leave failures alone.
	summary, err = r.Run(ctx, Options{Root: root, Quiet: true, SuppressSkipped: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Seen != 0 {
		t.Fatalf("failed archive reprocessed without the retry flag: %+v", summary)
	}

	// The retry flag sends it back through the pipeline.
	summary, err = r.Run(ctx, Options{Root: root, Quiet: true, ReprocessFailed: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Failed != 1 {
		t.Fatalf("retry should have reprocessed the failure: %+v", summary)
	}
}

func TestRunDryRunLeavesLedgerUntouched(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "a.cbz"), map[string][]byte{"001.png": pngPage(t)})

	r, store := newTestRunner(t, root, `printf 'jxl' > "$5"`, func(o *processor.Options) {
		o.DryRun = true
	})
	ctx := context.Background()

	summary, err := r.Run(ctx, Options{Root: root, Quiet: true, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Conversions ran against the working copy, so the dry run reports
	// the savings a live run would achieve.
	if summary.Stats.BytesSaved <= 0 {
		t.Fatalf("dry run should estimate savings, got %d", summary.Stats.BytesSaved)
	}
	record, err := store.Get(ctx, "a.cbz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record != nil {
		t.Fatalf("dry run must not write ledger rows: %+v", record)
	}
	runs, err := store.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("dry run must not write any records")
	}
}

func TestRunLockExcludesSecondInstance(t *testing.T) {
	root := t.TempDir()
	r, _ := newTestRunner(t, root, `exit 1`)

	ok, err := r.lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("prime lock: ok=%v err=%v", ok, err)
	}
	defer r.lock.Unlock()

	second, err := New(r.cfg, r.store, r.proc, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := second.Run(context.Background(), Options{Root: root, Quiet: true}); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDiscoverArchivesCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	makeArchive(t, filepath.Join(root, "b.CBZ"), map[string][]byte{"x.txt": []byte("x")})
	makeArchive(t, filepath.Join(root, "a.cbz"), map[string][]byte{"x.txt": []byte("x")})
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	archives, err := discoverArchives(root)
	if err != nil {
		t.Fatalf("discoverArchives: %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("found %d archives, want 2: %v", len(archives), archives)
	}
	if filepath.Base(archives[0]) != "a.cbz" {
		t.Fatalf("expected sorted order, got %v", archives)
	}
}
