package encoder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// stubEncoder writes a shell script standing in for cjxl. The script sees
// the same argument order the real invocation uses: --effort, -d, distance,
// source, output — so "$4" is the source and "$5" the output path.
func stubEncoder(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub encoder scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "cjxl-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func writeSource(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page01.jpg")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestConvertSuccessDeletesSource(t *testing.T) {
	source := writeSource(t, 1000)
	// Emit something smaller than the source.
	binary := stubEncoder(t, `printf 'jxl-data' > "$5"`)

	outcome := Convert(context.Background(), Options{Binary: binary, Effort: 8}, source)
	if !outcome.Success {
		t.Fatalf("expected success, got detail %q", outcome.Detail)
	}
	if outcome.OriginalSize != 1000 {
		t.Fatalf("original size = %d, want 1000", outcome.OriginalSize)
	}
	if outcome.FinalSize != 8 {
		t.Fatalf("final size = %d, want 8", outcome.FinalSize)
	}
	if outcome.Saved() != 992 {
		t.Fatalf("saved = %d, want 992", outcome.Saved())
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source must be deleted on success")
	}
	if filepath.Ext(outcome.Output) != OutputExt {
		t.Fatalf("output extension = %q", filepath.Ext(outcome.Output))
	}
}

func TestConvertFailureKeepsSourceRemovesPartialOutput(t *testing.T) {
	source := writeSource(t, 1000)
	// Simulate a crash after a truncated write.
	binary := stubEncoder(t, `printf 'trunc' > "$5"; echo 'encode error: corrupt stream' >&2; exit 1`)

	outcome := Convert(context.Background(), Options{Binary: binary, Effort: 8}, source)
	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(outcome.Detail, "corrupt stream") {
		t.Fatalf("expected encoder diagnostic in detail, got %q", outcome.Detail)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive failure: %v", err)
	}
	if _, err := os.Stat(outcome.Output); !os.IsNotExist(err) {
		t.Fatal("partial output must be removed on failure")
	}
	if outcome.FinalSize != 0 || outcome.Saved() != 0 {
		t.Fatalf("failed outcome must not report savings: %+v", outcome)
	}
}

func TestConvertEmptyOutputCountsAsFailure(t *testing.T) {
	source := writeSource(t, 1000)
	binary := stubEncoder(t, `: > "$5"`)

	outcome := Convert(context.Background(), Options{Binary: binary, Effort: 8}, source)
	if outcome.Success {
		t.Fatal("zero-byte output must count as failure")
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive failure: %v", err)
	}
	if _, err := os.Stat(outcome.Output); !os.IsNotExist(err) {
		t.Fatal("zero-byte output must be removed")
	}
}

func TestConvertTimeout(t *testing.T) {
	source := writeSource(t, 100)
	binary := stubEncoder(t, `sleep 10`)

	start := time.Now()
	outcome := Convert(context.Background(), Options{Binary: binary, Effort: 8, Timeout: 100 * time.Millisecond}, source)
	if outcome.Success {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if !strings.Contains(outcome.Detail, "timed out") {
		t.Fatalf("expected timeout detail, got %q", outcome.Detail)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive timeout: %v", err)
	}
}

func TestConvertMissingSource(t *testing.T) {
	outcome := Convert(context.Background(), Options{Binary: "/nonexistent"}, filepath.Join(t.TempDir(), "missing.jpg"))
	if outcome.Success {
		t.Fatal("expected failure for missing source")
	}
	if outcome.Detail == "" {
		t.Fatal("expected detail for missing source")
	}
}
