package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cbzxl/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Encoder.Effort != 8 {
		t.Fatalf("expected default effort 8, got %d", cfg.Encoder.Effort)
	}
	if cfg.Processing.Threads != 10 {
		t.Fatalf("expected default threads 10, got %d", cfg.Processing.Threads)
	}
	if !cfg.Processing.Flatten || !cfg.Processing.Convert {
		t.Fatal("expected flatten and convert enabled by default")
	}
	if !filepath.IsAbs(cfg.Paths.Root) {
		t.Fatalf("expected normalized absolute root, got %q", cfg.Paths.Root)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
root = "` + dir + `"
data_dir = "` + filepath.Join(dir, "data") + `"

[encoder]
effort = 3
distance = 1.5
smart_distance = true

[processing]
threads = 4
delete_empty = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Encoder.Effort != 3 || cfg.Encoder.Distance != 1.5 || !cfg.Encoder.SmartDistance {
		t.Fatalf("unexpected encoder config: %+v", cfg.Encoder)
	}
	if cfg.Processing.Threads != 4 || !cfg.Processing.DeleteEmpty {
		t.Fatalf("unexpected processing config: %+v", cfg.Processing)
	}
	if got, want := cfg.DatabasePath(), filepath.Join(dir, "data", "converted_archives.db"); got != want {
		t.Fatalf("DatabasePath = %q, want %q", got, want)
	}
	if cfg.Paths.LogDir != filepath.Join(dir, "data", "logs") {
		t.Fatalf("expected log dir under data dir, got %q", cfg.Paths.LogDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"effort", "[encoder]\neffort = 11\n", "encoder.effort"},
		{"distance", "[encoder]\ndistance = -1.0\n", "encoder.distance"},
		{"threads", "[processing]\nthreads = 0\n", "processing.threads"},
		{"format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"level", "[logging]\nlevel = \"trace\"\n", "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[encoder]") {
		t.Fatal("expected sample to contain encoder section")
	}
}
