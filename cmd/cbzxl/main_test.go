package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}
	path := filepath.Join(dir, "cbzxl.toml")
	content := fmt.Sprintf(`[paths]
root = %q
data_dir = %q

[logging]
level = "error"
`, root, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitCreatesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output missing target path: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatalf("second init without --overwrite must fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestDBResetRequiresForce(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", cfgPath, "db", "reset")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected --force guidance, got %v", err)
	}

	out, err := runCommand(t, "--config", cfgPath, "db", "reset", "--force")
	if err != nil {
		t.Fatalf("db reset --force: %v", err)
	}
	if !strings.Contains(out, "Cleared 0 ledger rows") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStatsOnEmptyLedger(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "processed") || !strings.Contains(out, "Bytes saved") {
		t.Fatalf("unexpected stats output: %q", out)
	}
}

func TestDBGCOnEmptyLedger(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "db", "gc")
	if err != nil {
		t.Fatalf("db gc: %v", err)
	}
	if !strings.Contains(out, "Removed 0 stale ledger rows") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCommand(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"stats", "status", "db", "config"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output missing %q: %q", name, out)
		}
	}
}
