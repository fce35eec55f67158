// Package preflight validates the environment before a conversion run
// starts: the encoder binary must resolve, the library root must be
// readable and writable, and the temp directory needs headroom for
// extracted archives.
package preflight

import (
	"context"
	"os"

	"cbzxl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config and
// library root. Checks that depend on disabled features are skipped.
func RunAll(ctx context.Context, cfg *config.Config, root string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Processing.Convert {
		results = append(results, CheckTools(cfg)...)
	}

	tempDir := cfg.Paths.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	results = append(results, CheckDirectoryAccess("Library root", root))
	results = append(results, CheckDirectoryAccess("Temp directory", tempDir))
	results = append(results, CheckFreeSpace("Temp free space", tempDir))

	if cfg.Processing.Backup {
		results = append(results, CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir))
	}

	return results
}

// AllPassed reports whether every result succeeded.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
