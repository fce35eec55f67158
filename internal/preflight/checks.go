package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"cbzxl/internal/config"
	"cbzxl/internal/deps"

	"github.com/dustin/go-humanize"
)

// minTempSpace is the smallest amount of free space the temp filesystem
// can have before extraction is likely to fail mid-archive.
const minTempSpace = 1 << 30 // 1 GiB

// CheckTools verifies that the external binaries the pipeline shells out to
// resolve on PATH. Missing optional tools pass with an advisory detail so
// the run proceeds without them.
func CheckTools(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Required(cfg.EncoderBinary(), cfg.MagickBinary()))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		switch {
		case status.Available:
			result.Detail = fmt.Sprintf("%s found", status.Command)
		case status.Optional:
			result.Passed = true
			result.Detail = fmt.Sprintf("%s (optional, feature disabled)", status.Detail)
		}
		results = append(results, result)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minTempSpace available.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minTempSpace {
		return Result{Name: name, Detail: fmt.Sprintf("%s free on %s, need at least %s", humanize.IBytes(free), path, humanize.IBytes(minTempSpace))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}
