package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the JPEG XL encoder executable.
const DefaultBinary = "cjxl"

// OutputExt is the extension conversions produce.
const OutputExt = ".jxl"

// Options controls a single conversion attempt.
type Options struct {
	// Binary is the encoder executable; empty means DefaultBinary.
	Binary string
	// Effort is the cjxl effort level (1-10).
	Effort int
	// Distance is the lossy quality distance; zero encodes lossless.
	Distance float64
	// Magick is the ImageMagick executable used to repair color profiles
	// before encoding. Empty skips the repair pass.
	Magick string
	// Timeout bounds the encoder subprocess. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Outcome is the result of one conversion attempt.
type Outcome struct {
	Source       string
	Output       string
	Success      bool
	OriginalSize int64
	FinalSize    int64
	// Detail carries the encoder's diagnostic output on failure.
	Detail string
}

// Saved returns the byte reduction of a successful conversion.
func (o Outcome) Saved() int64 {
	if !o.Success {
		return 0
	}
	return o.OriginalSize - o.FinalSize
}

// Convert runs the encoder against sourcePath, producing a sibling .jxl
// file. Failure is reported through the Outcome, never as an error: a
// conversion failure is image-local and must not abort the archive.
func Convert(ctx context.Context, opts Options, sourcePath string) Outcome {
	outcome := Outcome{
		Source: sourcePath,
		Output: strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + OutputExt,
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		outcome.Detail = fmt.Sprintf("stat source: %v", err)
		return outcome
	}
	outcome.OriginalSize = info.Size()

	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	preprocess(runCtx, opts.Magick, sourcePath)

	args := []string{
		"--effort=" + strconv.Itoa(opts.Effort),
		"-d", strconv.FormatFloat(opts.Distance, 'f', -1, 64),
		sourcePath,
		outcome.Output,
	}
	cmd := exec.CommandContext(runCtx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		removePartial(outcome.Output)
		outcome.Detail = diagnostic(runCtx, err, output)
		return outcome
	}

	outInfo, err := os.Stat(outcome.Output)
	if err != nil || outInfo.Size() == 0 {
		// Exit zero but no usable output still counts as failure.
		removePartial(outcome.Output)
		outcome.Detail = "encoder produced no usable output"
		return outcome
	}

	if err := os.Remove(sourcePath); err != nil {
		// Keep the converted file but report the failure; leaving both
		// would double the page in the repacked archive.
		removePartial(outcome.Output)
		outcome.Detail = fmt.Sprintf("remove converted source: %v", err)
		return outcome
	}

	outcome.Success = true
	outcome.FinalSize = outInfo.Size()
	return outcome
}

func diagnostic(ctx context.Context, err error, output []byte) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "conversion timed out"
	}
	detail := strings.TrimSpace(string(output))
	if detail == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, detail)
}

// removePartial deletes a failed conversion's output artifact so a truncated
// .jxl never survives a failure path.
func removePartial(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}
