// Package runner drives a full conversion run: discover archives under the
// library root, filter out already-processed ones through the ledger, push
// the rest through the processor one at a time, and record the outcome of
// each. A file lock keeps concurrent runs from fighting over the same
// library.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cbzxl/internal/cbz"
	"cbzxl/internal/config"
	"cbzxl/internal/ledger"
	"cbzxl/internal/logging"
	"cbzxl/internal/output"
	"cbzxl/internal/processor"
)

// ErrAlreadyRunning signals that another instance holds the run lock.
var ErrAlreadyRunning = errors.New("another cbzxl instance is already running")

// Options carries the per-run flags on top of the loaded configuration.
type Options struct {
	// Root is the directory scanned for archives.
	Root string
	// Recheck reprocesses archives regardless of their ledger state.
	Recheck bool
	// ReprocessFailed retries archives whose last run failed.
	ReprocessFailed bool
	// SuppressSkipped silences the per-archive "already processed" notices.
	SuppressSkipped bool
	// DryRun disables all mutation, including ledger writes.
	DryRun bool
	// Quiet disables the progress bar.
	Quiet bool
}

// Summary is the aggregate outcome of one run.
type Summary struct {
	RunID      string
	Stats      processor.RunStats
	AlreadyOK  int64
	GCRemoved  int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Runner owns one library's conversion loop.
type Runner struct {
	cfg    *config.Config
	store  *ledger.Store
	proc   *processor.Processor
	logger *slog.Logger
	lock   *flock.Flock
}

// New constructs a Runner with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, proc *processor.Processor, logger *slog.Logger) (*Runner, error) {
	if cfg == nil || store == nil || proc == nil {
		return nil, errors.New("runner requires config, store, and processor")
	}
	return &Runner{
		cfg:    cfg,
		store:  store,
		proc:   proc,
		logger: logging.NewComponentLogger(logger, "runner"),
		lock:   flock.New(cfg.LockPath()),
	}, nil
}

// Run executes one full pass over the library. Archive failures are
// recorded and counted, never fatal; the error return covers run-level
// problems such as a held lock, an unreadable root, or cancellation.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	ok, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	defer func() {
		_ = r.lock.Unlock()
	}()

	summary := &Summary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}

	archives, err := discoverArchives(opts.Root)
	if err != nil {
		return nil, err
	}
	r.logger.Info("run started",
		logging.String("run_id", summary.RunID),
		logging.String("root", opts.Root),
		logging.Int("archives", len(archives)))

	bar := output.NewProgress(len(archives), "converting", output.ProgressWithQuiet(opts.Quiet))
	defer bar.Finish()

	sinceGC := 0
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		bar.Describe(filepath.Base(archive))

		relPath, err := ledger.NormalizePath(opts.Root, archive)
		if err != nil {
			return summary, err
		}

		if !opts.Recheck {
			done, err := r.store.IsProcessed(ctx, relPath, opts.ReprocessFailed)
			if err != nil {
				return summary, fmt.Errorf("check ledger for %s: %w", relPath, err)
			}
			if done {
				summary.AlreadyOK++
				if !opts.SuppressSkipped {
					r.logger.Info("already processed", logging.String(logging.FieldArchive, relPath))
				}
				bar.Increment()
				continue
			}
		}

		result, err := r.proc.Process(ctx, archive)
		if err != nil {
			return summary, err
		}
		summary.Stats.Add(result)

		if !opts.DryRun {
			if err := r.record(ctx, relPath, result); err != nil {
				return summary, err
			}
		}
		bar.Increment()

		sinceGC++
		if interval := r.cfg.Processing.GCInterval; interval > 0 && sinceGC >= interval && !opts.DryRun {
			sinceGC = 0
			removed, err := r.store.GarbageCollect(ctx, opts.Root)
			if err != nil {
				r.logger.Warn("ledger garbage collection failed", logging.Error(err))
			} else {
				summary.GCRemoved += removed
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if !opts.DryRun {
		if err := r.store.RecordRun(ctx, &ledger.Run{
			ID:                summary.RunID,
			StartedAt:         summary.StartedAt,
			FinishedAt:        summary.FinishedAt,
			ArchivesSeen:      summary.Stats.Seen,
			ArchivesProcessed: summary.Stats.Processed,
			ArchivesFailed:    summary.Stats.Failed,
			ArchivesSkipped:   summary.Stats.Skipped + summary.AlreadyOK,
			BytesSaved:        summary.Stats.BytesSaved,
		}); err != nil {
			r.logger.Warn("record run history", logging.Error(err))
		}
	}

	r.logger.Info("run finished",
		logging.String("run_id", summary.RunID),
		logging.Int64("processed", summary.Stats.Processed),
		logging.Int64("failed", summary.Stats.Failed),
		logging.Int64("skipped", summary.Stats.Skipped+summary.AlreadyOK),
		logging.Int64("saved", summary.Stats.BytesSaved),
		logging.Duration("elapsed", summary.Duration()))
	return summary, nil
}

// record writes the archive's terminal state into the ledger.
func (r *Runner) record(ctx context.Context, relPath string, result processor.Result) error {
	switch result.Disposition {
	case processor.DispositionProcessed:
		return r.store.MarkProcessed(ctx, relPath, result.OriginalSize, result.FinalSize, result.DominantType)
	case processor.DispositionFailed:
		return r.store.MarkFailed(ctx, relPath, result.Reason)
	case processor.DispositionSkipped:
		return r.store.MarkSkippedNoImages(ctx, relPath, result.DominantType)
	case processor.DispositionDeleted:
		return r.store.MarkDeleted(ctx, relPath, result.OriginalSize)
	default:
		return fmt.Errorf("unknown disposition %q for %s", result.Disposition, relPath)
	}
}

// discoverArchives walks root and returns every comic archive beneath it,
// sorted for a stable processing order.
func discoverArchives(root string) ([]string, error) {
	var archives []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), cbz.Extension) {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(archives)
	return archives, nil
}
