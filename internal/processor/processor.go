package processor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cbzxl/internal/cbz"
	"cbzxl/internal/classify"
	"cbzxl/internal/encoder"
	"cbzxl/internal/fileutil"
	"cbzxl/internal/logging"
)

// Options configures a Processor. Zero values fall back to safe defaults
// where one exists; Threads and the encoder options normally come straight
// from config.
type Options struct {
	// TempDir hosts per-archive extraction directories. Empty means the
	// system temp directory.
	TempDir string
	// Encoder is the base conversion configuration; distance is filled in
	// per image from Distance.
	Encoder encoder.Options
	// Distance decides lossless versus lossy per image.
	Distance encoder.DistancePolicy
	// Threads bounds concurrent conversions within one archive.
	Threads int
	// Flatten moves nested pages to the archive root with sequential names.
	Flatten bool
	// Convert enables the encoding stage; disabled leaves a rename-only run.
	Convert bool
	// Backup copies the archive aside before it is replaced.
	Backup    bool
	BackupDir string
	// DeleteEmpty removes archives that contain no images at all.
	DeleteEmpty bool
	// DryRun reports what would happen without modifying the archive.
	DryRun bool
}

// Disposition is the terminal state of one archive.
type Disposition string

const (
	DispositionProcessed Disposition = "processed"
	DispositionFailed    Disposition = "failed"
	DispositionSkipped   Disposition = "skipped_no_images"
	DispositionDeleted   Disposition = "deleted"
)

// Result summarizes one archive's trip through the pipeline.
type Result struct {
	Archive      string
	Disposition  Disposition
	OriginalSize int64
	FinalSize    int64
	// Reason carries detail for failed archives.
	Reason string
	// DominantType is the most common detected image type in the archive.
	DominantType    string
	ImagesTotal     int
	ImagesRenamed   int
	ImagesConverted int
	ImagesFailed    int
	// Repacked reports whether the archive on disk was rewritten.
	Repacked bool
	DryRun   bool
}

// BytesSaved returns the archive's byte reduction; zero when nothing shrank.
func (r Result) BytesSaved() int64 {
	if r.Disposition == DispositionDeleted {
		return r.OriginalSize
	}
	saved := r.OriginalSize - r.FinalSize
	if saved < 0 {
		return 0
	}
	return saved
}

// Processor drives the archive pipeline.
type Processor struct {
	opts   Options
	logger *slog.Logger
}

// New builds a Processor. A nil logger disables logging.
func New(opts Options, logger *slog.Logger) *Processor {
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	return &Processor{opts: opts, logger: logging.NewComponentLogger(logger, "processor")}
}

// Process runs the full pipeline for one archive. Image-level failures are
// folded into the Result; the error return is reserved for context
// cancellation and programming errors — anything archive-local comes back
// as a failed Result instead.
func (p *Processor) Process(ctx context.Context, archivePath string) (Result, error) {
	result := Result{Archive: archivePath, DryRun: p.opts.DryRun}
	log := p.logger.With(logging.String(logging.FieldArchive, filepath.Base(archivePath)))

	info, err := os.Stat(archivePath)
	if err != nil {
		return p.failed(result, fmt.Sprintf("stat archive: %v", err)), nil
	}
	result.OriginalSize = info.Size()
	result.FinalSize = info.Size()

	workDir, err := os.MkdirTemp(p.opts.TempDir, "cbzxl-*")
	if err != nil {
		return p.failed(result, fmt.Sprintf("create work directory: %v", err)), nil
	}
	defer os.RemoveAll(workDir)

	extracted, err := cbz.Extract(ctx, archivePath, workDir)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return p.failed(result, fmt.Sprintf("extract: %v", err)), nil
	}
	log.Debug("archive extracted", logging.Int("files", extracted))

	removeStaleConversionOutputs(workDir, log)

	images, err := p.normalize(workDir, &result, log)
	if err != nil {
		return p.failed(result, fmt.Sprintf("classify: %v", err)), nil
	}
	result.ImagesTotal = len(images)
	result.DominantType = dominantType(images)

	if len(images) == 0 {
		return p.disposeImageless(ctx, archivePath, result, log)
	}

	// Conversions run even on a dry run: they only touch the extracted
	// copy, which is discarded, and real outcomes let the dry run report
	// the savings a live run would achieve.
	converted := 0
	var convertedSaved int64
	if p.opts.Convert {
		outcomes := p.convertAll(ctx, images)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for _, outcome := range outcomes {
			if outcome.Success {
				converted++
				convertedSaved += outcome.Saved()
				log.Debug("image converted",
					logging.String(logging.FieldImage, filepath.Base(outcome.Output)),
					logging.Int64("saved", outcome.Saved()))
				continue
			}
			result.ImagesFailed++
			log.Warn("image conversion failed",
				logging.String(logging.FieldImage, filepath.Base(outcome.Source)),
				logging.String("detail", outcome.Detail))
		}
		result.ImagesConverted = converted
	}

	flattened := 0
	if p.opts.Flatten {
		flattened, err = Flatten(workDir)
		if err != nil {
			return p.failed(result, fmt.Sprintf("flatten: %v", err)), nil
		}
	}

	if p.opts.DryRun {
		// The archive stays untouched; report the byte reduction the
		// conversions achieved in the working copy as an estimate.
		result.FinalSize = max(result.OriginalSize-convertedSaved, 0)
		result.Disposition = DispositionProcessed
		log.Info("dry run",
			logging.Int("images", len(images)),
			logging.Int("converted", converted),
			logging.Int("renamed", result.ImagesRenamed),
			logging.Int64("estimated_saved", result.BytesSaved()))
		return result, nil
	}

	// Nothing changed on disk: skip the repack and leave the archive as is.
	if converted == 0 && result.ImagesRenamed == 0 && flattened == 0 {
		result.Disposition = DispositionProcessed
		return result, nil
	}

	if p.opts.Backup {
		if err := p.backup(archivePath); err != nil {
			return p.failed(result, fmt.Sprintf("backup: %v", err)), nil
		}
	}

	if err := cbz.Replace(ctx, workDir, archivePath, p.opts.TempDir); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return p.failed(result, fmt.Sprintf("repack: %v", err)), nil
	}
	result.Repacked = true

	if info, err := os.Stat(archivePath); err == nil {
		result.FinalSize = info.Size()
	}

	result.Disposition = DispositionProcessed
	log.Info("archive processed",
		logging.Int("converted", result.ImagesConverted),
		logging.Int("failed", result.ImagesFailed),
		logging.Int64("saved", result.BytesSaved()))
	return result, nil
}

// normalize classifies every image-looking file under workDir, repairing
// misnamed extensions as it goes, and returns the classified set. Renames
// happen before eligibility is decided, so a GIF hiding behind a .jpg name
// ends up correctly excluded.
func (p *Processor) normalize(workDir string, result *Result, log *slog.Logger) ([]classify.Result, error) {
	var images []classify.Result
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !classify.LooksLikeImage(path) {
			return nil
		}
		classified, err := classify.File(path)
		if err != nil {
			return err
		}
		if classified.Renamed {
			result.ImagesRenamed++
			log.Debug("extension corrected",
				logging.String(logging.FieldImage, filepath.Base(classified.Path)),
				logging.String("type", classified.MIME))
		}
		if classified.MIME != classify.MIMEUnknown {
			images = append(images, classified)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// disposeImageless handles archives that contain no images: delete when the
// policy allows it, otherwise record them as skipped so later runs do not
// reopen them.
func (p *Processor) disposeImageless(ctx context.Context, archivePath string, result Result, log *slog.Logger) (Result, error) {
	if p.opts.DeleteEmpty {
		if !p.opts.DryRun {
			if err := os.Remove(archivePath); err != nil {
				return p.failed(result, fmt.Sprintf("delete imageless archive: %v", err)), nil
			}
		}
		result.Disposition = DispositionDeleted
		result.FinalSize = 0
		log.Info("imageless archive deleted", logging.Bool("dry_run", p.opts.DryRun))
		return result, nil
	}
	result.Disposition = DispositionSkipped
	log.Info("no images found, skipping")
	return result, nil
}

func (p *Processor) backup(archivePath string) error {
	if err := os.MkdirAll(p.opts.BackupDir, 0o755); err != nil {
		return err
	}
	return fileutil.CopyFileVerified(archivePath, filepath.Join(p.opts.BackupDir, filepath.Base(archivePath)))
}

func (p *Processor) failed(result Result, reason string) Result {
	result.Disposition = DispositionFailed
	result.Reason = reason
	p.logger.Error("archive failed",
		logging.String(logging.FieldArchive, filepath.Base(result.Archive)),
		logging.String("reason", reason))
	return result
}

// removeStaleConversionOutputs clears artifacts left inside an archive by
// an interrupted earlier run: legacy .converted marker files, and partial
// encoder output. A stale .jxl is only removed when its source image still
// sits next to it; a lone .jxl is a finished page.
func removeStaleConversionOutputs(workDir string, log *slog.Logger) {
	_ = filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ".converted" {
			_ = os.Remove(path)
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != encoder.OutputExt {
			return nil
		}
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		for _, ext := range []string{".jpg", ".jpeg", ".png"} {
			if _, statErr := os.Stat(stem + ext); statErr == nil {
				if removeErr := os.Remove(path); removeErr == nil {
					log.Debug("removed stale conversion output",
						logging.String(logging.FieldImage, filepath.Base(path)))
				}
				return nil
			}
		}
		return nil
	})
}

// dominantType returns the most common detected type among the archive's
// images, as a short label like "jpeg" or "png".
func dominantType(images []classify.Result) string {
	if len(images) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, img := range images {
		counts[img.MIME]++
	}
	best, bestCount := "", 0
	for mime, count := range counts {
		if count > bestCount || (count == bestCount && mime < best) {
			best, bestCount = mime, count
		}
	}
	return strings.TrimPrefix(best, "image/")
}
