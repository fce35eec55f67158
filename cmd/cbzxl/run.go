package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cbzxl/internal/config"
	"cbzxl/internal/encoder"
	"cbzxl/internal/ledger"
	"cbzxl/internal/logging"
	"cbzxl/internal/preflight"
	"cbzxl/internal/processor"
	"cbzxl/internal/runner"
)

// runFlags holds the conversion flags layered over the config file. Only
// flags the user actually set override config values.
type runFlags struct {
	effort          int
	distance        float64
	smartDistance   bool
	sizeThreshold   int64
	pixelThreshold  int
	timeoutSeconds  int
	threads         int
	dryRun          bool
	backup          bool
	noFlatten       bool
	noConvert       bool
	deleteEmpty     bool
	recheck         bool
	reprocessFailed bool
	suppressSkipped bool
	verbose         bool
	quiet           bool
	logFormat       string
}

func newRunFlags() *runFlags {
	return &runFlags{}
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.effort, "effort", 0, "cjxl effort level (1-10)")
	flags.Float64VarP(&f.distance, "distance", "d", 0, "cjxl quality distance (0 = lossless)")
	flags.BoolVar(&f.smartDistance, "smart-distance", false, "Encode lossy only for oversized images")
	flags.Int64Var(&f.sizeThreshold, "size-threshold", 0, "Smart distance byte threshold")
	flags.IntVar(&f.pixelThreshold, "pixel-threshold", 0, "Smart distance pixel threshold")
	flags.IntVar(&f.timeoutSeconds, "timeout", 0, "Per-image conversion timeout in seconds")
	flags.IntVarP(&f.threads, "threads", "t", 0, "Concurrent conversions per archive")
	flags.BoolVarP(&f.dryRun, "dry-run", "n", false, "Report what would change without modifying anything")
	flags.BoolVarP(&f.backup, "backup", "b", false, "Copy each archive aside before repacking")
	flags.BoolVar(&f.noFlatten, "no-flatten", false, "Keep nested directory structure inside archives")
	flags.BoolVar(&f.noConvert, "no-convert", false, "Skip encoding; only repair names and flatten")
	flags.BoolVar(&f.deleteEmpty, "delete-empty", false, "Delete archives that contain no images")
	flags.BoolVar(&f.recheck, "recheck", false, "Reprocess archives regardless of ledger state")
	flags.BoolVar(&f.reprocessFailed, "reprocess-failed", false, "Retry archives whose last run failed")
	flags.BoolVar(&f.suppressSkipped, "suppress-skipped", false, "Silence already-processed notices")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "Log warnings and errors only, no progress bar")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format: console or json")
}

// apply folds explicitly-set flags into the loaded configuration.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("effort") {
		cfg.Encoder.Effort = f.effort
	}
	if flags.Changed("distance") {
		cfg.Encoder.Distance = f.distance
	}
	if flags.Changed("smart-distance") {
		cfg.Encoder.SmartDistance = f.smartDistance
	}
	if flags.Changed("size-threshold") {
		cfg.Encoder.SizeThreshold = f.sizeThreshold
	}
	if flags.Changed("pixel-threshold") {
		cfg.Encoder.PixelThreshold = f.pixelThreshold
	}
	if flags.Changed("timeout") {
		cfg.Encoder.TimeoutSeconds = f.timeoutSeconds
	}
	if flags.Changed("threads") {
		cfg.Processing.Threads = f.threads
	}
	if flags.Changed("backup") {
		cfg.Processing.Backup = f.backup
	}
	if flags.Changed("no-flatten") {
		cfg.Processing.Flatten = !f.noFlatten
	}
	if flags.Changed("no-convert") {
		cfg.Processing.Convert = !f.noConvert
	}
	if flags.Changed("delete-empty") {
		cfg.Processing.DeleteEmpty = f.deleteEmpty
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(f.logFormat))
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	if f.quiet {
		cfg.Logging.Level = "warn"
	}
}

func runConvert(cmd *cobra.Command, cmdCtx *commandContext, flags *runFlags, rootArg string) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	root := cfg.Paths.Root
	if rootArg != "" {
		if root, err = config.ExpandPath(rootArg); err != nil {
			return err
		}
	}

	logger, err := newRunLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := preflight.RunAll(ctx, cfg, root)
	if !preflight.AllPassed(checks) {
		fmt.Fprintln(cmd.ErrOrStderr(), renderPreflight(checks))
		return errors.New("preflight checks failed")
	}

	store, err := ledger.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	// ImageMagick is optional; the repair pass is skipped when it is absent.
	magick := ""
	if path, lookErr := exec.LookPath(cfg.MagickBinary()); lookErr == nil {
		magick = path
	}

	proc := processor.New(processor.Options{
		TempDir: cfg.Paths.TempDir,
		Encoder: encoder.Options{
			Binary:  cfg.EncoderBinary(),
			Effort:  cfg.Encoder.Effort,
			Magick:  magick,
			Timeout: time.Duration(cfg.Encoder.TimeoutSeconds) * time.Second,
		},
		Distance: encoder.DistancePolicy{
			Distance:       cfg.Encoder.Distance,
			Smart:          cfg.Encoder.SmartDistance,
			SizeThreshold:  cfg.Encoder.SizeThreshold,
			PixelThreshold: cfg.Encoder.PixelThreshold,
		},
		Threads:     cfg.Processing.Threads,
		Flatten:     cfg.Processing.Flatten,
		Convert:     cfg.Processing.Convert,
		Backup:      cfg.Processing.Backup,
		BackupDir:   cfg.Paths.BackupDir,
		DeleteEmpty: cfg.Processing.DeleteEmpty,
		DryRun:      flags.dryRun,
	}, logger)

	run, err := runner.New(cfg, store, proc, logger)
	if err != nil {
		return err
	}

	summary, err := run.Run(ctx, runner.Options{
		Root:            root,
		Recheck:         flags.recheck,
		ReprocessFailed: flags.reprocessFailed,
		SuppressSkipped: flags.suppressSkipped,
		DryRun:          flags.dryRun,
		Quiet:           flags.quiet,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, flags.dryRun))
	return nil
}

// newRunLogger writes structured logs to the log file and, in JSON mode,
// stdout as well. Console runs keep stdout for the progress bar and summary.
func newRunLogger(cfg *config.Config) (*slog.Logger, error) {
	paths := []string{cfg.LogFilePath()}
	if cfg.Logging.Format == "json" {
		paths = append(paths, "stdout")
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

func renderSummary(summary *runner.Summary, dryRun bool) string {
	stats := summary.Stats
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Archives seen", fmt.Sprintf("%d", stats.Seen+summary.AlreadyOK)},
		{"Already converted", fmt.Sprintf("%d", summary.AlreadyOK)},
		{"Processed", fmt.Sprintf("%d", stats.Processed)},
		{"Failed", fmt.Sprintf("%d", stats.Failed)},
		{"Skipped (no images)", fmt.Sprintf("%d", stats.Skipped)},
		{"Deleted (empty)", fmt.Sprintf("%d", stats.Deleted)},
		{"Images converted", fmt.Sprintf("%d", stats.ImagesConverted)},
		{"Images failed", fmt.Sprintf("%d", stats.ImagesFailed)},
		{"Names repaired", fmt.Sprintf("%d", stats.ImagesRenamed)},
		{"Space saved", humanize.IBytes(uint64(max(stats.BytesSaved, 0)))},
		{"Elapsed", summary.Duration().Round(time.Second).String()},
	}
	title := "Run summary"
	if dryRun {
		title = "Run summary (dry run, nothing modified)"
	}
	return title + "\n" + renderTable(headers, rows, []columnAlignment{alignLeft, alignRight})
}

func renderPreflight(checks []preflight.Result) string {
	headers := []string{"Check", "Status", "Detail"}
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		status := "FAIL"
		if check.Passed {
			status = "ok"
		}
		rows = append(rows, []string{check.Name, status, check.Detail})
	}
	return renderTable(headers, rows, nil)
}
