package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages archive processing state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at dbPath and verifies
// the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// IsProcessed reports whether path already carries a terminal record.
// Failed records count as processed unless reprocessFailed is set.
func (s *Store) IsProcessed(ctx context.Context, path string, reprocessFailed bool) (bool, error) {
	var status string
	row := s.db.QueryRowContext(ctx, `SELECT status FROM archives WHERE path = ?`, path)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query archive status: %w", err)
	}
	if Status(status) == StatusFailed && reprocessFailed {
		return false, nil
	}
	return true, nil
}

// MarkProcessed upserts a processed record with byte accounting. Repeated
// calls with the same path overwrite, never duplicate.
func (s *Store) MarkProcessed(ctx context.Context, path string, originalSize, finalSize int64, dominantType string) error {
	saved := originalSize - finalSize
	var percent float64
	if originalSize > 0 {
		percent = float64(saved) / float64(originalSize) * 100
	}
	return s.upsert(ctx, &Record{
		Path:         path,
		Status:       StatusProcessed,
		OriginalSize: originalSize,
		FinalSize:    finalSize,
		BytesSaved:   saved,
		PercentSaved: percent,
		DominantType: dominantType,
	})
}

// MarkFailed upserts a failed record with the reason string.
func (s *Store) MarkFailed(ctx context.Context, path, reason string) error {
	return s.upsert(ctx, &Record{
		Path:          path,
		Status:        StatusFailed,
		FailureReason: reason,
	})
}

// MarkSkippedNoImages records an archive that held nothing convertible.
func (s *Store) MarkSkippedNoImages(ctx context.Context, path, dominantType string) error {
	return s.upsert(ctx, &Record{
		Path:         path,
		Status:       StatusSkippedNoImages,
		DominantType: dominantType,
	})
}

// MarkDeleted records an archive removed by the delete-empty policy. The
// full original size counts as saved bytes.
func (s *Store) MarkDeleted(ctx context.Context, path string, originalSize int64) error {
	return s.upsert(ctx, &Record{
		Path:         path,
		Status:       StatusDeleted,
		OriginalSize: originalSize,
		BytesSaved:   originalSize,
		PercentSaved: 100,
	})
}

func (s *Store) upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if record.Path == "" {
		return errors.New("record path is empty")
	}
	if !record.Status.Valid() {
		return fmt.Errorf("unknown status %q", record.Status)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO archives (
            path, status, original_size, final_size, bytes_saved,
            percent_saved, dominant_type, failure_reason, last_processed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            status = excluded.status,
            original_size = excluded.original_size,
            final_size = excluded.final_size,
            bytes_saved = excluded.bytes_saved,
            percent_saved = excluded.percent_saved,
            dominant_type = excluded.dominant_type,
            failure_reason = excluded.failure_reason,
            last_processed_at = excluded.last_processed_at`,
		record.Path,
		record.Status,
		record.OriginalSize,
		record.FinalSize,
		record.BytesSaved,
		record.PercentSaved,
		nullableString(record.DominantType),
		nullableString(record.FailureReason),
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert archive %q: %w", record.Path, err)
	}
	return nil
}

// Get fetches the record for path, or nil when none exists.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM archives WHERE path = ?`, path)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return record, nil
}

// Records returns all archive records ordered by path.
func (s *Store) Records(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM archives ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Remove deletes the record for path.
func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("delete archive record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordRun inserts one invocation's aggregate row.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		return errors.New("run id is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, started_at, finished_at, archives_seen, archives_processed,
            archives_failed, archives_skipped, bytes_saved
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.ArchivesSeen,
		run.ArchivesProcessed,
		run.ArchivesFailed,
		run.ArchivesSkipped,
		run.BytesSaved,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const recordColumns = "path, status, original_size, final_size, bytes_saved, percent_saved, dominant_type, failure_reason, last_processed_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		path         string
		statusStr    string
		originalSize int64
		finalSize    int64
		bytesSaved   int64
		percentSaved float64
		dominantType sql.NullString
		reason       sql.NullString
		processedRaw sql.NullString
	)

	if err := scanner.Scan(
		&path,
		&statusStr,
		&originalSize,
		&finalSize,
		&bytesSaved,
		&percentSaved,
		&dominantType,
		&reason,
		&processedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		Path:          path,
		Status:        Status(statusStr),
		OriginalSize:  originalSize,
		FinalSize:     finalSize,
		BytesSaved:    bytesSaved,
		PercentSaved:  percentSaved,
		DominantType:  dominantType.String,
		FailureReason: reason.String,
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			record.LastProcessedAt = processed
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
