package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM archives GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Totals aggregates byte accounting across all records.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT COUNT(1),
               COALESCE(SUM(original_size), 0),
               COALESCE(SUM(final_size), 0),
               COALESCE(SUM(bytes_saved), 0)
        FROM archives`)
	var totals Totals
	if err := row.Scan(&totals.Archives, &totals.OriginalSize, &totals.FinalSize, &totals.BytesSaved); err != nil {
		return Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return totals, nil
}

// GarbageCollect prunes records that no longer describe the filesystem under
// root and returns the number of records removed. A record is stale when its
// archive is gone, unless the delete-empty policy removed it on purpose; a
// deleted record turns stale the other way round, once a new file appears at
// its path, so the recreated archive gets processed again.
func (s *Store) GarbageCollect(ctx context.Context, root string) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, status FROM archives`)
	if err != nil {
		return 0, fmt.Errorf("list archive paths: %w", err)
	}

	var stale []string
	for rows.Next() {
		var path, status string
		if err := rows.Scan(&path, &status); err != nil {
			rows.Close()
			return 0, err
		}
		_, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(path)))
		if Status(status) == StatusDeleted {
			if statErr == nil {
				stale = append(stale, path)
			}
			continue
		}
		if errors.Is(statErr, fs.ErrNotExist) {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var removed int64
	for _, path := range stale {
		ok, err := s.Remove(ctx, path)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Reset drops all archive records and run history for full reprocessing.
func (s *Store) Reset(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives`)
	if err != nil {
		return 0, fmt.Errorf("reset archives: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return 0, fmt.Errorf("reset runs: %w", err)
	}
	return res.RowsAffected()
}
