// Package cbz reads and writes comic book archives, which are plain zip
// files by convention. Extraction guards against hostile entry names and
// repacking goes through a temp file so the original archive is replaced
// atomically or not at all.
package cbz

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cbzxl/internal/fileutil"
)

// Extension is the canonical comic archive suffix.
const Extension = ".cbz"

// storedExts are entry types that are already compressed and gain nothing
// from deflate; storing them keeps repacking fast.
var storedExts = map[string]bool{
	".jxl":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// Extract unpacks archivePath into destDir and returns the number of files
// written. Entry names are sanitized: anything resolving outside destDir is
// rejected rather than silently skipped.
func Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	extracted := 0
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}
		target, err := sanitizeEntryPath(destDir, entry.Name)
		if err != nil {
			return extracted, err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, fmt.Errorf("create directory %s: %w", entry.Name, err)
			}
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			return extracted, fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		extracted++
	}
	return extracted, nil
}

// Create packs the contents of srcDir into a new zip archive at
// archivePath. Entry names are srcDir-relative with forward slashes and
// written in sorted order so repeated packs of the same tree are
// byte-for-byte comparable.
func Create(ctx context.Context, srcDir, archivePath string) error {
	paths, err := collectFiles(srcDir)
	if err != nil {
		return err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	writer := zip.NewWriter(out)

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			writer.Close()
			out.Close()
			os.Remove(archivePath)
			return err
		}
		if err := addEntry(writer, srcDir, rel); err != nil {
			writer.Close()
			out.Close()
			os.Remove(archivePath)
			return fmt.Errorf("pack %s: %w", rel, err)
		}
	}

	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(archivePath)
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(archivePath)
		return err
	}
	return nil
}

// Replace packs srcDir and swaps the result over archivePath. The new
// archive is staged in tempDir first; archivePath keeps its old contents
// if anything fails before the final rename.
func Replace(ctx context.Context, srcDir, archivePath, tempDir string) error {
	staging, err := os.CreateTemp(tempDir, filepath.Base(archivePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	stagingPath := staging.Name()
	staging.Close()

	if err := Create(ctx, srcDir, stagingPath); err != nil {
		os.Remove(stagingPath)
		return err
	}
	if err := fileutil.ReplaceFile(stagingPath, archivePath); err != nil {
		os.Remove(stagingPath)
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func sanitizeEntryPath(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || cleaned == ".." {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return filepath.Join(destDir, cleaned), nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func collectFiles(srcDir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", srcDir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func addEntry(writer *zip.Writer, srcDir, rel string) error {
	in, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer in.Close()

	header := &zip.FileHeader{Name: rel, Method: zip.Deflate}
	if storedExts[strings.ToLower(filepath.Ext(rel))] {
		header.Method = zip.Store
	}
	out, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return err
}
