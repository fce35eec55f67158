package processor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"cbzxl/internal/classify"
)

// Flatten moves every file in nested directories up to the archive root.
// Pages are renamed sequentially in natural reading order ("page 2" sorts
// before "page 10"), so readers that ignore directory structure keep the
// page sequence. Returns the number of files moved; an archive that is
// already flat is left untouched.
func Flatten(dir string) (int, error) {
	var nested []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if !strings.Contains(rel, string(os.PathSeparator)) {
			return nil
		}
		nested = append(nested, rel)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(nested) == 0 {
		return 0, nil
	}

	collator := collate.New(language.Und, collate.Numeric)
	collator.SortStrings(nested)

	moved := 0
	seq := 0
	for _, rel := range nested {
		src := filepath.Join(dir, rel)
		var dst string
		if classify.LooksLikeImage(rel) {
			seq++
			dst = sequentialName(dir, seq, filepath.Ext(rel))
		} else {
			dst = collisionFreeName(dir, filepath.Base(rel))
		}
		if err := os.Rename(src, dst); err != nil {
			return moved, fmt.Errorf("flatten %s: %w", rel, err)
		}
		moved++
	}

	if err := removeEmptyDirs(dir); err != nil {
		return moved, err
	}
	return moved, nil
}

// sequentialName yields dir/0001.ext style names, skipping over any name
// already taken by a root-level file.
func sequentialName(dir string, seq int, ext string) string {
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%04d%s", seq, strings.ToLower(ext)))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		seq++
	}
}

// collisionFreeName keeps the original base name unless a root-level file
// already holds it, in which case a numeric suffix is inserted before the
// extension.
func collisionFreeName(dir, base string) string {
	candidate := filepath.Join(dir, base)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func removeEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Deepest first so parents empty out as children go.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(dirs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
