package ledger

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizePath converts an archive path into the stable relative form used
// as the ledger primary key: relative to root, slash-separated, cleaned.
// The same archive is only recognized across runs while it stays at the same
// relative location; a moved or renamed file is a new entity.
func NormalizePath(root, path string) (string, error) {
	rel := path
	if root != "" {
		var err error
		rel, err = filepath.Rel(root, path)
		if err != nil {
			return "", fmt.Errorf("relativize %q against %q: %w", path, root, err)
		}
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return "", fmt.Errorf("archive path %q resolves to the root itself", path)
	}
	if strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("archive path %q escapes root %q", path, root)
	}
	return rel, nil
}
