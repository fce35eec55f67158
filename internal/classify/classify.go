package classify

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// Result describes one classified file.
type Result struct {
	// Path is the file's current location, after any corrective rename.
	Path string
	// MIME is the detected content type.
	MIME string
	// Renamed reports whether the extension had to be corrected.
	Renamed bool
	// Eligible reports whether the file should be submitted for conversion.
	Eligible bool
	// Size is the file's byte size.
	Size int64
}

// canonicalExt maps detected types to the extension they should carry.
var canonicalExt = map[string]string{
	MIMEJPEG: ".jpg",
	MIMEPNG:  ".png",
	MIMEAPNG: ".png",
	MIMEGIF:  ".gif",
	MIMEWebP: ".webp",
	MIMEAVIF: ".avif",
	MIMEJXL:  ".jxl",
}

// excludedExts never go to the encoder: animated or already-next-gen formats,
// including the target codec itself.
var excludedExts = map[string]struct{}{
	".gif":  {},
	".apng": {},
	".avif": {},
	".jxl":  {},
}

// imageExts is the set of extensions worth classifying at all.
var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".avif": {},
	".jxl":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// LooksLikeImage reports whether the file name suggests image content and
// the file deserves a classification pass.
func LooksLikeImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// File classifies one file: detects its true content type, corrects a
// mismatched extension by renaming, and decides conversion eligibility.
// Classifying an already-correctly-named file performs no rename, so the
// operation is idempotent.
func File(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %q: %w", path, err)
	}

	mime, err := DetectMIME(path)
	if err != nil {
		return Result{}, err
	}

	result := Result{Path: path, MIME: mime, Size: info.Size()}

	correct, known := canonicalExt[mime]
	if !known {
		// Unrecognized content is reported but never renamed or converted.
		return result, nil
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != correct {
		corrected := renameTarget(path, correct)
		if err := os.Rename(path, corrected); err != nil {
			return Result{}, fmt.Errorf("correct extension %q: %w", path, err)
		}
		result.Path = corrected
		result.Renamed = true
	}

	if mime == MIMEJPEG || mime == MIMEPNG {
		ext := strings.ToLower(filepath.Ext(result.Path))
		if _, excluded := excludedExts[ext]; !excluded {
			result.Eligible = true
		}
	}

	return result, nil
}

// renameTarget picks the corrected name for path. When a sibling already
// holds that name, a numeric suffix keeps the rename from overwriting it.
func renameTarget(path, correct string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	corrected := stem + correct
	for i := 1; ; i++ {
		if _, err := os.Lstat(corrected); err != nil {
			return corrected
		}
		corrected = fmt.Sprintf("%s_%d%s", stem, i, correct)
	}
}

// PixelCount decodes just the image header and returns width times height.
// Registered decoders cover JPEG, PNG, GIF, and WebP.
func PixelCount(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open for pixel count: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg.Width * cfg.Height, nil
}
