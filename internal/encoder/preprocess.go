package encoder

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// preprocess repairs inputs cjxl is known to mishandle before the encoder
// sees them: PNGs can carry broken grayscale ICC profiles that stripping
// metadata fixes, and CMYK JPEGs have to be converted to sRGB first. Both
// repairs rewrite the source in place via ImageMagick. The pass is best
// effort: when magick is not configured or a repair fails, the image goes
// to the encoder as is and any real problem surfaces there.
func preprocess(ctx context.Context, magick, sourcePath string) {
	if magick == "" {
		return
	}
	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".png":
		_ = exec.CommandContext(ctx, magick, "mogrify", "-strip", sourcePath).Run() //nolint:gosec
	case ".jpg", ".jpeg":
		out, err := exec.CommandContext(ctx, magick, "identify", "-format", "%[colorspace]", sourcePath).Output() //nolint:gosec
		if err != nil {
			return
		}
		if strings.TrimSpace(string(out)) == "CMYK" {
			_ = exec.CommandContext(ctx, magick, sourcePath, "-colorspace", "sRGB", sourcePath).Run() //nolint:gosec
		}
	}
}
