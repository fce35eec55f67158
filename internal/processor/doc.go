// Package processor runs the per-archive pipeline: extract, classify and
// repair image names, convert eligible pages to JPEG XL, then repack the
// archive in place. Image-level failures are absorbed and reported;
// archive-level failures surface as a failed result without touching the
// original file.
package processor
