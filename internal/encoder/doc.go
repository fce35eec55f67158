// Package encoder wraps single cjxl conversion attempts.
//
// Each call runs the external encoder under a timeout and classifies the
// result into an Outcome: on success the source file is deleted and both
// byte sizes recorded; on any failure the source is left untouched and a
// partial output artifact is removed before returning. The distance policy
// (lossless, fixed lossy, or size-gated "smart" lossy) lives here too so the
// processor only hands over per-image facts.
package encoder
