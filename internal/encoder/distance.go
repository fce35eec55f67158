package encoder

// DefaultLossyDistance is the distance applied when the smart policy forces
// lossy encoding without an explicit distance configured.
const DefaultLossyDistance = 1.0

// Thresholds above which the smart policy considers an image oversized.
const (
	SmartSizeThreshold  = 10_000_000
	SmartPixelThreshold = 5_000_000
)

// DistancePolicy decides the encoding distance for one image.
type DistancePolicy struct {
	// Distance is the globally configured lossy distance; zero means lossless.
	Distance float64
	// Smart gates lossy encoding on image size: only oversized images get a
	// lossy distance, everything else stays lossless.
	Smart          bool
	SizeThreshold  int64
	PixelThreshold int
}

// For returns the distance to encode an image of the given byte size and
// pixel count with. pixels may be zero when the header could not be decoded;
// only the byte-size gate applies then.
func (p DistancePolicy) For(size int64, pixels int) float64 {
	if !p.Smart {
		return p.Distance
	}

	sizeThreshold := p.SizeThreshold
	if sizeThreshold <= 0 {
		sizeThreshold = SmartSizeThreshold
	}
	pixelThreshold := p.PixelThreshold
	if pixelThreshold <= 0 {
		pixelThreshold = SmartPixelThreshold
	}

	if size <= sizeThreshold && (pixels == 0 || pixels <= pixelThreshold) {
		return 0
	}
	if p.Distance > 0 {
		return p.Distance
	}
	return DefaultLossyDistance
}
