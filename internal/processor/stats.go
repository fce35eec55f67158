package processor

// RunStats aggregates archive results across one run.
type RunStats struct {
	Seen      int64
	Processed int64
	Failed    int64
	Skipped   int64
	Deleted   int64
	// Repacked counts processed archives whose bytes actually changed.
	Repacked        int64
	ImagesConverted int64
	ImagesFailed    int64
	ImagesRenamed   int64
	OriginalBytes   int64
	FinalBytes      int64
	BytesSaved      int64
}

// Add folds one archive result into the totals.
func (s *RunStats) Add(result Result) {
	s.Seen++
	switch result.Disposition {
	case DispositionProcessed:
		s.Processed++
		if result.Repacked {
			s.Repacked++
		}
	case DispositionFailed:
		s.Failed++
	case DispositionSkipped:
		s.Skipped++
	case DispositionDeleted:
		s.Deleted++
	}
	s.ImagesConverted += int64(result.ImagesConverted)
	s.ImagesFailed += int64(result.ImagesFailed)
	s.ImagesRenamed += int64(result.ImagesRenamed)
	s.OriginalBytes += result.OriginalSize
	s.FinalBytes += result.FinalSize
	s.BytesSaved += result.BytesSaved()
}
