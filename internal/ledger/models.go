package ledger

import "time"

// Status represents the recorded disposition of an archive.
type Status string

const (
	// StatusProcessed marks an archive that completed the pipeline, whether
	// or not any bytes were saved.
	StatusProcessed Status = "processed"
	// StatusFailed marks an archive-fatal error; the reason column carries detail.
	StatusFailed Status = "failed"
	// StatusSkippedNoImages marks an archive that held no convertible images.
	StatusSkippedNoImages Status = "skipped_no_images"
	// StatusDeleted marks an archive removed by the delete-empty policy.
	StatusDeleted Status = "deleted"
)

var allStatuses = []Status{
	StatusProcessed,
	StatusFailed,
	StatusSkippedNoImages,
	StatusDeleted,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Record is one archive's persisted processing state.
type Record struct {
	Path            string
	Status          Status
	OriginalSize    int64
	FinalSize       int64
	BytesSaved      int64
	PercentSaved    float64
	DominantType    string
	FailureReason   string
	LastProcessedAt time.Time
}

// Run is one invocation's aggregate row for the reporting companion.
type Run struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	ArchivesSeen      int64
	ArchivesProcessed int64
	ArchivesFailed    int64
	ArchivesSkipped   int64
	BytesSaved        int64
}

// Totals aggregates ledger-wide byte accounting for the stats command.
type Totals struct {
	Archives     int64
	OriginalSize int64
	FinalSize    int64
	BytesSaved   int64
}
