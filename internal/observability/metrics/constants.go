// Package metrics provides constants used across metric definitions.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Registration outcome label values.
const (
	OutcomeInserted       = "inserted"
	OutcomeSkipped        = "skipped"
	OutcomeDirectoryFixed = "directory_fixed"
	OutcomeDiscarded      = "discarded"
	OutcomeFailed         = "failed"
)

// Statistics outcome label values.
const (
	OutcomeMeasured = "measured"
	OutcomeFlagged  = "flagged"
)

// Histogram bucket configuration constants.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 grows faster for size histograms.
	BucketFactor4 = 4

	BucketCount11 = 11
	BucketCount12 = 12
)
