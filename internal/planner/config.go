// Package planner decides, for each job type, the sequence of move
// requests the mover should apply (spec.md §4.3). It classifies streams as
// fragmented/movable/excluded against a configuration vector, picks target
// free regions for defragment and optimize passes, and tracks pass/
// termination bookkeeping, grounded on the teacher's
// internal/managers/btrees/btree_analyzer.go "classify then act" shape,
// generalized from B-tree node classification to stream movability
// classification.
package planner

import (
	"time"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// SortKey is the SORTING configuration value (spec.md §6).
type SortKey int

const (
	SortPath SortKey = iota
	SortSize
	SortCreationTime
	SortModificationTime
	SortAccessTime
)

// SortOrder is the SORTING_ORDER configuration value (spec.md §6).
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Config is the configuration vector of spec.md §6, populated by
// internal/job's viper loader and consumed here for filtering,
// classification, and pass termination.
type Config struct {
	// IncludeFilters and ExcludeFilters are path patterns (wildcards ? *,
	// matched with path/filepath.Match semantics) from IN_FILTER/EX_FILTER.
	IncludeFilters []string
	ExcludeFilters []string

	// FragmentSizeThreshold excludes fragments at or above this byte size
	// from being counted toward a stream's movability (FRAGMENT_SIZE_THRESHOLD).
	FragmentSizeThreshold uint64

	// FileSizeThreshold excludes files larger than this size (FILE_SIZE_THRESHOLD).
	// Zero means unlimited.
	FileSizeThreshold uint64

	// OptimizerFileSizeThreshold is the QUICK_OPTIMIZE-specific ceiling
	// (OPTIMIZER_FILE_SIZE_THRESHOLD, default 20 MiB).
	OptimizerFileSizeThreshold uint64

	// FragmentsThreshold excludes streams with fewer fragments than this
	// (FRAGMENTS_THRESHOLD). Zero/one means "no extra filtering beyond the
	// fragmented-stream definition".
	FragmentsThreshold int

	Sorting      SortKey
	SortingOrder SortOrder

	// FragmentationThreshold cancels the job if overall fragmentation
	// percent is below this, except for MFT_OPTIMIZE (FRAGMENTATION_THRESHOLD).
	FragmentationThreshold float64

	// TimeLimit is the wall-clock budget (TIME_LIMIT). Zero means unset.
	TimeLimit time.Duration

	// RefreshInterval is the progress-sink period (REFRESH_INTERVAL).
	RefreshInterval time.Duration

	// DryRun, if true, skips the host move primitive (DRY_RUN).
	DryRun bool

	// RepeatThreshold is the minimum per-pass move count below which a
	// job's pass loop terminates (spec.md §4.3, default 1).
	RepeatThreshold int

	ClusterSize uint32
}

// DefaultConfig returns the configuration vector's documented defaults
// (spec.md §6).
func DefaultConfig() Config {
	return Config{
		OptimizerFileSizeThreshold: ntfstypes.DefaultOptimizerFileSizeThreshold,
		RepeatThreshold:            ntfstypes.DefaultRepeatThreshold,
		RefreshInterval:            ntfstypes.DefaultRefreshIntervalMillis * time.Millisecond,
		ClusterSize:                4096,
	}
}
