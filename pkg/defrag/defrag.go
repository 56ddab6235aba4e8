// Package defrag is the public entry point to the defragmentation engine:
// a thin wrapper that wires the host boundary primitives of
// internal/hostio and a configuration vector into an internal/job.Job and
// re-exports its operations, following the teacher's pkg/services
// pattern of a public package built as a thin factory over an internal
// implementation (pkg/services/service_factory.go), generalized from a
// multi-service factory to a single-job constructor.
package defrag

import (
	"context"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/job"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/planner"
)

// Re-exported so callers outside this module never need to import
// internal/planner or internal/hostio directly (SPEC_FULL.md §4.6).
type (
	Config       = planner.Config
	SortKey      = planner.SortKey
	SortOrder    = planner.SortOrder
	BlockDevice  = hostio.BlockDevice
	MoveExtent   = hostio.MoveExtentPrimitive
	Clock        = hostio.Clock
	ProgressSink = hostio.ProgressSink
	Progress     = ntfstypes.ProgressRecord
)

const (
	SortPath             = planner.SortPath
	SortSize             = planner.SortSize
	SortCreationTime     = planner.SortCreationTime
	SortModificationTime = planner.SortModificationTime
	SortAccessTime       = planner.SortAccessTime

	SortAscending  = planner.SortAscending
	SortDescending = planner.SortDescending
)

// DefaultConfig returns the documented default configuration vector
// (spec.md §6).
func DefaultConfig() Config {
	return planner.DefaultConfig()
}

// LoadConfig resolves the configuration vector from a viper-backed config
// file and environment (SPEC_FULL.md §3a).
func LoadConfig() (Config, error) {
	return job.LoadConfig()
}

// Job is the public handle on one analyze/defragment/optimize run.
type Job struct {
	inner *job.Job
}

// NewJob wires a block device, move-extent primitive, clock, and progress
// sink into a new Job (SPEC_FULL.md §4.6). sink may be nil when the caller
// does not want progress snapshots.
func NewJob(device BlockDevice, moveExtent MoveExtent, clock Clock, sink ProgressSink, cfg Config) *Job {
	return &Job{inner: job.New(device, moveExtent, clock, sink, cfg)}
}

// ID is this job's unique identifier.
func (j *Job) ID() uuid.UUID {
	return j.inner.ID
}

// Progress returns a snapshot of the job's current progress.
func (j *Job) Progress() Progress {
	return j.inner.Progress()
}

// Analyze runs an ANALYZE job: scan the volume and populate statistics
// only, issuing no moves (spec.md §4.3).
func (j *Job) Analyze(ctx context.Context) (Progress, error) {
	return j.inner.Analyze(ctx)
}

// Defragment runs a DEFRAGMENT job (spec.md §4.3).
func (j *Job) Defragment(ctx context.Context) (Progress, error) {
	return j.inner.Defragment(ctx)
}

// Optimize runs a full OPTIMIZE job (spec.md §4.3).
func (j *Job) Optimize(ctx context.Context) (Progress, error) {
	return j.inner.Optimize(ctx)
}

// QuickOptimize runs a QUICK_OPTIMIZE job (spec.md §4.3).
func (j *Job) QuickOptimize(ctx context.Context) (Progress, error) {
	return j.inner.QuickOptimize(ctx)
}

// MFTOptimize runs an MFT_OPTIMIZE job (spec.md §4.3).
func (j *Job) MFTOptimize(ctx context.Context) (Progress, error) {
	return j.inner.MFTOptimize(ctx)
}
