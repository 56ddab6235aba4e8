// Package hostio defines the boundary between the core defragmentation
// engine and its host environment: a block device handle, a move-extent
// primitive, a clock, and a cancellation/progress sink (spec.md §1, §6).
// Everything else — the CLI, the interactive shell, presentation, logging,
// environment reading, and Windows-service plumbing — lives outside this
// module, as spec.md §1 requires; these interfaces are the only outside
// calls the core makes, grounded on the teacher's
// BlockDeviceReader/BlockDeviceWriter split in internal/interfaces/block_device.go.
package hostio

import (
	"context"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// BlockDevice is the volume_open/volume_read/volume_bitmap/mft_record/
// volume_info primitive set of spec.md §6, bundled into one handle
// (extent_query is the separate ExtentQuery interface below).
type BlockDevice interface {
	// ReadBlock reads n bytes starting at byte offset off (volume_read).
	ReadBlock(off int64, n int) ([]byte, error)

	// ReadBitmapChunk returns a chunk of the volume's cluster bitmap
	// starting at startLCN, plus the LCN at which the next chunk begins,
	// or ok=false once the bitmap is exhausted (volume_bitmap).
	ReadBitmapChunk(startLCN uint64) (chunk []byte, nextLCN uint64, ok bool, err error)

	// ReadMFTRecord reads the fixed-size MFT record at the given index
	// (mft_record).
	ReadMFTRecord(idx uint64, recordSize uint32) ([]byte, error)

	// Info reports the geometry and identity of the volume (volume_info).
	Info() VolumeInfo

	// Close releases the handle (spec.md §5: "scoped acquisition with
	// guaranteed release").
	Close() error
}

// VolumeInfo is the output of the volume_info primitive.
type VolumeInfo struct {
	ClusterSize   uint32
	SectorSize    uint32
	TotalClusters uint64
	FreeClusters  uint64
	// MFTZoneLCN and MFTZoneLength describe the filesystem-reserved MFT
	// growth zone, when the filesystem reports one (spec.md §4.3, §9).
	// MFTZoneLength == 0 means no zone was reported.
	MFTZoneLCN    uint64
	MFTZoneLength uint64
}

// MoveExtentPrimitive is the move_extent host primitive: it either copies
// all count clusters and rewrites the stream's runlist, or reports failure
// having changed nothing (spec.md §4.4's required atomicity contract).
type MoveExtentPrimitive interface {
	MoveExtent(ctx context.Context, req MoveExtentRequest) error
}

// MoveExtentRequest names one move: relocate count clusters of the stream
// identified by FileID/StreamName starting at virtual position SourceVCN
// from LCN SourceLCN to LCN TargetLCN.
type MoveExtentRequest struct {
	FileID     uint64
	StreamName string
	SourceVCN  uint64
	SourceLCN  uint64
	TargetLCN  uint64
	Count      uint64
}

// ExtentQuery is the extent_query host primitive, used directly by the
// non-NTFS file-tree walker (spec.md §4.5: "queries extent maps file-by-file
// via the host's FILE_EXTENT_QUERY primitive"); the MFT scanner instead
// decodes runlists itself from raw MFT records.
type ExtentQuery interface {
	QueryExtents(path string) ([]ExtentRun, error)
}

// ExtentRun is one physical run returned by ExtentQuery, in the same shape
// as a decoded MFT runlist entry.
type ExtentRun struct {
	VCN    uint64
	LCN    uint64 // ntfstypes.SentinelLCN for a sparse run
	Length uint64
}

// Clock is the clock_now host primitive.
type Clock interface {
	Now() Time
}

// Time is a monotonic instant. It is a thin wrapper rather than time.Time
// so that the Clock boundary stays mockable without importing the host's
// wall-clock behavior into deterministic tests.
type Time struct {
	UnixNano int64
}

// Sub returns t minus u in nanoseconds.
func (t Time) Sub(u Time) int64 {
	return t.UnixNano - u.UnixNano
}

// Before reports whether t is strictly before u.
func (t Time) Before(u Time) bool {
	return t.UnixNano < u.UnixNano
}

// ProgressSink is the external progress/cancel collaborator of spec.md §1,
// §5: it receives progress snapshots. Cancellation does not go through the
// sink; it is the CancelToken below. Snapshots are published from the
// progress thread described in spec.md §5, and the final record of a job
// is published once more from the control thread when the job finishes.
type ProgressSink interface {
	// Publish delivers a progress record snapshot. Implementations must
	// not block the caller for long; the core calls this from its own
	// timer goroutine and, for the final record, from the control thread.
	Publish(ntfstypes.ProgressRecord)
}

// CancelToken is the single boolean cancellation flag of spec.md §5,
// observed between records/moves by the control thread. Modeled as a
// context.Context so cancellation composes with deadlines the same way the
// rest of the Go ecosystem does; the teacher corpus has no cancellation
// type of its own to imitate, so this is the point where the module reaches
// for the standard library idiom by design, not by default.
type CancelToken = context.Context
