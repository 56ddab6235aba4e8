// Package volume maintains the cluster bitmap, the free-region list, and
// the file-lookup indices during a job (spec.md §4.2). It is the
// in-memory model the scanner populates and the planner/mover mutate.
package volume

import "github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"

// Extent is a maximal run of consecutive clusters belonging to one stream
// (spec.md §3 Extent).
type Extent struct {
	VCN    uint64
	LCN    uint64 // ntfstypes.SentinelLCN for a sparse/compressed virtual run
	Length uint64
}

// IsSparse reports whether e occupies no physical clusters.
func (e Extent) IsSparse() bool {
	return e.LCN == ntfstypes.SentinelLCN
}

// Stream is a named data attribute of a file (spec.md §3 Stream).
type Stream struct {
	FileID  uint64
	Name    string // "" for the unnamed default $DATA (and for $I30, normalized)
	Extents []Extent
	Flags   ntfstypes.StreamFlags
	Corrupt bool
}

// ClusterCount returns the stream's total physical cluster count.
func (s *Stream) ClusterCount() uint64 {
	var total uint64
	for _, e := range s.Extents {
		if !e.IsSparse() {
			total += e.Length
		}
	}
	return total
}

// FragmentCount tallies physical fragments: the first physical run always
// counts as one fragment; each subsequent physical run whose LCN doesn't
// abut the previous physical run's end increments the count (spec.md §4.1
// Fragmentation tally). Sparse runs don't participate.
func (s *Stream) FragmentCount() int {
	count := 0
	var prev *Extent
	for i := range s.Extents {
		e := &s.Extents[i]
		if e.IsSparse() {
			continue
		}
		if prev == nil {
			count = 1
		} else if e.LCN != prev.LCN+prev.Length {
			count++
		}
		prev = e
	}
	return count
}

// RecomputeFragmented updates the Flags' FRAGMENTED bit from the current
// extent list (spec.md §4.1: "A stream is FRAGMENTED iff it has >= 2
// non-adjacent physical runs").
func (s *Stream) RecomputeFragmented() {
	if s.FragmentCount() >= 2 {
		s.Flags |= ntfstypes.StreamFragmented
	} else {
		s.Flags &^= ntfstypes.StreamFragmented
	}
}

// FileEntry is a single MFT base record with its derived metadata
// (spec.md §3 File entry).
type FileEntry struct {
	MFTIndex   uint64
	ParentID   uint64
	Flags      ntfstypes.FileFlags
	Name       string
	Path       string
	Streams    []*Stream
	ScanErrors int

	// Size is the byte length of the primary unnamed stream, taken from
	// the unnamed $DATA attribute (spec.md §6 SORTING key SIZE).
	Size uint64

	// Raw NTFS FILETIME values (100ns ticks since 1601-01-01) from
	// STANDARD_INFORMATION, used verbatim as sort keys (spec.md §6 SORTING
	// keys C_TIME, M_TIME, A_TIME) rather than converted to time.Time,
	// since nothing in this model needs wall-clock arithmetic on them.
	CreationTime     uint64
	ModificationTime uint64
	AccessTime       uint64
}

// IsSystem reports whether the entry is one of the fixed system files that
// must never be considered movable (spec.md §3 invariant).
func (f *FileEntry) IsSystem() bool {
	return ntfstypes.IsSystemRecord(f.MFTIndex)
}

// IsDirectory reports whether the entry is flagged as a directory.
func (f *FileEntry) IsDirectory() bool {
	return f.Flags&ntfstypes.FileFlagDirectory != 0
}

// PrimaryStream returns the file's unnamed default stream, if present.
func (f *FileEntry) PrimaryStream() *Stream {
	for _, s := range f.Streams {
		if s.Name == "" {
			return s
		}
	}
	return nil
}

// StreamByName returns the named stream, if present.
func (f *FileEntry) StreamByName(name string) *Stream {
	for _, s := range f.Streams {
		if s.Name == name {
			return s
		}
	}
	return nil
}
