package volume

import "github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"

// BuildClusterStateMap computes the fixed-size cluster-state map for the
// given file set and free/MFT-zone layout (spec.md §4.2 Cell coloring).
//
// For each stream's extents, the owning cells are painted with the
// stream's color class; collisions are resolved by priority
// (ntfstypes.HigherPriority). Free regions are painted FREE first so any
// higher-priority stream color still wins on overlap (which should not
// happen in a consistent model, but keeps painting order well-defined).
func BuildClusterStateMap(files []*FileEntry, free *FreeList, mftZoneLCN, mftZoneLength, totalClusters uint64, rows, cols int) *ntfstypes.ClusterStateMap {
	m := ntfstypes.NewClusterStateMap(rows, cols)

	for _, r := range free.Regions() {
		m.Paint(r.LCN, r.Length, totalClusters, ntfstypes.ColorFree)
	}

	if mftZoneLength > 0 {
		m.Paint(mftZoneLCN, mftZoneLength, totalClusters, ntfstypes.ColorMFTZone)
	}

	for _, f := range files {
		for _, s := range f.Streams {
			color := streamColor(f, s)
			for _, e := range s.Extents {
				if e.IsSparse() {
					continue
				}
				m.Paint(e.LCN, e.Length, totalClusters, color)
			}
		}
	}

	return m
}

// streamColor picks the color class a stream paints its owning cells with,
// per spec.md §4.2's color list and the file/stream flags that select
// among them.
func streamColor(f *FileEntry, s *Stream) ntfstypes.ColorClass {
	switch {
	case f.MFTIndex == ntfstypes.MFTRecordMFT || f.MFTIndex == ntfstypes.MFTRecordMFTMirr:
		return ntfstypes.ColorMFT
	case ntfstypes.IsSystemRecord(f.MFTIndex):
		return ntfstypes.ColorSystem
	case s.Flags&ntfstypes.StreamCompressed != 0:
		return ntfstypes.ColorCompressed
	case f.IsDirectory():
		return ntfstypes.ColorDirectory
	case s.Flags&ntfstypes.StreamFragmented != 0:
		return ntfstypes.ColorFragmented
	default:
		return ntfstypes.ColorUnfragmented
	}
}
