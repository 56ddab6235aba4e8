package planner

import (
	"sort"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// MoveRequest names one physical-extent relocation: move Count clusters of
// Stream's run starting at virtual position SourceVCN from SourceLCN to
// TargetLCN (spec.md §4.4). A stream with several physical extents is
// relocated by one MoveRequest per existing extent, each targeting a
// sequential offset within the chosen destination region so the extents
// land contiguous in VCN order once every request in the batch commits.
type MoveRequest struct {
	File      *volume.FileEntry
	Stream    *volume.Stream
	SourceVCN uint64
	SourceLCN uint64
	Count     uint64
	TargetLCN uint64
}

// movesForRelocation builds the per-extent MoveRequest batch that relocates
// every physical run of s into a single contiguous region starting at
// destLCN, preserving VCN order. Sparse runs contribute no physical move
// and don't advance the destination offset.
func movesForRelocation(f *volume.FileEntry, s *volume.Stream, destLCN uint64) []MoveRequest {
	var moves []MoveRequest
	var offset uint64
	for _, e := range s.Extents {
		if e.IsSparse() {
			continue
		}
		moves = append(moves, MoveRequest{
			File:      f,
			Stream:    s,
			SourceVCN: e.VCN,
			SourceLCN: e.LCN,
			Count:     e.Length,
			TargetLCN: destLCN + offset,
		})
		offset += e.Length
	}
	return moves
}

// alreadyAt reports whether s is already a single contiguous physical
// extent occupying exactly [lcn, lcn+k) (spec.md §4.3: "If the stream is
// already at its target position it is skipped").
func alreadyAt(s *volume.Stream, lcn, k uint64) bool {
	return len(s.Extents) == 1 && !s.Extents[0].IsSparse() &&
		s.Extents[0].LCN == lcn && s.Extents[0].Length == k
}

// candidate pairs a file with one of its movable streams, for sorting
// during the optimize compaction phase.
type candidate struct {
	file   *volume.FileEntry
	stream *volume.Stream
}

// collectMovableCandidates gathers every stream that passes IsMovable,
// regardless of fragmentation (the optimize compaction phase relocates
// movable files toward the front whether or not they're fragmented).
func collectMovableCandidates(files []*volume.FileEntry, cfg Config, optimizerPass bool) []candidate {
	var out []candidate
	for _, f := range files {
		for _, s := range f.Streams {
			if IsMovable(cfg, f, s, optimizerPass) {
				out = append(out, candidate{file: f, stream: s})
			}
		}
	}
	return out
}

// sortCandidates orders candidates by the configured SORTING key and
// SORTING_ORDER (spec.md §6).
func sortCandidates(cands []candidate, key SortKey, order SortOrder) {
	less := func(i, j int) bool {
		a, b := cands[i].file, cands[j].file
		switch key {
		case SortSize:
			return a.Size < b.Size
		case SortCreationTime:
			return a.CreationTime < b.CreationTime
		case SortModificationTime:
			return a.ModificationTime < b.ModificationTime
		case SortAccessTime:
			return a.AccessTime < b.AccessTime
		default:
			return a.Path < b.Path
		}
	}
	if order == SortDescending {
		orig := less
		less = func(i, j int) bool { return orig(j, i) }
	}
	sort.SliceStable(cands, less)
}
