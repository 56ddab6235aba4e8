package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

func fileWithStream(mftIndex uint64, path string, extents []volume.Extent) *volume.FileEntry {
	s := &volume.Stream{FileID: mftIndex, Extents: extents}
	s.RecomputeFragmented()
	return &volume.FileEntry{
		MFTIndex: mftIndex,
		Path:     path,
		Streams:  []*volume.Stream{s},
	}
}

// TestPlanDefragPassTrivial implements spec.md §8 scenario 1: a fragmented
// file with two runs relocates to a single free region.
func TestPlanDefragPassTrivial(t *testing.T) {
	f := fileWithStream(16, `\?\C:\a.txt`, []volume.Extent{
		{VCN: 0, LCN: 5, Length: 10},
		{VCN: 10, LCN: 20, Length: 10},
	})
	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 40, Length: 30}})

	p := New()
	moves := p.PlanDefragPass([]*volume.FileEntry{f}, free, DefaultConfig())

	require.Len(t, moves, 2)
	require.Equal(t, uint64(40), moves[0].TargetLCN)
	require.Equal(t, uint64(50), moves[1].TargetLCN)
	require.Equal(t, uint64(5), moves[0].SourceLCN)
	require.Equal(t, uint64(20), moves[1].SourceLCN)
}

func TestPlanDefragPassSkipsSystemFiles(t *testing.T) {
	f := fileWithStream(3, `\?\C:\$Volume`, []volume.Extent{
		{VCN: 0, LCN: 5, Length: 5},
		{VCN: 5, LCN: 20, Length: 5},
	})
	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 40, Length: 30}})

	p := New()
	moves := p.PlanDefragPass([]*volume.FileEntry{f}, free, DefaultConfig())
	require.Empty(t, moves)
}

func TestPlanDefragPassUnrelocatableWhenNoRegionFits(t *testing.T) {
	f := fileWithStream(16, `\?\C:\a.txt`, []volume.Extent{
		{VCN: 0, LCN: 5, Length: 10},
		{VCN: 10, LCN: 20, Length: 10},
	})
	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 40, Length: 5}})

	p := New()
	moves := New().PlanDefragPass([]*volume.FileEntry{f}, free, DefaultConfig())
	_ = p
	require.Empty(t, moves)
}

// TestPlanOptimizePassSorted implements spec.md §8 scenario 3: three
// movable files placed at front in PATH ascending order.
func TestPlanOptimizePassSorted(t *testing.T) {
	a := fileWithStream(16, "b_middle", []volume.Extent{{VCN: 0, LCN: 100, Length: 20}})
	b := fileWithStream(17, "a_first", []volume.Extent{{VCN: 0, LCN: 150, Length: 10}})
	c := fileWithStream(18, "c_last", []volume.Extent{{VCN: 0, LCN: 170, Length: 15}})

	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 10, Length: 190}})

	cfg := DefaultConfig()
	cfg.Sorting = SortPath
	cfg.SortingOrder = SortAscending

	p := New()
	moves := p.PlanOptimizePass([]*volume.FileEntry{a, b, c}, free, 0, 0, cfg, PhaseCompact, false)

	// Sorted ascending by path: a_first, b_middle, c_last.
	require.Len(t, moves, 3)
	require.Equal(t, "a_first", moves[0].File.Path)
	require.Equal(t, uint64(10), moves[0].TargetLCN)
	require.Equal(t, "b_middle", moves[1].File.Path)
	require.Equal(t, uint64(20), moves[1].TargetLCN)
	require.Equal(t, "c_last", moves[2].File.Path)
	require.Equal(t, uint64(40), moves[2].TargetLCN)
}

func TestPlanOptimizePassSkipsMFTZone(t *testing.T) {
	f := fileWithStream(16, "x", []volume.Extent{{VCN: 0, LCN: 100, Length: 10}})
	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 0, Length: 5}, {LCN: 50, Length: 10}})

	p := New()
	// MFT zone covers [0,5) which is too small anyway; next region at 50
	// is large enough and doesn't overlap, so it is used.
	moves := p.PlanOptimizePass([]*volume.FileEntry{f}, free, 0, 5, DefaultConfig(), PhaseCompact, false)
	require.Len(t, moves, 1)
	require.Equal(t, uint64(50), moves[0].TargetLCN)
}

func TestPlanOptimizePassAlreadyAtTargetSkipped(t *testing.T) {
	f := fileWithStream(16, "x", []volume.Extent{{VCN: 0, LCN: 10, Length: 10}})
	free := volume.NewFreeList([]volume.FreeRegion{{LCN: 10, Length: 10}})

	p := New()
	moves := p.PlanOptimizePass([]*volume.FileEntry{f}, free, 0, 0, DefaultConfig(), PhaseCompact, false)
	require.Empty(t, moves)
}

func TestIsMovableExcludesUnmovableStreamNames(t *testing.T) {
	f := &volume.FileEntry{MFTIndex: 100, Path: "x"}
	s := &volume.Stream{Name: "$LogFile", Extents: []volume.Extent{{VCN: 0, LCN: 1, Length: 1}}}
	require.False(t, IsMovable(DefaultConfig(), f, s, false))
}

func TestIsMovableExcludesReparsePoints(t *testing.T) {
	f := &volume.FileEntry{MFTIndex: 100, Path: "x", Flags: ntfstypes.FileFlagReparsePoint}
	s := &volume.Stream{Extents: []volume.Extent{{VCN: 0, LCN: 1, Length: 1}}}
	require.False(t, IsMovable(DefaultConfig(), f, s, false))
}

func TestShouldTerminateZeroMovesAlwaysStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepeatThreshold = 0
	require.True(t, ShouldTerminate(0, cfg))
}

func TestShouldTerminateBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepeatThreshold = 5
	require.True(t, ShouldTerminate(3, cfg))
	require.False(t, ShouldTerminate(10, cfg))
}
