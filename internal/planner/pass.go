package planner

import (
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// OptimizePhase distinguishes the two sub-phases of a full/quick optimize
// job (spec.md §4.3: "first compact all movable files toward the front ...
// then defragment the remainder").
type OptimizePhase int

const (
	PhaseCompact OptimizePhase = iota
	PhaseDefragRemainder
)

// Planner computes one pass's worth of move requests given the current
// model state. It holds no state of its own across calls; the job
// orchestrator (internal/job) owns the pass/phase loop and termination
// decision, consulting ShouldTerminate after each pass.
type Planner struct{}

// New creates a Planner.
func New() *Planner {
	return &Planner{}
}

// PlanDefragPass computes one DEFRAGMENT pass: for each fragmented movable
// stream, find the first free region large enough to hold it and reserve
// it in a scratch copy of free so the same target isn't chosen twice
// within this pass before the mover commits (spec.md §4.3 Target selection
// (defragmentation)).
func (p *Planner) PlanDefragPass(files []*volume.FileEntry, free *volume.FreeList, cfg Config) []MoveRequest {
	return p.planDefragPass(files, free, cfg, false)
}

func (p *Planner) planDefragPass(files []*volume.FileEntry, free *volume.FreeList, cfg Config, optimizerPass bool) []MoveRequest {
	scratch := free.Snapshot()
	var moves []MoveRequest
	for _, f := range files {
		for _, s := range f.Streams {
			if !IsFragmented(cfg, f, s, optimizerPass) {
				continue
			}
			k := s.ClusterCount()
			if k == 0 {
				continue
			}
			region, ok := scratch.FirstFit(k)
			if !ok {
				continue
			}
			scratch.Sub(region.LCN, k)
			moves = append(moves, movesForRelocation(f, s, region.LCN)...)
		}
	}
	return moves
}

// PlanOptimizePass computes one pass of an OPTIMIZE/QUICK_OPTIMIZE job in
// the given phase (spec.md §4.3). quick applies the
// OPTIMIZER_FILE_SIZE_THRESHOLD exclusion for QUICK_OPTIMIZE. The planner
// must not place a stream inside the MFT zone (SPEC_FULL.md §4.7): when
// the only large-enough free region lies inside it, the stream is skipped
// this pass via FreeList.FirstFitExcluding.
func (p *Planner) PlanOptimizePass(files []*volume.FileEntry, free *volume.FreeList, mftZoneLCN, mftZoneLength uint64, cfg Config, phase OptimizePhase, quick bool) []MoveRequest {
	if phase == PhaseDefragRemainder {
		return p.planDefragPass(files, free, cfg, quick)
	}

	scratch := free.Snapshot()
	cands := collectMovableCandidates(files, cfg, quick)
	sortCandidates(cands, cfg.Sorting, cfg.SortingOrder)

	var moves []MoveRequest
	for _, c := range cands {
		k := c.stream.ClusterCount()
		if k == 0 {
			continue
		}
		region, ok := scratch.FirstFitExcluding(k, mftZoneLCN, mftZoneLength)
		if !ok {
			continue
		}
		if alreadyAt(c.stream, region.LCN, k) {
			continue
		}
		scratch.Sub(region.LCN, k)
		moves = append(moves, movesForRelocation(c.file, c.stream, region.LCN)...)
	}
	return moves
}

// PlanMFTOptimizePass computes one MFT_OPTIMIZE pass: defragment only the
// $MFT and $MFTMirr streams (spec.md §4.3), bypassing the usual
// system-file movability exclusion (the job orchestrator is responsible
// for accepting this job type even when FRAGMENTATION_THRESHOLD would
// otherwise cancel it).
func (p *Planner) PlanMFTOptimizePass(files []*volume.FileEntry, free *volume.FreeList, cfg Config) []MoveRequest {
	scratch := free.Snapshot()
	var moves []MoveRequest
	for _, f := range files {
		if f.MFTIndex != ntfstypes.MFTRecordMFT && f.MFTIndex != ntfstypes.MFTRecordMFTMirr {
			continue
		}
		for _, s := range f.Streams {
			if s.Corrupt || s.FragmentCount() < 2 {
				continue
			}
			k := s.ClusterCount()
			if k == 0 {
				continue
			}
			region, ok := scratch.FirstFit(k)
			if !ok {
				continue
			}
			scratch.Sub(region.LCN, k)
			moves = append(moves, movesForRelocation(f, s, region.LCN)...)
		}
	}
	return moves
}

// ShouldTerminate reports whether the pass loop should stop after a pass
// that made movesThisPass moves (spec.md §4.3: "terminates ... when a pass
// produces fewer than a configured threshold of moves"; SPEC_FULL.md
// §4.7's stronger fixed-point short-circuit: zero moves always stops,
// even when RepeatThreshold is configured to zero).
func ShouldTerminate(movesThisPass int, cfg Config) bool {
	if movesThisPass == 0 {
		return true
	}
	return movesThisPass < cfg.RepeatThreshold
}

// OverallFragmentationPercent computes the percentage of movable clusters
// that belong to fragmented streams, used against FRAGMENTATION_THRESHOLD
// (spec.md §6) before starting a DEFRAGMENT or OPTIMIZE job.
func OverallFragmentationPercent(files []*volume.FileEntry, cfg Config) float64 {
	var total, fragmented uint64
	for _, f := range files {
		for _, s := range f.Streams {
			if !IsMovable(cfg, f, s, false) {
				continue
			}
			k := s.ClusterCount()
			total += k
			if s.FragmentCount() >= 2 {
				fragmented += k
			}
		}
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(fragmented) / float64(total)
}

// ClustersToProcess sums the cluster counts of the streams jobType will
// actually attempt to relocate at the outset of its pass loop (spec.md §3
// Progress record's clusters_to_process field): fragmented movable streams
// for DEFRAGMENT, every movable stream for OPTIMIZE/QUICK_OPTIMIZE's
// compaction population (PlanOptimizePass moves unfragmented movable files
// too, toward the front of the volume), and the $MFT/$MFTMirr streams for
// MFT_OPTIMIZE, which bypasses the system-file movability exclusion the
// same way PlanMFTOptimizePass does.
func ClustersToProcess(files []*volume.FileEntry, cfg Config, jobType ntfstypes.JobType) uint64 {
	var total uint64
	switch jobType {
	case ntfstypes.JobMFTOptimize:
		for _, f := range files {
			if f.MFTIndex != ntfstypes.MFTRecordMFT && f.MFTIndex != ntfstypes.MFTRecordMFTMirr {
				continue
			}
			for _, s := range f.Streams {
				if s.Corrupt || s.FragmentCount() < 2 {
					continue
				}
				total += s.ClusterCount()
			}
		}
	case ntfstypes.JobOptimize, ntfstypes.JobQuickOptimize:
		quick := jobType == ntfstypes.JobQuickOptimize
		for _, c := range collectMovableCandidates(files, cfg, quick) {
			total += c.stream.ClusterCount()
		}
	default: // DEFRAGMENT (and ANALYZE, for which this is never consulted)
		for _, f := range files {
			for _, s := range f.Streams {
				if !IsFragmented(cfg, f, s, false) {
					continue
				}
				total += s.ClusterCount()
			}
		}
	}
	return total
}
