package volume

import "sort"

// FreeRegion is a maximal contiguous run of free clusters (spec.md §3 Free
// region). The free-region list is maintained in strictly ascending LCN
// order with no adjacent or overlapping regions.
type FreeRegion struct {
	LCN    uint64
	Length uint64
}

// End returns the exclusive end LCN of the region.
func (r FreeRegion) End() uint64 { return r.LCN + r.Length }

// FreeList is the ordered free-region container. Add and Sub, plus
// ascending iteration, are the only mutators the rest of the system uses
// (spec.md §4.2), grounded on the teacher's chunk/bitmap-backed free-space
// accounting (internal/parsers/space_manager) generalized to a plain
// ordered slice, since no example repo reaches for a third-party
// interval-list library for this.
type FreeList struct {
	regions []FreeRegion
}

// NewFreeList builds a free list from an already-sorted, non-overlapping
// slice of regions (typically produced by scanning the bitmap for maximal
// zero-runs).
func NewFreeList(regions []FreeRegion) *FreeList {
	fl := &FreeList{regions: append([]FreeRegion(nil), regions...)}
	return fl
}

// Regions returns the current regions in ascending LCN order. The returned
// slice must not be mutated by the caller.
func (fl *FreeList) Regions() []FreeRegion {
	return fl.regions
}

// TotalFree returns the sum of all free region lengths.
func (fl *FreeList) TotalFree() uint64 {
	var total uint64
	for _, r := range fl.regions {
		total += r.Length
	}
	return total
}

// Snapshot returns a deep copy of the list, used by the planner to reserve
// targets within a pass without mutating the committed model until the
// mover confirms (spec.md §4.3 "reserved in the planner's scratch copy").
func (fl *FreeList) Snapshot() *FreeList {
	return NewFreeList(fl.regions)
}

// Equal reports whether two free lists contain byte-identical region
// lists, used by the add/sub round-trip law in spec.md §8.
func (fl *FreeList) Equal(other *FreeList) bool {
	if len(fl.regions) != len(other.regions) {
		return false
	}
	for i := range fl.regions {
		if fl.regions[i] != other.regions[i] {
			return false
		}
	}
	return true
}

// Add inserts a run of length free clusters starting at lcn, merging with
// an abutting predecessor and/or successor (spec.md §4.2 add). A zero
// length is a no-op (spec.md §8 boundary behavior).
func (fl *FreeList) Add(lcn, length uint64) {
	if length == 0 {
		return
	}

	idx := sort.Search(len(fl.regions), func(i int) bool {
		return fl.regions[i].LCN >= lcn
	})

	// Try merging with the predecessor first.
	if idx > 0 {
		pred := &fl.regions[idx-1]
		if pred.LCN+pred.Length == lcn {
			pred.Length += length
			// The extended predecessor may now abut its successor too.
			if idx < len(fl.regions) && pred.LCN+pred.Length == fl.regions[idx].LCN {
				pred.Length += fl.regions[idx].Length
				fl.regions = append(fl.regions[:idx], fl.regions[idx+1:]...)
			}
			return
		}
	}

	// Try merging with the successor.
	if idx < len(fl.regions) {
		succ := &fl.regions[idx]
		if lcn+length == succ.LCN {
			succ.LCN = lcn
			succ.Length += length
			return
		}
	}

	// No abutment either side: insert a new region.
	fl.regions = append(fl.regions, FreeRegion{})
	copy(fl.regions[idx+1:], fl.regions[idx:])
	fl.regions[idx] = FreeRegion{LCN: lcn, Length: length}
}

// Sub removes the run [lcn, lcn+length) from the free list, splitting or
// trimming any region it intersects (spec.md §4.2 sub). A range with no
// overlap is a no-op (spec.md §8 boundary behavior).
func (fl *FreeList) Sub(lcn, length uint64) {
	if length == 0 {
		return
	}
	end := lcn + length

	var result []FreeRegion
	for _, r := range fl.regions {
		rEnd := r.End()
		if rEnd <= lcn || r.LCN >= end {
			// No intersection.
			result = append(result, r)
			continue
		}

		if r.LCN >= lcn && rEnd <= end {
			// (a) wholly contained: delete.
			continue
		}
		if r.LCN < lcn && rEnd <= end {
			// (b) right end trimmed.
			result = append(result, FreeRegion{LCN: r.LCN, Length: lcn - r.LCN})
			continue
		}
		if r.LCN >= lcn && rEnd > end {
			// (c) left end trimmed: keep the tail.
			result = append(result, FreeRegion{LCN: end, Length: rEnd - end})
			continue
		}
		// (d) middle punched out: shrink the head, keep the tail.
		result = append(result, FreeRegion{LCN: r.LCN, Length: lcn - r.LCN})
		result = append(result, FreeRegion{LCN: end, Length: rEnd - end})
	}
	fl.regions = result
}

// FirstFit returns the first region (in ascending LCN order) whose length
// is at least minLength, per spec.md §4.3 target selection. ok is false
// when no region is large enough.
func (fl *FreeList) FirstFit(minLength uint64) (region FreeRegion, ok bool) {
	for _, r := range fl.regions {
		if r.Length >= minLength {
			return r, true
		}
	}
	return FreeRegion{}, false
}

// FirstFitExcluding is FirstFit restricted to candidates that do not
// overlap [excludeLCN, excludeLCN+excludeLength) — used by the planner to
// skip a free region that would place a stream inside the MFT zone
// (spec.md §4.3, SPEC_FULL.md §4.7).
func (fl *FreeList) FirstFitExcluding(minLength, excludeLCN, excludeLength uint64) (region FreeRegion, ok bool) {
	excludeEnd := excludeLCN + excludeLength
	for _, r := range fl.regions {
		if r.Length < minLength {
			continue
		}
		if excludeLength > 0 && r.LCN < excludeEnd && excludeLCN < r.End() {
			continue
		}
		return r, true
	}
	return FreeRegion{}, false
}

// Invariant checks that the free list still satisfies spec.md §4.2's
// invariants: non-empty regions only, strictly ascending LCN, no two
// regions r1, r2 with r1.LCN+r1.Length >= r2.LCN. Returns a descriptive
// error-free bool for use in tests and as a fatal-check hook in the mover.
func (fl *FreeList) Invariant() bool {
	for i, r := range fl.regions {
		if r.Length == 0 {
			return false
		}
		if i > 0 {
			prev := fl.regions[i-1]
			if prev.LCN+prev.Length >= r.LCN {
				return false
			}
		}
	}
	return true
}
