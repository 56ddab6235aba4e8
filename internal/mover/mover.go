// Package mover applies move requests from the planner to the host
// filesystem and to the in-memory volume model, keeping both consistent
// with respect to failure (spec.md §4.4). It generalizes the teacher's
// "validate preconditions before touching state, return a wrapped error
// otherwise" shape from parsing (ReadNXSuperblock,
// NewChunkInfoBlockReader) to mutation: assert preconditions, call the
// host primitive, update the model on success, roll back the reservation
// on failure.
package mover

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/planner"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// StreamState is the per-stream state machine of spec.md §4.4:
// CANDIDATE -> (picked) PENDING -> (moved) COMMITTED | (failed) SKIPPED.
type StreamState int

const (
	StateCandidate StreamState = iota
	StatePending
	StateCommitted
	StateSkipped
)

// StreamKey identifies a stream for state-machine tracking across a pass.
type StreamKey struct {
	MFTIndex   uint64
	StreamName string
}

func keyOf(s *volume.Stream) StreamKey {
	return StreamKey{MFTIndex: s.FileID, StreamName: s.Name}
}

// Mover applies MoveRequests one at a time (spec.md §5: "no concurrent
// moves") and tracks each touched stream's state for the current pass.
type Mover struct {
	Primitive hostio.MoveExtentPrimitive
	DryRun    bool

	states map[StreamKey]StreamState
}

// New creates a Mover. primitive is nil-safe only when DryRun is true.
func New(primitive hostio.MoveExtentPrimitive, dryRun bool) *Mover {
	return &Mover{Primitive: primitive, DryRun: dryRun, states: make(map[StreamKey]StreamState)}
}

// ResetPass resets every stream still in a terminal state back to
// CANDIDATE unless it is now unfragmented (spec.md §4.4: "both reset to
// CANDIDATE at the next pass unless the stream is now unfragmented").
// Callers pass the current (post-move) fragmentation state per stream.
func (m *Mover) ResetPass(stillFragmented map[StreamKey]bool) {
	for k, frag := range stillFragmented {
		if frag {
			m.states[k] = StateCandidate
		}
	}
}

// StateOf returns the current tracked state of a stream, defaulting to
// CANDIDATE for a stream never seen this pass.
func (m *Mover) StateOf(s *volume.Stream) StreamState {
	if st, ok := m.states[keyOf(s)]; ok {
		return st
	}
	return StateCandidate
}

// TrackedKeys returns every stream key this Mover currently holds a state
// for, letting the job orchestrator re-derive each one's post-pass
// fragmentation status for ResetPass without the Mover needing direct
// access to the volume model.
func (m *Mover) TrackedKeys() []StreamKey {
	keys := make([]StreamKey, 0, len(m.states))
	for k := range m.states {
		keys = append(keys, k)
	}
	return keys
}

// Apply runs the full per-move protocol of spec.md §4.4 for one request:
// pre-check, reserve destination, invoke the host primitive, then commit
// or roll back. free is the committed (non-scratch) free-region list,
// mutated in place. It returns an error only for a fatal invariant
// violation (ntfstypes.ErrModelCorrupted); a host-rejected move is
// recorded as SKIPPED and reported via the returned bool, not an error.
func (m *Mover) Apply(ctx context.Context, free *volume.FreeList, req planner.MoveRequest) (committed bool, err error) {
	key := StreamKey{MFTIndex: req.File.MFTIndex, StreamName: req.Stream.Name}
	m.states[key] = StatePending

	// 1. Pre-check: destination must be entirely free in the model.
	if !regionIsFree(free, req.TargetLCN, req.Count) {
		m.states[key] = StateSkipped
		return false, nil
	}

	// 2. Reserve destination.
	free.Sub(req.TargetLCN, req.Count)

	// 3. Invoke host primitive (skipped entirely under DRY_RUN, spec.md §6).
	var hostErr error
	if !m.DryRun {
		hostErr = m.Primitive.MoveExtent(ctx, hostio.MoveExtentRequest{
			FileID:     req.File.MFTIndex,
			StreamName: req.Stream.Name,
			SourceVCN:  req.SourceVCN,
			SourceLCN:  req.SourceLCN,
			TargetLCN:  req.TargetLCN,
			Count:      req.Count,
		})
	}

	if hostErr != nil {
		// 5. On host failure: roll back the destination reservation; the
		// stream's model is untouched.
		free.Add(req.TargetLCN, req.Count)
		m.states[key] = StateSkipped
		return false, nil
	}

	// 4. On host success: update the stream's extent list and free list.
	RetargetRange(req.Stream, req.SourceVCN, req.Count, req.TargetLCN)
	free.Add(req.SourceLCN, req.Count)
	req.Stream.RecomputeFragmented()

	if !free.Invariant() {
		return false, ntfstypes.NewJobError(ntfstypes.ErrModelCorrupted, "MODEL_CORRUPTED",
			fmt.Sprintf("free list invariant violated after moving stream %d:%s", req.File.MFTIndex, req.Stream.Name), nil)
	}

	m.states[key] = StateCommitted
	return true, nil
}

// regionIsFree reports whether [lcn, lcn+length) lies entirely within one
// free region of the model (spec.md §4.4 step 1).
func regionIsFree(free *volume.FreeList, lcn, length uint64) bool {
	end := lcn + length
	for _, r := range free.Regions() {
		if r.LCN <= lcn && end <= r.End() {
			return true
		}
	}
	return false
}
