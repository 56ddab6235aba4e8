package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/mft"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/mover"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/planner"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

const clusterMapRows, clusterMapCols = 16, 64

// Job is the control-thread orchestrator of spec.md §5: it runs the
// analyze -> plan -> move loop synchronously in the caller's goroutine,
// and, when the job was created with a non-nil sink, starts a separate
// progress-thread goroutine that ticks on REFRESH_INTERVAL and publishes a
// mutex-guarded snapshot, mirroring spec.md §5's control/progress-thread
// split. ID is a per-job identifier (SPEC_FULL.md §1a), following the
// teacher's use of uuid.UUID fields on containers and volumes.
type Job struct {
	ID uuid.UUID

	device hostio.BlockDevice
	mover  hostio.MoveExtentPrimitive
	clock  hostio.Clock
	sink   hostio.ProgressSink
	cfg    planner.Config

	mu       sync.Mutex
	progress ntfstypes.ProgressRecord

	files *volume.FileSet
	free  *volume.FreeList
	boot  *ntfstypes.BootSector
}

// New wires a scanner, volume model, planner, and mover together for one
// job, given the host boundary primitives of spec.md §6 and a
// configuration vector (SPEC_FULL.md §4.6's Job constructor).
func New(device hostio.BlockDevice, moveExtent hostio.MoveExtentPrimitive, clock hostio.Clock, sink hostio.ProgressSink, cfg planner.Config) *Job {
	return &Job{
		ID:     uuid.New(),
		device: device,
		mover:  moveExtent,
		clock:  clock,
		sink:   sink,
		cfg:    cfg,
	}
}

// Progress returns a copy of the current progress snapshot.
func (j *Job) Progress() ntfstypes.ProgressRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *Job) setProgress(p ntfstypes.ProgressRecord) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// Analyze runs an ANALYZE job: scan the volume and populate statistics
// only, with no moves (spec.md §4.3).
func (j *Job) Analyze(ctx context.Context) (ntfstypes.ProgressRecord, error) {
	return j.run(ctx, ntfstypes.JobAnalyze)
}

// Defragment runs a DEFRAGMENT job (spec.md §4.3).
func (j *Job) Defragment(ctx context.Context) (ntfstypes.ProgressRecord, error) {
	return j.run(ctx, ntfstypes.JobDefragment)
}

// Optimize runs a full OPTIMIZE job (spec.md §4.3).
func (j *Job) Optimize(ctx context.Context) (ntfstypes.ProgressRecord, error) {
	return j.run(ctx, ntfstypes.JobOptimize)
}

// QuickOptimize runs a QUICK_OPTIMIZE job (spec.md §4.3).
func (j *Job) QuickOptimize(ctx context.Context) (ntfstypes.ProgressRecord, error) {
	return j.run(ctx, ntfstypes.JobQuickOptimize)
}

// MFTOptimize runs an MFT_OPTIMIZE job (spec.md §4.3).
func (j *Job) MFTOptimize(ctx context.Context) (ntfstypes.ProgressRecord, error) {
	return j.run(ctx, ntfstypes.JobMFTOptimize)
}

func (j *Job) run(ctx context.Context, jobType ntfstypes.JobType) (ntfstypes.ProgressRecord, error) {
	op := ntfstypes.OperationAnalyze
	switch jobType {
	case ntfstypes.JobDefragment, ntfstypes.JobMFTOptimize:
		op = ntfstypes.OperationDefrag
	case ntfstypes.JobOptimize, ntfstypes.JobQuickOptimize:
		op = ntfstypes.OperationOptimize
	}

	j.setProgress(ntfstypes.ProgressRecord{CurrentOperation: op})

	stopProgress := j.startProgressThread(ctx)
	defer stopProgress()

	if err := j.scan(ctx); err != nil {
		j.finish(-1)
		return j.Progress(), err
	}

	if jobType == ntfstypes.JobAnalyze {
		j.finish(1)
		return j.Progress(), nil
	}

	if jobType != ntfstypes.JobMFTOptimize && j.cfg.FragmentationThreshold > 0 {
		pct := planner.OverallFragmentationPercent(j.files.All(), j.cfg)
		if pct < j.cfg.FragmentationThreshold {
			j.finish(1)
			return j.Progress(), nil
		}
	}

	deadline := j.deadline()
	p := planner.New()
	mv := mover.New(j.mover, j.cfg.DryRun)

	toProcess := planner.ClustersToProcess(j.files.All(), j.cfg, jobType)
	snap := j.Progress()
	snap.ClustersToProcess = toProcess
	j.setProgress(snap)

	var totalMoves, movedClusters uint64
	pass := uint32(0)

	runPasses := func(passPlan func() []planner.MoveRequest) error {
		for {
			pass++
			if shouldStop(ctx, j.clock, deadline) {
				return nil
			}
			moves := passPlan()
			n, clusters, _, err := j.applyMoves(ctx, mv, moves, pass, deadline)
			totalMoves += uint64(n)
			movedClusters += clusters
			if err != nil {
				return err
			}
			j.resetMoverPass(mv)
			if planner.ShouldTerminate(n, j.cfg) {
				return nil
			}
		}
	}

	var err error
	switch jobType {
	case ntfstypes.JobDefragment:
		err = runPasses(func() []planner.MoveRequest {
			return p.PlanDefragPass(j.files.All(), j.free, j.cfg)
		})
	case ntfstypes.JobMFTOptimize:
		err = runPasses(func() []planner.MoveRequest {
			return p.PlanMFTOptimizePass(j.files.All(), j.free, j.cfg)
		})
	case ntfstypes.JobOptimize, ntfstypes.JobQuickOptimize:
		quick := jobType == ntfstypes.JobQuickOptimize
		err = runPasses(func() []planner.MoveRequest {
			return p.PlanOptimizePass(j.files.All(), j.free, j.mftZoneLCN(), j.mftZoneLength(), j.cfg, planner.PhaseCompact, quick)
		})
		if err == nil {
			err = runPasses(func() []planner.MoveRequest {
				return p.PlanOptimizePass(j.files.All(), j.free, j.mftZoneLCN(), j.mftZoneLength(), j.cfg, planner.PhaseDefragRemainder, quick)
			})
		}
	}

	if err != nil {
		if jerr, ok := err.(*ntfstypes.JobError); ok {
			j.finish(int32(jerr.Code))
		} else {
			j.finish(int32(ntfstypes.ErrUnknown))
		}
		return j.Progress(), err
	}

	// Cancellation is not an error (spec.md §7): it still reports a
	// positive completion_status, with counters reflecting the work
	// actually completed.
	j.finish(1)
	final := j.Progress()
	final.TotalMoves = totalMoves
	final.MovedClusters = movedClusters
	j.setProgress(final)
	return final, nil
}

// resetMoverPass resets every stream the mover touched this pass back to
// CANDIDATE for the next one, unless it is now unfragmented (spec.md §4.4:
// "both reset to CANDIDATE at the next pass unless the stream is now
// unfragmented").
func (j *Job) resetMoverPass(mv *mover.Mover) {
	stillFragmented := make(map[mover.StreamKey]bool)
	for _, k := range mv.TrackedKeys() {
		f, ok := j.files.Get(k.MFTIndex)
		if !ok {
			continue
		}
		s := f.StreamByName(k.StreamName)
		stillFragmented[k] = s != nil && s.FragmentCount() >= 2
	}
	mv.ResetPass(stillFragmented)
}

// applyMoves runs one pass's moves through the mover, one at a time
// (spec.md §5: "No concurrent moves"), checking cancellation between moves
// per spec.md §5's suspension-point rule ("any in-flight move is allowed
// to complete before abort").
func (j *Job) applyMoves(ctx context.Context, mv *mover.Mover, moves []planner.MoveRequest, pass uint32, deadline time.Time) (committedCount int, movedClusters, processedClusters uint64, err error) {
	// Publish whatever was actually committed before returning, even on a
	// fatal error partway through the batch, so the job's final progress
	// record reflects the moves that already landed (spec.md §7: "a
	// populated progress record" on failure, not a stale one).
	defer func() {
		snap := j.Progress()
		snap.PassNumber = pass
		snap.TotalMoves += uint64(committedCount)
		snap.MovedClusters += movedClusters
		snap.ProcessedClusters += processedClusters
		j.setProgress(snap)
	}()

	for _, req := range moves {
		if shouldStop(ctx, j.clock, deadline) {
			break
		}
		committed, applyErr := mv.Apply(ctx, j.free, req)
		if applyErr != nil {
			err = applyErr
			return committedCount, movedClusters, processedClusters, err
		}
		// processedClusters counts every candidate the mover examined this
		// pass, whether or not the move committed; movedClusters counts
		// only confirmed relocations (spec.md §3's processed-vs-moved
		// distinction).
		processedClusters += req.Count
		if committed {
			committedCount++
			movedClusters += req.Count
		}
	}

	return committedCount, movedClusters, processedClusters, nil
}

func (j *Job) deadline() time.Time {
	if j.cfg.TimeLimit <= 0 {
		return time.Time{}
	}
	now := j.clock.Now()
	return time.Unix(0, now.UnixNano).Add(j.cfg.TimeLimit)
}

func shouldStop(ctx context.Context, clock hostio.Clock, deadline time.Time) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if deadline.IsZero() {
		return false
	}
	now := time.Unix(0, clock.Now().UnixNano)
	return !now.Before(deadline)
}

func (j *Job) mftZoneLCN() uint64 {
	return j.device.Info().MFTZoneLCN
}

func (j *Job) mftZoneLength() uint64 {
	return j.device.Info().MFTZoneLength
}

// finish sets the terminal completion status and publishes the final
// progress snapshot to the sink immediately (spec.md §7: "the job returns
// its integer error code and a populated progress record").
func (j *Job) finish(status int32) {
	p := j.Progress()
	p.CompletionStatus = ntfstypes.CompletionStatus(status)
	p.Percentage = 100
	j.setProgress(p)
	if j.sink != nil {
		j.sink.Publish(p)
	}
}

// scan runs the MFT scanner (the non-NTFS walker is not used here) and
// derives the free-region list and file set the rest of the pipeline uses.
func (j *Job) scan(ctx context.Context) error {
	scanner := mft.New(j.device)
	result, err := scanner.Scan(ctx, mft.Options{AllowPartialScan: true})
	if err != nil {
		return err
	}

	info := j.device.Info()
	regions, err := volume.RegionsFromBitmap(j.device, info.TotalClusters)
	if err != nil {
		return fmt.Errorf("reading volume bitmap: %w", err)
	}

	j.files = result.Files
	j.free = volume.NewFreeList(regions)
	j.boot = result.BootSector

	// Sync the planner's byte-to-cluster conversion with the volume's
	// actual cluster size (FRAGMENT_SIZE_THRESHOLD is configured in bytes
	// but compared against cluster counts, spec.md §6).
	if info.ClusterSize != 0 {
		j.cfg.ClusterSize = info.ClusterSize
	}

	files := j.files.All()
	var fragCount, dirCount, compressedCount uint32
	var fragments uint64
	for _, f := range files {
		if f.IsDirectory() {
			dirCount++
		}
		for _, s := range f.Streams {
			if s.Flags&ntfstypes.StreamFragmented != 0 {
				fragCount++
			}
			if s.Flags&ntfstypes.StreamCompressed != 0 {
				compressedCount++
			}
			fragments += uint64(s.FragmentCount())
		}
	}

	var mftSize uint64
	if mftFile, ok := j.files.Get(ntfstypes.MFTRecordMFT); ok {
		if s := mftFile.PrimaryStream(); s != nil {
			mftSize = s.ClusterCount() * uint64(info.ClusterSize)
		}
	}

	snap := j.Progress()
	snap.Files = uint32(len(files))
	snap.Directories = dirCount
	snap.Fragmented = fragCount
	snap.Compressed = compressedCount
	snap.Fragments = fragments
	snap.TotalSpace = info.TotalClusters * uint64(info.ClusterSize)
	snap.FreeSpace = j.free.TotalFree() * uint64(info.ClusterSize)
	snap.MFTSize = mftSize
	snap.ClusterSize = info.ClusterSize
	snap.ClusterMap = volume.BuildClusterStateMap(files, j.free, info.MFTZoneLCN, info.MFTZoneLength, info.TotalClusters, clusterMapRows, clusterMapCols)
	j.setProgress(snap)
	return nil
}

// startProgressThread starts the timer goroutine of spec.md §5 ("a
// separate progress thread may be used purely to deliver progress
// snapshots to the UI on a timer"). It returns a stop function the caller
// must invoke once, which blocks until the goroutine has exited.
func (j *Job) startProgressThread(ctx context.Context) func() {
	if j.sink == nil {
		return func() {}
	}
	interval := j.cfg.RefreshInterval
	if interval <= 0 {
		interval = ntfstypes.DefaultRefreshIntervalMillis * time.Millisecond
	}

	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.sink.Publish(j.Progress())
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
		<-done
	}
}
