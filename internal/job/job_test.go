package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/planner"
)

const testRecordSize = 1024

// newFragmentedFileDevice builds a tiny synthetic volume with one
// fragmented user file (two data runs) and enough free space to relocate
// it, exercising Job.Defragment end to end (spec.md §8 scenario 1).
func newFragmentedFileDevice() *jobTestDevice {
	const totalRecords = 17
	const totalClusters = 50
	dev := newJobTestDevice(totalRecords, totalClusters, testRecordSize)

	// MFT itself occupies clusters [0,4).
	dev.markUsed(0, 4)
	// File "frag.txt" (record 16) occupies two fragmented runs:
	// VCN 0-1 at LCN 10-11, VCN 2-3 at LCN 20-21.
	dev.markUsed(10, 2)
	dev.markUsed(20, 2)

	std := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "",
		buildStandardInfoValue(1, 1, 1, 0))
	name := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, "frag.txt", ntfstypes.FileNameNamespaceWin32))
	data := buildNonResidentAttr(ntfstypes.AttrData, 2, "",
		buildRunlistTwoRuns(10, 2, 20, 2), 4*4096)

	dev.putRecord(16, buildRecord(testRecordSize, 0, std, name, data))
	return dev
}

func TestJobAnalyzeReportsFragmentation(t *testing.T) {
	dev := newFragmentedFileDevice()
	j := New(dev, &hostio.MockMover{}, hostio.NewMockClock(0), nil, planner.DefaultConfig())

	result, err := j.Analyze(context.Background())
	require.NoError(t, err)
	require.Equal(t, ntfstypes.CompletionStatus(1), result.CompletionStatus)
	require.GreaterOrEqual(t, result.Fragmented, uint32(1))
	require.Equal(t, uint64(0), result.TotalMoves)
}

func TestJobDefragmentRelocatesFragmentedFile(t *testing.T) {
	dev := newFragmentedFileDevice()
	mover := &hostio.MockMover{}
	cfg := planner.DefaultConfig()

	j := New(dev, mover, hostio.NewMockClock(0), nil, cfg)
	result, err := j.Defragment(context.Background())
	require.NoError(t, err)
	require.Equal(t, ntfstypes.CompletionStatus(1), result.CompletionStatus)
	require.Greater(t, result.TotalMoves, uint64(0))
	require.NotEmpty(t, mover.Requests)

	f, ok := j.files.Get(16)
	require.True(t, ok)
	stream := f.PrimaryStream()
	require.NotNil(t, stream)
	require.Equal(t, 1, stream.FragmentCount())
}

func TestJobDefragmentDryRunIssuesNoHostMoves(t *testing.T) {
	dev := newFragmentedFileDevice()
	mover := &hostio.MockMover{}
	cfg := planner.DefaultConfig()
	cfg.DryRun = true

	j := New(dev, mover, hostio.NewMockClock(0), nil, cfg)
	_, err := j.Defragment(context.Background())
	require.NoError(t, err)
	require.Empty(t, mover.Requests)
}

func TestJobPublishesProgressToSink(t *testing.T) {
	dev := newFragmentedFileDevice()
	sink := &hostio.MockSink{}
	j := New(dev, &hostio.MockMover{}, hostio.NewMockClock(0), sink, planner.DefaultConfig())

	_, err := j.Analyze(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, sink.Published)
	last := sink.Published[len(sink.Published)-1]
	require.Equal(t, ntfstypes.CompletionStatus(1), last.CompletionStatus)
}

func TestJobFragmentationThresholdSkipsWork(t *testing.T) {
	dev := newFragmentedFileDevice()
	mover := &hostio.MockMover{}
	cfg := planner.DefaultConfig()
	cfg.FragmentationThreshold = 101 // above any percentage the volume can report

	j := New(dev, mover, hostio.NewMockClock(0), nil, cfg)
	result, err := j.Defragment(context.Background())
	require.NoError(t, err)
	require.Equal(t, ntfstypes.CompletionStatus(1), result.CompletionStatus)
	require.Empty(t, mover.Requests)
}

func TestJobCancellationDuringScanIsReported(t *testing.T) {
	dev := newFragmentedFileDevice()
	mover := &hostio.MockMover{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := New(dev, mover, hostio.NewMockClock(0), nil, planner.DefaultConfig())
	result, err := j.Defragment(ctx)
	require.Error(t, err)
	require.Equal(t, ntfstypes.CompletionStatus(-1), result.CompletionStatus)
	require.Empty(t, mover.Requests)
}
