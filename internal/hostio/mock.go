package hostio

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// MockDevice is a deterministic in-memory BlockDevice that tests use in
// place of a real disk, following the corpus-wide
// pattern of hand-rolled in-memory test doubles (e.g. the teacher's
// filesystem_service_osfs_test.go).
type MockDevice struct {
	Data       []byte
	RecordSize uint32
	info       VolumeInfo
	bitmap     []byte // one byte per cluster: 0 free, 1 used
	failReads  map[int64]int
}

// NewMockDevice builds a mock device with the given backing bytes and
// volume geometry.
func NewMockDevice(data []byte, recordSize uint32, info VolumeInfo) *MockDevice {
	return &MockDevice{
		Data:       data,
		RecordSize: recordSize,
		info:       info,
		bitmap:     make([]byte, info.TotalClusters),
		failReads:  make(map[int64]int),
	}
}

// MarkUsed marks clusters [lcn, lcn+length) as used in the mock bitmap.
func (m *MockDevice) MarkUsed(lcn, length uint64) {
	for i := lcn; i < lcn+length && i < uint64(len(m.bitmap)); i++ {
		m.bitmap[i] = 1
	}
}

// FailNextReadAt arranges for the next n reads at byte offset off to fail,
// used to exercise the transient-I/O retry-once path (spec.md §7).
func (m *MockDevice) FailNextReadAt(off int64, n int) {
	m.failReads[off] = n
}

func (m *MockDevice) ReadBlock(off int64, n int) ([]byte, error) {
	if remaining, ok := m.failReads[off]; ok && remaining > 0 {
		m.failReads[off] = remaining - 1
		return nil, fmt.Errorf("mock transient I/O error at offset %d", off)
	}
	if off < 0 || int(off)+n > len(m.Data) {
		return nil, fmt.Errorf("read out of range: off=%d n=%d len=%d", off, n, len(m.Data))
	}
	out := make([]byte, n)
	copy(out, m.Data[off:int(off)+n])
	return out, nil
}

func (m *MockDevice) ReadBitmapChunk(startLCN uint64) ([]byte, uint64, bool, error) {
	const chunkClusters = 4096 * 8
	if startLCN >= uint64(len(m.bitmap)) {
		return nil, 0, false, nil
	}
	end := startLCN + chunkClusters
	if end > uint64(len(m.bitmap)) {
		end = uint64(len(m.bitmap))
	}
	// Pack one bit per cluster, as the volume's $Bitmap stores it.
	chunk := make([]byte, (end-startLCN+7)/8)
	for lcn := startLCN; lcn < end; lcn++ {
		if m.bitmap[lcn] != 0 {
			off := lcn - startLCN
			chunk[off/8] |= 1 << (off % 8)
		}
	}
	return chunk, end, true, nil
}

func (m *MockDevice) ReadMFTRecord(idx uint64, recordSize uint32) ([]byte, error) {
	off := int64(idx) * int64(recordSize)
	return m.ReadBlock(off, int(recordSize))
}

func (m *MockDevice) Info() VolumeInfo { return m.info }

func (m *MockDevice) Close() error { return nil }

// MockMover records every move request and applies a scripted outcome
// (success, or a named failure) per request, used to exercise the mover's
// commit/rollback protocol (spec.md §4.4) without a real host primitive.
type MockMover struct {
	Requests []MoveExtentRequest
	// Fail, if non-nil, is consulted per request; a non-nil return value
	// is the error MoveExtent returns for that request.
	Fail func(MoveExtentRequest) error
}

func (m *MockMover) MoveExtent(ctx context.Context, req MoveExtentRequest) error {
	m.Requests = append(m.Requests, req)
	if m.Fail != nil {
		if err := m.Fail(req); err != nil {
			return err
		}
	}
	return nil
}

// MockExtentQuery answers ExtentQuery from a map of path to scripted runs,
// used by the non-NTFS walker's tests.
type MockExtentQuery struct {
	Runs map[string][]ExtentRun
}

// NewMockExtentQuery builds an empty mock.
func NewMockExtentQuery() *MockExtentQuery {
	return &MockExtentQuery{Runs: make(map[string][]ExtentRun)}
}

func (m *MockExtentQuery) QueryExtents(path string) ([]ExtentRun, error) {
	runs, ok := m.Runs[path]
	if !ok {
		return nil, fmt.Errorf("no extents registered for %q", path)
	}
	return runs, nil
}

// MockClock is a Clock that advances only when told to, for deterministic
// time-budget tests.
type MockClock struct {
	now Time
}

// NewMockClock creates a clock starting at the given nanosecond instant.
func NewMockClock(startNanos int64) *MockClock {
	return &MockClock{now: Time{UnixNano: startNanos}}
}

func (c *MockClock) Now() Time { return c.now }

// Advance moves the mock clock forward by the given number of nanoseconds.
func (c *MockClock) Advance(nanos int64) { c.now.UnixNano += nanos }

// MockSink collects every published progress record, for assertions in
// tests.
type MockSink struct {
	Published []ntfstypes.ProgressRecord
}

func (s *MockSink) Publish(r ntfstypes.ProgressRecord) {
	s.Published = append(s.Published, r)
}
