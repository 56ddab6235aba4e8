package ntfstypes

// ClusterStateMap is the bit-exact cluster-state map of spec.md §6: a
// byte array of length Rows*Cols in row-major order, each cell holding one
// ColorClass code. Cell (r, c) represents the cluster range
// [(r*Cols+c)*bucket, (r*Cols+c+1)*bucket) where bucket = ceil(total /
// (Rows*Cols)).
type ClusterStateMap struct {
	Rows  int
	Cols  int
	Cells []ColorClass
}

// NewClusterStateMap allocates a map of the given fixed dimensions, every
// cell initialized to ColorUnused.
func NewClusterStateMap(rows, cols int) *ClusterStateMap {
	return &ClusterStateMap{Rows: rows, Cols: cols, Cells: make([]ColorClass, rows*cols)}
}

// Bucket returns the number of clusters each cell represents, given the
// volume's total cluster count.
func (m *ClusterStateMap) Bucket(totalClusters uint64) uint64 {
	n := uint64(m.Rows * m.Cols)
	if n == 0 {
		return 0
	}
	return (totalClusters + n - 1) / n
}

// CellForLCN returns the linear cell index owning the given LCN.
func (m *ClusterStateMap) CellForLCN(lcn uint64, totalClusters uint64) int {
	bucket := m.Bucket(totalClusters)
	if bucket == 0 {
		return 0
	}
	idx := int(lcn / bucket)
	if idx >= len(m.Cells) {
		idx = len(m.Cells) - 1
	}
	return idx
}

// Paint marks every cell touching [lcn, lcn+length) with color, keeping the
// highest-priority color already present on collision (spec.md §4.2).
func (m *ClusterStateMap) Paint(lcn, length, totalClusters uint64, color ColorClass) {
	if length == 0 || len(m.Cells) == 0 {
		return
	}
	bucket := m.Bucket(totalClusters)
	if bucket == 0 {
		return
	}
	first := m.CellForLCN(lcn, totalClusters)
	last := m.CellForLCN(lcn+length-1, totalClusters)
	for i := first; i <= last && i < len(m.Cells); i++ {
		if HigherPriority(color, m.Cells[i]) {
			m.Cells[i] = color
		}
	}
}

// CompletionStatus is the progress record's completion_status field
// semantics (spec.md §6): 0 running, >0 done, <0 failed.
type CompletionStatus int32

const (
	CompletionRunning CompletionStatus = 0
)

// ProgressRecord is the bit-exact snapshot exported to the external sink
// (spec.md §3 Progress record, §6 table).
type ProgressRecord struct {
	CurrentOperation  JobOperation
	PassNumber        uint32
	Files             uint32
	Directories       uint32
	Compressed        uint32
	Fragmented        uint32
	Fragments         uint64
	TotalSpace        uint64
	FreeSpace         uint64
	MFTSize           uint64
	ClustersToProcess uint64
	ProcessedClusters uint64
	MovedClusters     uint64
	TotalMoves        uint64
	Percentage        float64
	CompletionStatus  CompletionStatus

	// ClusterSize is the volume's bytes-per-cluster, carried on the
	// progress record so a presentation layer can convert MovedClusters
	// and similar counters to bytes without a separate round trip to the
	// volume handle.
	ClusterSize uint32

	// ClusterMap is the coarse-grained cluster-state map described
	// alongside the progress record in spec.md §3; it is exported as part
	// of the same snapshot so a progress sink never observes a map from a
	// different instant than the counters.
	ClusterMap *ClusterStateMap
}
