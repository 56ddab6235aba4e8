package volume

import "sort"

// FileSet owns every FileEntry produced by one scan, plus the indices used
// to look files up by MFT index and to resolve parent-child relationships
// during path assembly (spec.md §3 Lifecycle: "the file-entry store owns
// everything and is released atomically at job end").
type FileSet struct {
	byIndex map[uint64]*FileEntry
	sorted  []*FileEntry // kept sorted by MFTIndex once Finalize is called
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{byIndex: make(map[uint64]*FileEntry)}
}

// Add inserts or replaces a file entry.
func (fs *FileSet) Add(f *FileEntry) {
	fs.byIndex[f.MFTIndex] = f
	fs.sorted = nil
}

// Get returns the entry for the given MFT index, if present.
func (fs *FileSet) Get(mftIndex uint64) (*FileEntry, bool) {
	f, ok := fs.byIndex[mftIndex]
	return f, ok
}

// Remove deletes the entry for the given MFT index, if present.
func (fs *FileSet) Remove(mftIndex uint64) {
	delete(fs.byIndex, mftIndex)
	fs.sorted = nil
}

// Len returns the number of entries.
func (fs *FileSet) Len() int { return len(fs.byIndex) }

// All returns every entry in unspecified order.
func (fs *FileSet) All() []*FileEntry {
	out := make([]*FileEntry, 0, len(fs.byIndex))
	for _, f := range fs.byIndex {
		out = append(out, f)
	}
	return out
}

// Finalize builds the sorted-by-MFTIndex array used for O(log n)
// parent lookups during path assembly (spec.md §4.1 Path assembly: "sorts
// file entries by MFT index into an array permitting binary search for
// parent lookups").
func (fs *FileSet) Finalize() {
	fs.sorted = fs.All()
	sort.Slice(fs.sorted, func(i, j int) bool {
		return fs.sorted[i].MFTIndex < fs.sorted[j].MFTIndex
	})
}

// LookupSorted performs a binary search for mftIndex over the array built
// by Finalize, falling back to the map lookup when the sorted array
// hasn't been built.
func (fs *FileSet) LookupSorted(mftIndex uint64) (*FileEntry, bool) {
	if fs.sorted == nil {
		return fs.Get(mftIndex)
	}
	i := sort.Search(len(fs.sorted), func(i int) bool {
		return fs.sorted[i].MFTIndex >= mftIndex
	})
	if i < len(fs.sorted) && fs.sorted[i].MFTIndex == mftIndex {
		return fs.sorted[i], true
	}
	return nil, false
}
