package mft

import (
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// AssignPaths walks each entry's parent chain up to the volume root (MFT
// index 5) and sets its absolute Path, using binary search over the
// file set's sorted index for each parent lookup (spec.md §4.1 Path
// assembly). A cycle, other than the root naming itself, breaks assembly
// for that entry, which falls back to its bare name.
func AssignPaths(files *volume.FileSet) {
	root, hasRoot := files.LookupSorted(ntfstypes.MFTRecordRoot)
	if hasRoot {
		root.Path = "\\"
	}

	for _, f := range files.All() {
		if f.MFTIndex == ntfstypes.MFTRecordRoot {
			continue
		}
		f.Path = assemblePath(files, f)
	}
}

// assemblePath builds one entry's path by walking ParentID links toward the
// root, collecting path components from deepest to shallowest. The root's
// own FILE_NAME (which self-references) is never included as a component;
// its Path is fixed to "\" in AssignPaths.
func assemblePath(files *volume.FileSet, f *volume.FileEntry) string {
	var components []string
	visited := map[uint64]bool{f.MFTIndex: true}

	cur := f
	for cur.MFTIndex != ntfstypes.MFTRecordRoot {
		components = append(components, cur.Name)

		parent, ok := files.LookupSorted(cur.ParentID)
		if !ok {
			return f.Name
		}
		if parent.MFTIndex != ntfstypes.MFTRecordRoot && visited[parent.MFTIndex] {
			return f.Name
		}
		visited[parent.MFTIndex] = true
		cur = parent
	}

	path := "\\"
	for i := len(components) - 1; i >= 0; i-- {
		if components[i] == "" {
			continue
		}
		if path != "\\" {
			path += "\\"
		}
		path += components[i]
	}
	return path
}
