package walker

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

func TestWalkBuildsFileEntriesWithExtents(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/a.txt": &fstest.MapFile{Data: []byte("hello")},
		"dir/b.txt": &fstest.MapFile{Data: []byte("world!!")},
	}
	extents := hostio.NewMockExtentQuery()
	extents.Runs["dir/a.txt"] = []hostio.ExtentRun{{VCN: 0, LCN: 100, Length: 1}}
	extents.Runs["dir/b.txt"] = []hostio.ExtentRun{
		{VCN: 0, LCN: 200, Length: 1},
		{VCN: 1, LCN: 300, Length: 1},
	}

	w := New(fsys, extents)
	result, err := w.Walk(context.Background(), ".", Options{Recursive: true})
	require.NoError(t, err)

	var a, b bool
	for _, f := range result.All() {
		switch f.Path {
		case "dir/a.txt":
			a = true
			require.Len(t, f.Streams, 1)
			require.Equal(t, uint64(1), f.Streams[0].ClusterCount())
		case "dir/b.txt":
			b = true
			require.Len(t, f.Streams, 1)
			require.Equal(t, 2, f.Streams[0].FragmentCount())
		}
	}
	require.True(t, a)
	require.True(t, b)
}

func TestWalkNonRecursiveStopsAtTopLevel(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/sub/c.txt": &fstest.MapFile{Data: []byte("x")},
		"top.txt":       &fstest.MapFile{Data: []byte("y")},
	}
	extents := hostio.NewMockExtentQuery()
	extents.Runs["top.txt"] = []hostio.ExtentRun{{VCN: 0, LCN: 1, Length: 1}}

	w := New(fsys, extents)
	result, err := w.Walk(context.Background(), ".", Options{Recursive: false})
	require.NoError(t, err)

	for _, f := range result.All() {
		require.NotEqual(t, "dir/sub/c.txt", f.Path)
	}
}

func TestWalkDirectoryFlagged(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/a.txt": &fstest.MapFile{Data: []byte("x")},
	}
	w := New(fsys, hostio.NewMockExtentQuery())
	result, err := w.Walk(context.Background(), ".", Options{Recursive: true})
	require.NoError(t, err)

	found := false
	for _, f := range result.All() {
		if f.Path == "dir" {
			found = true
			require.NotZero(t, f.Flags&ntfstypes.FileFlagDirectory)
		}
	}
	require.True(t, found)
}
