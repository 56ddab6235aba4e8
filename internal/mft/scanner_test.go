package mft

import (
	"context"
	"testing"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecordSize = 1024

func newBasicVolume(totalRecords uint64) *testDevice {
	boot := buildBootSector(512, 1, totalRecords*8, 0, -10)
	dev := newTestDevice(boot, testRecordSize)

	mftData := buildNonResidentAttr(ntfstypes.AttrData, 0, "",
		buildRunlistSingle(0, totalRecords), totalRecords*testRecordSize)
	dev.putRecord(ntfstypes.MFTRecordMFT, buildRecord(testRecordSize, 0, mftData))

	rootStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "",
		buildStandardInfoValue(100, 100, 100, fatAttrDirectory))
	rootName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, ".", ntfstypes.FileNameNamespaceWin32))
	dev.putRecord(ntfstypes.MFTRecordRoot, buildRecord(testRecordSize, 0, rootStd, rootName))

	return dev
}

func TestScanBasicTree(t *testing.T) {
	dev := newBasicVolume(20)

	fileStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "",
		buildStandardInfoValue(200, 200, 200, 0))
	fileName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, "hello.txt", ntfstypes.FileNameNamespaceWin32))
	fileData := buildResidentAttr(ntfstypes.AttrData, 2, "", []byte("hi"))
	dev.putRecord(16, buildRecord(testRecordSize, 0, fileStd, fileName, fileData))

	scanner := New(dev)
	result, err := scanner.Scan(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrorCount)

	root, ok := result.Files.Get(ntfstypes.MFTRecordRoot)
	require.True(t, ok)
	assert.Equal(t, "\\", root.Path)
	assert.True(t, root.IsDirectory())

	f, ok := result.Files.Get(16)
	require.True(t, ok)
	assert.Equal(t, "hello.txt", f.Name)
	assert.Equal(t, "\\hello.txt", f.Path)
	assert.EqualValues(t, 2, f.Size)
	assert.EqualValues(t, 200, f.CreationTime)
}

func TestScanPartialScanWithUnreadableRecord(t *testing.T) {
	dev := newBasicVolume(20)

	aStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "", buildStandardInfoValue(1, 1, 1, 0))
	aName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, "a.txt", ntfstypes.FileNameNamespaceWin32))
	dev.putRecord(16, buildRecord(testRecordSize, 0, aStd, aName))

	bStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "", buildStandardInfoValue(2, 2, 2, 0))
	bName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, "b.txt", ntfstypes.FileNameNamespaceWin32))
	dev.putRecord(17, buildRecord(testRecordSize, 0, bStd, bName))

	// Record 17 fails both the initial read and the single retry, so it's a
	// permanent I/O error rather than a transient one.
	dev.failNext(17, 2)

	scanner := New(dev)

	_, err := scanner.Scan(context.Background(), Options{AllowPartialScan: false})
	require.Error(t, err)

	dev.failNext(17, 2)
	result, err := scanner.Scan(context.Background(), Options{AllowPartialScan: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ErrorCount)

	_, ok := result.Files.Get(16)
	assert.True(t, ok)
	_, ok = result.Files.Get(17)
	assert.False(t, ok)
}

func TestScanAttributeListTraversal(t *testing.T) {
	dev := newBasicVolume(20)

	baseStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "", buildStandardInfoValue(5, 5, 5, 0))
	baseName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, "big.dat", ntfstypes.FileNameNamespaceWin32))
	attrList := buildResidentAttr(ntfstypes.AttrAttributeList, 2, "",
		append(buildAttrListEntry(ntfstypes.AttrData, 16), buildAttrListEntry(ntfstypes.AttrData, 18)...))
	dev.putRecord(16, buildRecord(testRecordSize, 0, baseStd, baseName, attrList))

	childData := buildNonResidentAttr(ntfstypes.AttrData, 0, "alt", buildRunlistSingle(40, 7), 7*512)
	dev.putRecord(18, buildRecord(testRecordSize, 16, childData))

	scanner := New(dev)
	result, err := scanner.Scan(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrorCount)

	base, ok := result.Files.Get(16)
	require.True(t, ok)
	stream := base.StreamByName("alt")
	require.NotNil(t, stream)
	require.Len(t, stream.Extents, 1)
	assert.EqualValues(t, 40, stream.Extents[0].LCN)
	assert.EqualValues(t, 7, stream.Extents[0].Length)
}
