package job

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// jobTestDevice is a minimal hostio.BlockDevice with separately stored
// boot-sector bytes, MFT records, and a cluster bitmap, grounded on
// internal/mft's testDevice (duplicated here, trimmed to what an
// end-to-end job test needs, since unexported test helpers don't cross
// package boundaries).
type jobTestDevice struct {
	boot       []byte
	records    map[uint64][]byte
	recordSize uint32
	bitmap     []byte
	info       hostio.VolumeInfo
}

func newJobTestDevice(totalRecords, totalClusters uint64, recordSize uint32) *jobTestDevice {
	boot := make([]byte, ntfstypes.BootSectorSize)
	binary.LittleEndian.PutUint16(boot[11:13], 512)
	boot[13] = 1
	binary.LittleEndian.PutUint64(boot[40:48], totalClusters)
	binary.LittleEndian.PutUint64(boot[48:56], 0)
	boot[64] = byte(int8(-10)) // record size exponent -> 1<<10 = 1024

	dev := &jobTestDevice{
		boot:       boot,
		records:    make(map[uint64][]byte),
		recordSize: recordSize,
		bitmap:     make([]byte, totalClusters),
		info: hostio.VolumeInfo{
			ClusterSize:   4096,
			SectorSize:    512,
			TotalClusters: totalClusters,
		},
	}

	mftData := buildNonResidentAttr(ntfstypes.AttrData, 0, "",
		buildRunlistSingle(0, totalRecords), totalRecords*uint64(recordSize))
	dev.putRecord(ntfstypes.MFTRecordMFT, buildRecord(int(recordSize), 0, mftData))

	rootStd := buildResidentAttr(ntfstypes.AttrStandardInformation, 0, "",
		buildStandardInfoValue(1, 1, 1, 0x10))
	rootName := buildResidentAttr(ntfstypes.AttrFileName, 1, "",
		buildFileNameValue(ntfstypes.MFTRecordRoot, ".", ntfstypes.FileNameNamespaceWin32))
	dev.putRecord(ntfstypes.MFTRecordRoot, buildRecord(int(recordSize), 0, rootStd, rootName))

	return dev
}

func (d *jobTestDevice) putRecord(idx uint64, data []byte) {
	d.records[idx] = data
}

// markUsed marks clusters [lcn, lcn+length) as allocated in the bitmap,
// leaving everything else free.
func (d *jobTestDevice) markUsed(lcn, length uint64) {
	for i := lcn; i < lcn+length && i < uint64(len(d.bitmap)); i++ {
		d.bitmap[i] = 1
	}
}

func (d *jobTestDevice) ReadBlock(off int64, n int) ([]byte, error) {
	if off == 0 && n == len(d.boot) {
		out := make([]byte, n)
		copy(out, d.boot)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported ReadBlock(%d,%d)", off, n)
}

func (d *jobTestDevice) ReadBitmapChunk(startLCN uint64) ([]byte, uint64, bool, error) {
	const chunkClusters = 4096 * 8
	if startLCN >= uint64(len(d.bitmap)) {
		return nil, 0, false, nil
	}
	end := startLCN + chunkClusters
	if end > uint64(len(d.bitmap)) {
		end = uint64(len(d.bitmap))
	}
	// Pack one bit per cluster, as the volume's $Bitmap stores it.
	chunk := make([]byte, (end-startLCN+7)/8)
	for lcn := startLCN; lcn < end; lcn++ {
		if d.bitmap[lcn] != 0 {
			off := lcn - startLCN
			chunk[off/8] |= 1 << (off % 8)
		}
	}
	return chunk, end, true, nil
}

func (d *jobTestDevice) ReadMFTRecord(idx uint64, recordSize uint32) ([]byte, error) {
	if rec, ok := d.records[idx]; ok {
		return rec, nil
	}
	return make([]byte, recordSize), nil
}

func (d *jobTestDevice) Info() hostio.VolumeInfo { return d.info }

func (d *jobTestDevice) Close() error { return nil }

var _ hostio.BlockDevice = (*jobTestDevice)(nil)

func buildRecord(recordSize int, baseRecord uint64, attrs ...[]byte) []byte {
	rec := make([]byte, recordSize)
	copy(rec[0:4], []byte("FILE"))
	binary.LittleEndian.PutUint16(rec[22:24], ntfstypes.RecordInUse)
	binary.LittleEndian.PutUint64(rec[32:40], baseRecord)
	binary.LittleEndian.PutUint16(rec[40:42], uint16(len(attrs)))

	offset := ntfstypes.RecordHeaderSize
	for _, a := range attrs {
		copy(rec[offset:offset+len(a)], a)
		offset += len(a)
	}
	binary.LittleEndian.PutUint32(rec[offset:offset+4], ntfstypes.AttrEndMarker)
	offset += 4

	binary.LittleEndian.PutUint32(rec[24:28], uint32(offset))
	binary.LittleEndian.PutUint32(rec[28:32], uint32(recordSize))
	return rec
}

func buildResidentAttr(attrType uint32, attrID uint16, name string, value []byte) []byte {
	nameBytes := ntfstypes.EncodeUTF16LE(name)
	const headerLen = 24
	nameOffset := headerLen
	valueOffset := nameOffset + len(nameBytes)
	total := valueOffset + len(value)
	padded := (total + 7) / 8 * 8

	buf := make([]byte, padded)
	binary.LittleEndian.PutUint32(buf[0:4], attrType)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(padded))
	buf[8] = 0
	buf[9] = byte(len(nameBytes) / 2)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(nameOffset))
	binary.LittleEndian.PutUint16(buf[14:16], attrID)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(value)))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(valueOffset))
	copy(buf[nameOffset:nameOffset+len(nameBytes)], nameBytes)
	copy(buf[valueOffset:valueOffset+len(value)], value)
	return buf
}

func buildNonResidentAttr(attrType uint32, attrID uint16, name string, runlist []byte, dataSize uint64) []byte {
	nameBytes := ntfstypes.EncodeUTF16LE(name)
	const headerLen = 64
	nameOffset := headerLen
	runlistOffset := nameOffset + len(nameBytes)
	total := runlistOffset + len(runlist)
	padded := (total + 7) / 8 * 8

	buf := make([]byte, padded)
	binary.LittleEndian.PutUint32(buf[0:4], attrType)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(padded))
	buf[8] = 1
	buf[9] = byte(len(nameBytes) / 2)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(nameOffset))
	binary.LittleEndian.PutUint16(buf[14:16], attrID)
	binary.LittleEndian.PutUint16(buf[32:34], uint16(runlistOffset))
	binary.LittleEndian.PutUint64(buf[40:48], dataSize)
	binary.LittleEndian.PutUint64(buf[48:56], dataSize)
	binary.LittleEndian.PutUint64(buf[56:64], dataSize)
	copy(buf[nameOffset:nameOffset+len(nameBytes)], nameBytes)
	copy(buf[runlistOffset:runlistOffset+len(runlist)], runlist)
	return buf
}

// buildRunlistTwoRuns encodes two one-byte runs: (vcn=0, lcn=lcn1, len1)
// then (vcn=len1, lcn delta to lcn2, len2).
func buildRunlistTwoRuns(lcn1, len1, lcn2, len2 uint64) []byte {
	out := []byte{0x11, byte(len1), byte(lcn1)}
	delta := int64(lcn2) - int64(lcn1)
	out = append(out, 0x11, byte(len2), byte(int8(delta)))
	return out
}

func buildRunlistSingle(lcn, length uint64) []byte {
	return []byte{0x11, byte(length), byte(lcn)}
}

func buildStandardInfoValue(ctime, mtime, atime uint64, dosAttrs uint32) []byte {
	v := make([]byte, 36)
	binary.LittleEndian.PutUint64(v[0:8], ctime)
	binary.LittleEndian.PutUint64(v[8:16], mtime)
	binary.LittleEndian.PutUint64(v[24:32], atime)
	binary.LittleEndian.PutUint32(v[32:36], dosAttrs)
	return v
}

func buildFileNameValue(parent uint64, name string, namespace uint8) []byte {
	nameBytes := ntfstypes.EncodeUTF16LE(name)
	v := make([]byte, 66+len(nameBytes))
	binary.LittleEndian.PutUint64(v[0:8], parent)
	v[64] = byte(len([]rune(name)))
	v[65] = namespace
	copy(v[66:], nameBytes)
	return v
}
