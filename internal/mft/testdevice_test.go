package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// testDevice is a minimal hostio.BlockDevice backed by separate boot-sector
// bytes and a sparse map of MFT records, used in place of hostio.MockDevice
// so boot-sector bytes and record bytes never alias the same offsets the
// way a single flat byte slice addressed by idx*recordSize would.
type testDevice struct {
	boot       []byte
	records    map[uint64][]byte
	recordSize uint32
	failReads  map[uint64]int
}

func newTestDevice(boot []byte, recordSize uint32) *testDevice {
	return &testDevice{
		boot:       boot,
		records:    make(map[uint64][]byte),
		recordSize: recordSize,
		failReads:  make(map[uint64]int),
	}
}

func (d *testDevice) putRecord(idx uint64, data []byte) {
	d.records[idx] = data
}

// failNext arranges for the next n reads of record idx to fail.
func (d *testDevice) failNext(idx uint64, n int) {
	d.failReads[idx] = n
}

func (d *testDevice) ReadBlock(off int64, n int) ([]byte, error) {
	if off == 0 && n == len(d.boot) {
		out := make([]byte, n)
		copy(out, d.boot)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported ReadBlock(%d,%d)", off, n)
}

func (d *testDevice) ReadBitmapChunk(startLCN uint64) ([]byte, uint64, bool, error) {
	return nil, 0, false, nil
}

func (d *testDevice) ReadMFTRecord(idx uint64, recordSize uint32) ([]byte, error) {
	if n, ok := d.failReads[idx]; ok && n > 0 {
		d.failReads[idx] = n - 1
		return nil, fmt.Errorf("simulated I/O failure reading record %d", idx)
	}
	if rec, ok := d.records[idx]; ok {
		return rec, nil
	}
	return make([]byte, recordSize), nil
}

func (d *testDevice) Info() hostio.VolumeInfo {
	return hostio.VolumeInfo{}
}

func (d *testDevice) Close() error { return nil }

var _ hostio.BlockDevice = (*testDevice)(nil)

// --- record / attribute builders -------------------------------------------------

func buildBootSector(bytesPerSector uint16, sectorsPerCluster uint8, totalSectors, mftStartLCN uint64, recordSizeExponent int8) []byte {
	b := make([]byte, ntfstypes.BootSectorSize)
	binary.LittleEndian.PutUint16(b[11:13], bytesPerSector)
	b[13] = sectorsPerCluster
	binary.LittleEndian.PutUint64(b[40:48], totalSectors)
	binary.LittleEndian.PutUint64(b[48:56], mftStartLCN)
	b[64] = byte(recordSizeExponent)
	return b
}

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

// buildRunlistSingle encodes one (vcn=0, lcn, length) run using one-byte
// count and offset fields; only valid for lcn, length < 0x80.
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

func buildAttrListEntry(attrType uint32, mftIndex uint64) []byte {
	buf := make([]byte, 26)
	binary.LittleEndian.PutUint32(buf[0:4], attrType)
	binary.LittleEndian.PutUint16(buf[4:6], 26)
	binary.LittleEndian.PutUint64(buf[8:16], mftIndex)
	return buf
}

const fatAttrDirectory = 0x10
