// Package fsimage is the concrete host boundary (spec.md §6) for the CLI:
// a hostio.BlockDevice and hostio.MoveExtentPrimitive backed by an
// os.File holding a raw NTFS volume or disk image. It is the only place
// in this module that touches an *os.File directly, grounded on the
// teacher's ContainerReader (internal/services/container_reader.go):
// open-stat-read-at, a block cache guarded by a mutex, and small getters
// over the parsed superblock — adapted here from APFS container blocks to
// NTFS clusters and MFT records.
package fsimage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// Device is a file-backed hostio.BlockDevice/MoveExtentPrimitive pair over
// a raw volume image. Moves are performed by reading the source clusters
// and writing them to the destination offset, then leaving the stream's
// runlist update to the core engine's Mover (spec.md §4.4: the host
// primitive only copies bytes and reports success or failure, it never
// forms a movability or state-machine judgment itself).
type Device struct {
	file *os.File
	boot *ntfstypes.BootSector
	info hostio.VolumeInfo

	// bitmapRuns/bitmapByteLen locate the $Bitmap file's physical runs,
	// read once at Open time from MFT record 6 (spec.md §4.2, §9: "the
	// bitmap lives at a filesystem-reported location like any other
	// stream"). $Bitmap is an ordinary non-resident stream and may itself
	// be fragmented across several runs.
	bitmapRuns    []ntfstypes.RawRun
	bitmapByteLen uint64

	mu         sync.RWMutex
	blockCache map[int64][]byte
}

// Open reads the boot sector and the $Bitmap record of a raw NTFS image at
// path and returns a ready Device.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening volume image: %w", err)
	}

	d := &Device{file: f, blockCache: make(map[int64][]byte)}

	bootRaw, err := d.readAt(0, ntfstypes.BootSectorSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading boot sector: %w", err)
	}
	boot, err := ntfstypes.ParseBootSector(bootRaw)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing boot sector: %w", err)
	}
	d.boot = boot

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat volume image: %w", err)
	}
	clusterSize := boot.ClusterSize()
	if clusterSize == 0 {
		f.Close()
		return nil, fmt.Errorf("invalid cluster size")
	}

	d.info = hostio.VolumeInfo{
		ClusterSize:   clusterSize,
		SectorSize:    uint32(boot.BytesPerSector),
		TotalClusters: uint64(stat.Size()) / uint64(clusterSize),
	}

	if err := d.locateBitmap(); err != nil {
		f.Close()
		return nil, fmt.Errorf("locating $Bitmap: %w", err)
	}

	return d, nil
}

// locateBitmap decodes MFT record 6's non-resident $DATA runlist directly
// (without the full scanner) to find where the cluster bitmap lives on
// disk, per spec.md §9's "filesystem-reported location" note.
func (d *Device) locateBitmap() error {
	record, err := d.ReadMFTRecord(ntfstypes.MFTRecordBitmap, d.boot.RecordSize)
	if err != nil {
		return err
	}
	header, err := ntfstypes.ParseRecordHeader(record)
	if err != nil {
		return err
	}
	if !header.IsValid(d.boot.RecordSize) {
		return fmt.Errorf("MFT record %d is not a valid $Bitmap record", ntfstypes.MFTRecordBitmap)
	}

	offset := ntfstypes.RecordHeaderSize
	for offset+8 <= len(record) {
		attrType := leUint32(record[offset : offset+4])
		length := leUint32(record[offset+4 : offset+8])
		if ntfstypes.IsEndMarker(attrType, length) {
			break
		}
		if offset+int(length) > len(record) {
			break
		}

		if attrType == ntfstypes.AttrData {
			ah, err := ntfstypes.ParseAttrHeader(record[offset : offset+int(length)])
			if err == nil && ah.NonResident {
				runs, err := ntfstypes.DecodeRunlist(record[offset+int(ah.RunlistOffset):offset+int(length)], ah.LowVCN)
				if err == nil && len(runs) > 0 {
					d.bitmapRuns = runs
					d.bitmapByteLen = ah.DataSize
					return nil
				}
			}
		}
		offset += int(length)
	}
	return fmt.Errorf("no non-resident $DATA run found in $Bitmap record")
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (d *Device) readAt(off int64, n int) ([]byte, error) {
	d.mu.RLock()
	if cached, ok := d.blockCache[off]; ok && len(cached) == n {
		out := append([]byte(nil), cached...)
		d.mu.RUnlock()
		return out, nil
	}
	d.mu.RUnlock()

	buf := make([]byte, n)
	read, err := d.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if read < n {
		return nil, fmt.Errorf("short read at offset %d: got %d, want %d", off, read, n)
	}

	d.mu.Lock()
	d.blockCache[off] = append([]byte(nil), buf...)
	d.mu.Unlock()

	return buf, nil
}

// ReadBlock implements hostio.BlockDevice.
func (d *Device) ReadBlock(off int64, n int) ([]byte, error) {
	return d.readAt(off, n)
}

// bitmapRunForByte translates a byte offset within the $Bitmap stream into
// an on-disk byte offset, returning how many further bytes are available
// before the owning run ends (spec.md §9: $Bitmap is an ordinary stream and
// may be fragmented like any other, so a chunk read must not cross a run
// boundary onto an unrelated on-disk location).
func (d *Device) bitmapRunForByte(byteOffset uint64) (onDisk int64, available uint64, ok bool) {
	clusterSize := uint64(d.info.ClusterSize)
	for _, r := range d.bitmapRuns {
		if r.LCN == ntfstypes.SentinelLCN {
			continue
		}
		runStart := r.VCN * clusterSize
		runEnd := runStart + r.Length*clusterSize
		if byteOffset >= runStart && byteOffset < runEnd {
			within := byteOffset - runStart
			return int64(r.LCN)*int64(clusterSize) + int64(within), runEnd - byteOffset, true
		}
	}
	return 0, 0, false
}

// ReadBitmapChunk implements hostio.BlockDevice, reading directly from the
// $Bitmap stream's on-disk location(s) found at Open time.
func (d *Device) ReadBitmapChunk(startLCN uint64) ([]byte, uint64, bool, error) {
	const chunkClusters = 1
	byteOffset := startLCN / 8
	if byteOffset >= d.bitmapByteLen {
		return nil, 0, false, nil
	}
	chunkBytes := uint64(d.info.ClusterSize) * chunkClusters
	if byteOffset+chunkBytes > d.bitmapByteLen {
		chunkBytes = d.bitmapByteLen - byteOffset
	}

	off, available, ok := d.bitmapRunForByte(byteOffset)
	if !ok {
		return nil, 0, false, fmt.Errorf("no $Bitmap run covers byte offset %d", byteOffset)
	}
	if chunkBytes > available {
		chunkBytes = available
	}

	chunk, err := d.readAt(off, int(chunkBytes))
	if err != nil {
		return nil, 0, false, err
	}
	return chunk, startLCN + chunkBytes*8, true, nil
}

// ReadMFTRecord implements hostio.BlockDevice. The MFT itself starts at
// MFTStartLCN; record indexes are offsets within it.
func (d *Device) ReadMFTRecord(idx uint64, recordSize uint32) ([]byte, error) {
	mftBase := d.boot.MFTStartLCN * uint64(d.info.ClusterSize)
	off := int64(mftBase) + int64(idx)*int64(recordSize)
	return d.readAt(off, int(recordSize))
}

// Info implements hostio.BlockDevice.
func (d *Device) Info() hostio.VolumeInfo { return d.info }

// Close implements hostio.BlockDevice.
func (d *Device) Close() error { return d.file.Close() }

// MoveExtent implements hostio.MoveExtentPrimitive by copying count
// clusters from SourceLCN to TargetLCN. It is not atomic with respect to a
// concurrent crash (spec.md §4.4 names the host primitive, not this
// module, as responsible for atomicity guarantees on a real filesystem
// driver; this reference implementation is for testing against raw
// images, not production NTFS volumes).
func (d *Device) MoveExtent(ctx context.Context, req hostio.MoveExtentRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	clusterSize := int64(d.info.ClusterSize)
	n := int(req.Count) * int(clusterSize)
	srcOff := int64(req.SourceLCN) * clusterSize
	dstOff := int64(req.TargetLCN) * clusterSize

	buf, err := d.readAt(srcOff, n)
	if err != nil {
		return fmt.Errorf("reading source clusters: %w", err)
	}
	if _, err := d.file.WriteAt(buf, dstOff); err != nil {
		return fmt.Errorf("writing destination clusters: %w", err)
	}

	d.mu.Lock()
	d.evictCacheRangeLocked(dstOff, int64(n))
	d.mu.Unlock()

	return nil
}

// evictCacheRangeLocked drops every cached block whose byte range overlaps
// [off, off+n), not just one keyed at exactly off: readAt's cache keys are
// arbitrary (offset, length) pairs from callers reading at different
// granularities (MFT records, bitmap chunks, whole clusters), any of which
// may overlap a move's destination range. Caller holds d.mu.
func (d *Device) evictCacheRangeLocked(off, n int64) {
	end := off + n
	for k, v := range d.blockCache {
		if k < end && k+int64(len(v)) > off {
			delete(d.blockCache, k)
		}
	}
}

var (
	_ hostio.BlockDevice         = (*Device)(nil)
	_ hostio.MoveExtentPrimitive = (*Device)(nil)
)
