package ntfstypes

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// BootSectorSize is the fixed size of an NTFS boot sector.
const BootSectorSize = 512

// BootSector is the decoded BIOS Parameter Block plus the NTFS extension
// fields needed to bootstrap the scanner (spec.md §4.1 Bootstrap).
type BootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	MFTStartLCN       uint64
	MFTMirrStartLCN   uint64
	// RecordSize is the decoded MFT file-record size in bytes. The on-disk
	// field is a signed byte: a positive value counts clusters, so record
	// size = value * cluster size (rare); a value <= 0 is an exponent, so
	// record size = 1 << -value.
	RecordSize   uint32
	TotalSectors uint64
	VolumeUUID   uuid.UUID
}

// ClusterSize returns the cluster size in bytes.
func (b *BootSector) ClusterSize() uint32 {
	return uint32(b.BytesPerSector) * uint32(b.SectorsPerCluster)
}

// TotalClusters returns the total number of clusters on the volume.
func (b *BootSector) TotalClusters() uint64 {
	cs := uint64(b.ClusterSize())
	if cs == 0 {
		return 0
	}
	return (b.TotalSectors * uint64(b.BytesPerSector)) / cs
}

// ParseBootSector decodes a raw 512-byte NTFS boot sector, following the
// teacher's field-by-field binary.ByteOrder decode with an explicit running
// offset (grounded on container.ReadNXSuperblock).
func ParseBootSector(data []byte) (*BootSector, error) {
	if len(data) < BootSectorSize {
		return nil, fmt.Errorf("boot sector too short: %d bytes, need %d", len(data), BootSectorSize)
	}

	order := binary.LittleEndian
	bs := &BootSector{}

	bs.BytesPerSector = order.Uint16(data[11:13])
	bs.SectorsPerCluster = data[13]
	bs.TotalSectors = order.Uint64(data[40:48])
	bs.MFTStartLCN = order.Uint64(data[48:56])
	bs.MFTMirrStartLCN = order.Uint64(data[56:64])

	recordSizeRaw := int8(data[64])
	if recordSizeRaw > 0 {
		bs.RecordSize = uint32(recordSizeRaw) * bs.ClusterSize()
	} else {
		bs.RecordSize = 1 << uint32(-recordSizeRaw)
	}

	copy(bs.VolumeUUID[:], data[72:88])

	if bs.BytesPerSector == 0 || bs.SectorsPerCluster == 0 {
		return nil, fmt.Errorf("invalid boot sector: bytes-per-sector=%d sectors-per-cluster=%d",
			bs.BytesPerSector, bs.SectorsPerCluster)
	}

	return bs, nil
}
