package ntfstypes

import (
	"encoding/binary"
	"fmt"
)

// FileRecordMagic is the four-byte header signature of an in-use MFT
// record ("FILE").
var FileRecordMagic = [4]byte{'F', 'I', 'L', 'E'}

// Record in-use flag, tested against the record header's Flags field.
const RecordInUse uint16 = 0x0001

// RecordHeaderSize is the fixed portion of an MFT record header preceding
// the first attribute.
const RecordHeaderSize = 48

// RecordHeader is the fixed-size leading portion of an MFT file record.
type RecordHeader struct {
	Signature      [4]byte
	Flags          uint16
	BytesInUse     uint32
	BytesAllocated uint32
	BaseRecord     uint64 // low 48 bits are the base MFT index; 0 if this record is itself a base
	NextAttrID     uint16
}

// ParseRecordHeader decodes the fixed header of one MFT record.
func ParseRecordHeader(data []byte) (*RecordHeader, error) {
	if len(data) < RecordHeaderSize {
		return nil, fmt.Errorf("record header too short: %d bytes", len(data))
	}
	order := binary.LittleEndian
	h := &RecordHeader{}
	copy(h.Signature[:], data[0:4])
	h.Flags = order.Uint16(data[22:24])
	h.BytesInUse = order.Uint32(data[24:28])
	h.BytesAllocated = order.Uint32(data[28:32])
	h.BaseRecord = order.Uint64(data[32:40])
	h.NextAttrID = order.Uint16(data[40:42])
	return h, nil
}

// IsValid reports whether the record header looks like a usable, in-use
// FILE record that fits within recordSize, per spec.md §4.1 ("A record is
// ignored when its header type signature is not FILE, its in-use flag is
// clear, or its declared byte-count exceeds the record size").
func (h *RecordHeader) IsValid(recordSize uint32) bool {
	if h.Signature != FileRecordMagic {
		return false
	}
	if h.Flags&RecordInUse == 0 {
		return false
	}
	if h.BytesInUse > recordSize {
		return false
	}
	return true
}

// BaseMFTIndex returns the low 48 bits of BaseRecord, the base record index
// this record's attribute list (if any) points back from.
func (h *RecordHeader) BaseMFTIndex() uint64 {
	return h.BaseRecord & 0x0000FFFFFFFFFFFF
}

// Resident attribute header fields (minimum size).
const ResidentHeaderSize = 24

// NonResidentHeaderSize is the non-resident header size minus the optional
// trailing CompressedSize field (spec.md §4.1 attribute validation formula:
// "non-resident >= non-resident-header minus CompressedSize").
const NonResidentHeaderSize = 64

// AttrHeader is the common leading portion of every attribute, resident or
// non-resident.
type AttrHeader struct {
	Type       uint32
	Length     uint32
	NonResident bool
	NameLength  uint8
	NameOffset  uint16
	Flags       uint16
	AttrID      uint16

	// Resident-only.
	ValueLength uint32
	ValueOffset uint16

	// Non-resident-only.
	LowVCN        uint64
	HighVCN       uint64
	RunlistOffset uint16
	AllocatedSize uint64
	DataSize      uint64
	InitSize      uint64
}

// ParseAttrHeader decodes one attribute header starting at the beginning of
// data. It validates that the declared size fits the supplied bound
// (typically bytes remaining in the record), per spec.md §4.1 Attribute
// enumeration.
func ParseAttrHeader(data []byte) (*AttrHeader, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("attribute header too short: %d bytes", len(data))
	}
	order := binary.LittleEndian
	h := &AttrHeader{}
	h.Type = order.Uint32(data[0:4])
	h.Length = order.Uint32(data[4:8])
	h.NonResident = data[8] != 0
	h.NameLength = data[9]
	h.NameOffset = order.Uint16(data[10:12])
	h.Flags = order.Uint16(data[12:14])
	h.AttrID = order.Uint16(data[14:16])

	if !h.NonResident {
		if len(data) < ResidentHeaderSize {
			return nil, fmt.Errorf("resident attribute header too short: %d bytes", len(data))
		}
		h.ValueLength = order.Uint32(data[16:20])
		h.ValueOffset = order.Uint16(data[20:22])
		return h, nil
	}

	if len(data) < NonResidentHeaderSize {
		return nil, fmt.Errorf("non-resident attribute header too short: %d bytes", len(data))
	}
	h.LowVCN = order.Uint64(data[16:24])
	h.HighVCN = order.Uint64(data[24:32])
	h.RunlistOffset = order.Uint16(data[32:34])
	h.AllocatedSize = order.Uint64(data[40:48])
	h.DataSize = order.Uint64(data[48:56])
	h.InitSize = order.Uint64(data[56:64])
	return h, nil
}

// IsEndMarker reports whether the bytes at the current offset signal the
// end of the attribute list for this record (spec.md §4.1: "stop on the end
// sentinel (0xffffffff or type 0x0) or a length of zero").
func IsEndMarker(attrType uint32, length uint32) bool {
	return attrType == AttrEndMarker || attrType == 0 || length == 0
}

// Name returns the attribute's name, if any, decoded as UTF-16LE and
// converted to UTF-8 (spec.md §9: "one conversion pair used throughout;
// file names stored internally as UTF-8").
func (h *AttrHeader) Name(record []byte, attrOffset int) string {
	if h.NameLength == 0 {
		return ""
	}
	start := attrOffset + int(h.NameOffset)
	end := start + int(h.NameLength)*2
	if end > len(record) || start < 0 || start > end {
		return ""
	}
	return DecodeUTF16LE(record[start:end])
}
