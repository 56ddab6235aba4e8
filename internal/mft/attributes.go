package mft

import (
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
)

// attrSlot pairs a decoded attribute header with the byte offset in the
// record where it begins (so callers can slice out names, resident values,
// and runlists relative to that offset).
type attrSlot struct {
	header *ntfstypes.AttrHeader
	offset int
}

// enumerateAttributes walks a record's attribute area by offset, validating
// each attribute per spec.md §4.1 Attribute enumeration: minimum size,
// that the body lies entirely within bytes-in-use and within one record
// size, and that the type is recognized (unknown non-data types are
// skipped; unknown data-bearing types must not terminate the scan — in
// practice this scanner recognizes every standard attribute type, so
// "unknown" here just means "not handled by pass A/B," never a scan
// abort).
func enumerateAttributes(record []byte, header *ntfstypes.RecordHeader) ([]attrSlot, error) {
	var slots []attrSlot
	offset := ntfstypes.RecordHeaderSize

	for {
		if offset+4 > len(record) || uint32(offset) >= header.BytesInUse {
			break
		}
		// Peek the type and length fields to detect the end sentinel
		// before attempting a full header parse.
		typ := leUint32(record[offset : offset+4])
		if typ == ntfstypes.AttrEndMarker || typ == 0 {
			break
		}

		if offset+8 > len(record) {
			return nil, fmt.Errorf("attribute header truncated at offset %d", offset)
		}
		length := leUint32(record[offset+4 : offset+8])
		if ntfstypes.IsEndMarker(typ, length) {
			break
		}
		if length == 0 || offset+int(length) > len(record) || uint32(offset)+length > header.BytesInUse {
			return nil, fmt.Errorf("attribute at offset %d has invalid length %d", offset, length)
		}

		h, err := ntfstypes.ParseAttrHeader(record[offset : offset+int(length)])
		if err != nil {
			return nil, fmt.Errorf("attribute at offset %d: %w", offset, err)
		}
		if !h.NonResident && uint32(offset)+h.ValueOffset+h.ValueLength > uint32(offset)+length {
			return nil, fmt.Errorf("resident attribute at offset %d overruns its own bounds", offset)
		}

		slots = append(slots, attrSlot{header: h, offset: offset})
		offset += int(length)
	}

	return slots, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// residentValue returns the resident value bytes of an attribute.
func residentValue(record []byte, slot attrSlot) []byte {
	start := slot.offset + int(slot.header.ValueOffset)
	end := start + int(slot.header.ValueLength)
	if start < 0 || end > len(record) || start > end {
		return nil
	}
	return record[start:end]
}

// runlistBytes returns the raw mapping-pairs bytes of a non-resident
// attribute.
func runlistBytes(record []byte, slot attrSlot) []byte {
	start := slot.offset + int(slot.header.RunlistOffset)
	end := slot.offset + int(slot.header.Length)
	if start < 0 || end > len(record) || start > end {
		return nil
	}
	return record[start:end]
}

// streamNameFor normalizes an attribute's name to the internal stream-name
// convention (spec.md §4.1 Stream naming): unnamed $DATA is the primary
// stream; $I30 on a directory's $INDEX_ALLOCATION is normalized to "".
func streamNameFor(record []byte, slot attrSlot) string {
	name := slot.header.Name(record, slot.offset)
	if slot.header.Type == ntfstypes.AttrIndexAllocation && name == "$I30" {
		return ""
	}
	return name
}
