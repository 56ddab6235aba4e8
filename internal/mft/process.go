package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// pendingAttrList defers ATTRIBUTE_LIST resolution to pass B (spec.md §4.1:
// "Pass B (attribute lists)... runs only after every base record in the
// current scan has been through pass A").
type pendingAttrList struct {
	baseIndex uint64
	entries   []attrListEntry
}

// attrListEntry is one decoded entry of an ATTRIBUTE_LIST attribute's value.
type attrListEntry struct {
	attrType  uint32
	name      string
	mftIndex  uint64
}

// processBaseRecord runs pass A over a single base MFT record: it resolves
// STANDARD_INFORMATION, the best FILE_NAME, VOLUME_INFORMATION (record 3
// only), REPARSE_POINT, and every non-resident data-bearing attribute's
// extents, and it collects any ATTRIBUTE_LIST attributes for pass B
// (spec.md §4.1 Pass A).
func (s *Scanner) processBaseRecord(idx uint64, data []byte, header *ntfstypes.RecordHeader, boot *ntfstypes.BootSector) (*volume.FileEntry, []pendingAttrList, error) {
	slots, err := enumerateAttributes(data, header)
	if err != nil {
		return nil, nil, err
	}

	entry := &volume.FileEntry{MFTIndex: idx}
	var lists []pendingAttrList
	bestNamespace := -1

	for _, slot := range slots {
		switch slot.header.Type {
		case ntfstypes.AttrStandardInformation:
			applyStandardInformation(entry, residentValue(data, slot))

		case ntfstypes.AttrFileName:
			applyFileName(entry, residentValue(data, slot), &bestNamespace)

		case ntfstypes.AttrVolumeInformation:
			if idx == ntfstypes.MFTRecordVolume {
				applyVolumeInformation(entry, residentValue(data, slot))
			}

		case ntfstypes.AttrReparsePoint:
			entry.Flags |= ntfstypes.FileFlagReparsePoint

		case ntfstypes.AttrAttributeList:
			value := residentOrNonResidentValue(data, slot)
			if value == nil {
				entry.ScanErrors++
				continue
			}
			entries, err := decodeAttributeList(value)
			if err != nil {
				entry.ScanErrors++
				continue
			}
			lists = append(lists, pendingAttrList{baseIndex: idx, entries: entries})

		default:
			if err := attachStreamExtents(entry, data, slot, boot.TotalClusters()); err != nil {
				entry.ScanErrors++
			}
		}
	}

	if entry.Name == "" {
		entry.Name = fmt.Sprintf("$mft_%d", idx)
	}

	return entry, lists, nil
}

// residentOrNonResidentValue returns an attribute's resident value, or (for
// a non-resident ATTRIBUTE_LIST, which NTFS permits when the list itself
// grows large) nil. Non-resident attribute lists are not decoded;
// processBaseRecord counts one as a soft per-record scan error rather than
// a hard failure.
func residentOrNonResidentValue(record []byte, slot attrSlot) []byte {
	if slot.header.NonResident {
		return nil
	}
	return residentValue(record, slot)
}

func applyStandardInformation(entry *volume.FileEntry, v []byte) {
	if len(v) < 32 {
		return
	}
	order := binary.LittleEndian
	entry.CreationTime = order.Uint64(v[0:8])
	entry.ModificationTime = order.Uint64(v[8:16])
	entry.AccessTime = order.Uint64(v[24:32])
	if len(v) >= 36 {
		dosAttrs := order.Uint32(v[32:36])
		const (
			fatReadOnly = 0x0001
			fatHidden   = 0x0002
			fatSystem   = 0x0004
			fatDir      = 0x0010
		)
		if dosAttrs&fatReadOnly != 0 {
			entry.Flags |= ntfstypes.FileFlagReadOnly
		}
		if dosAttrs&fatHidden != 0 {
			entry.Flags |= ntfstypes.FileFlagHidden
		}
		if dosAttrs&fatSystem != 0 {
			entry.Flags |= ntfstypes.FileFlagSystem
		}
		if dosAttrs&fatDir != 0 {
			entry.Flags |= ntfstypes.FileFlagDirectory
		}
	}
}

// applyFileName decodes one FILE_NAME attribute value and, if its namespace
// improves on whatever name is already recorded, updates the entry's name
// and parent (spec.md §4.1 Pass A FILE_NAME handling). bestNamespace holds
// the namespace of the name currently recorded, or -1 before any FILE_NAME
// has been seen.
func applyFileName(entry *volume.FileEntry, v []byte, bestNamespace *int) {
	if len(v) < 66 {
		return
	}
	order := binary.LittleEndian
	parent := order.Uint64(v[0:8]) & 0x0000FFFFFFFFFFFF
	nameLen := int(v[64])
	namespace := v[65]

	nameStart := 66
	nameEnd := nameStart + nameLen*2
	if nameEnd > len(v) {
		return
	}
	name := ntfstypes.DecodeUTF16LE(v[nameStart:nameEnd])

	if *bestNamespace < 0 || ntfstypes.ImprovesOn(namespace, uint8(*bestNamespace)) {
		entry.Name = name
		entry.ParentID = parent
		*bestNamespace = int(namespace)
	}
}

func applyVolumeInformation(entry *volume.FileEntry, v []byte) {
	if len(v) < 9 {
		return
	}
	const dirtyFlag = 0x0001
	flags := binary.LittleEndian.Uint16(v[8:10])
	if flags&dirtyFlag != 0 {
		entry.Flags |= ntfstypes.FileFlagSystem
	}
}

// attachStreamExtents builds or extends a stream from one data-bearing
// attribute (spec.md §4.1: "each non-resident data-bearing attribute
// contributes a stream and its extent runs"). Resident data attributes
// contribute a zero-extent stream whose size still counts for Size.
// totalClusters bounds the runlist's decoded LCNs (spec.md §4.1 Runlist
// decoding: "If the first run has a sentinel LCN, or any decoded LCN >=
// total clusters, the stream is marked as corrupt and its extents are
// dropped"). Streams of $BadClus are exempt from the total-clusters bound.
func attachStreamExtents(entry *volume.FileEntry, record []byte, slot attrSlot, totalClusters uint64) error {
	if slot.header.Type != ntfstypes.AttrData && slot.header.Type != ntfstypes.AttrIndexAllocation {
		return nil
	}

	name := streamNameFor(record, slot)
	stream := entry.StreamByName(name)
	if stream == nil {
		stream = &volume.Stream{FileID: entry.MFTIndex, Name: name}
		entry.Streams = append(entry.Streams, stream)
	}

	if !slot.header.NonResident {
		if slot.header.Type == ntfstypes.AttrData && name == "" {
			entry.Size = uint64(slot.header.ValueLength)
		}
		return nil
	}

	if slot.header.Type == ntfstypes.AttrData && name == "" {
		entry.Size = slot.header.DataSize
	}
	if slot.header.Flags&0x0001 != 0 { // COMPRESSED
		stream.Flags |= ntfstypes.StreamCompressed
	}
	if slot.header.Flags&0x0002 != 0 { // SPARSE
		stream.Flags |= ntfstypes.StreamSparse
	}

	runs, err := ntfstypes.DecodeRunlist(runlistBytes(record, slot), slot.header.LowVCN)
	if err != nil {
		stream.Corrupt = true
		return err
	}
	if len(runs) > 0 && runs[0].LCN == ntfstypes.SentinelLCN {
		stream.Corrupt = true
		stream.Extents = nil
		return fmt.Errorf("stream %d:%s runlist's first run is sparse", entry.MFTIndex, name)
	}
	for _, r := range runs {
		if entry.MFTIndex != ntfstypes.MFTRecordBadClus && r.LCN != ntfstypes.SentinelLCN && r.LCN >= totalClusters {
			stream.Corrupt = true
			stream.Extents = nil
			return fmt.Errorf("stream %d:%s runlist references LCN %d >= total clusters %d", entry.MFTIndex, name, r.LCN, totalClusters)
		}
	}
	for _, r := range runs {
		stream.Extents = append(stream.Extents, volume.Extent{VCN: r.VCN, LCN: r.LCN, Length: r.Length})
	}
	return nil
}

// decodeAttributeList decodes the fixed-format entries of an
// ATTRIBUTE_LIST attribute value (spec.md §4.1 Pass B input).
func decodeAttributeList(v []byte) ([]attrListEntry, error) {
	var entries []attrListEntry
	order := binary.LittleEndian
	pos := 0
	for pos+26 <= len(v) {
		attrType := order.Uint32(v[pos : pos+4])
		recordLen := order.Uint16(v[pos+4 : pos+6])
		nameLen := int(v[pos+6])
		nameOffset := int(v[pos+7])
		baseRef := order.Uint64(v[pos+8 : pos+16])
		if recordLen == 0 || pos+int(recordLen) > len(v) {
			return nil, fmt.Errorf("attribute list entry truncated at offset %d", pos)
		}

		name := ""
		if nameLen > 0 {
			start := pos + nameOffset
			end := start + nameLen*2
			if end <= len(v) && start >= 0 {
				name = ntfstypes.DecodeUTF16LE(v[start:end])
			}
		}

		entries = append(entries, attrListEntry{
			attrType: attrType,
			name:     name,
			mftIndex: baseRef & 0x0000FFFFFFFFFFFF,
		})
		pos += int(recordLen)
	}
	return entries, nil
}

// resolveAttrList runs pass B for one base record's attribute list: it
// fetches every referenced child record and merges matching attributes'
// extents into the already-created stream on the base entry (spec.md §4.1
// Pass B).
func (s *Scanner) resolveAttrList(files *volume.FileSet, pending pendingAttrList, boot *ntfstypes.BootSector) error {
	base, ok := files.Get(pending.baseIndex)
	if !ok {
		return fmt.Errorf("attribute list references unknown base record %d", pending.baseIndex)
	}

	seen := make(map[uint64]bool)
	for _, e := range pending.entries {
		if e.mftIndex == pending.baseIndex || seen[e.mftIndex] {
			continue
		}
		seen[e.mftIndex] = true

		data, err := s.readRecordRetrying(e.mftIndex, boot.RecordSize)
		if err != nil {
			base.ScanErrors++
			continue
		}
		childHeader, err := ntfstypes.ParseRecordHeader(data)
		if err != nil || !childHeader.IsValid(boot.RecordSize) {
			base.ScanErrors++
			continue
		}
		if childHeader.BaseMFTIndex() != pending.baseIndex {
			base.ScanErrors++
			continue
		}

		slots, err := enumerateAttributes(data, childHeader)
		if err != nil {
			base.ScanErrors++
			continue
		}
		for _, slot := range slots {
			if slot.header.Type != ntfstypes.AttrData && slot.header.Type != ntfstypes.AttrIndexAllocation {
				continue
			}
			if err := attachStreamExtents(base, data, slot, boot.TotalClusters()); err != nil {
				base.ScanErrors++
			}
		}
	}
	return nil
}
