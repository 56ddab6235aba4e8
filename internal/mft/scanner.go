// Package mft implements the NTFS Master File Table scanner: it reads raw
// file records, follows attribute lists into child records, reconstructs
// per-file cluster runlists, and materializes a complete set of file
// entries with full paths, attribute flags, and non-resident extent maps
// (spec.md §4.1).
package mft

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// Options controls scan behavior (spec.md §4.1, §6).
type Options struct {
	AllowPartialScan bool
	FilterCB         func(*volume.FileEntry) bool
	ProgressCB       func(recordsProcessed, totalRecords uint64)
}

// Result is the output of one scan.
type Result struct {
	Files      *volume.FileSet
	BootSector *ntfstypes.BootSector
	ErrorCount int
}

// Scanner reads a volume's MFT into a complete FileSet, following the
// teacher's "NewXReader(data, endian) -> (*T, error)" composition pattern
// generalized into a multi-stage pipeline (bootstrap, per-record two-pass
// processing, path assembly).
type Scanner struct {
	device hostio.BlockDevice
}

// New creates a Scanner over the given block device.
func New(device hostio.BlockDevice) *Scanner {
	return &Scanner{device: device}
}

// Scan reads the boot sector, walks every MFT record right to left, and
// returns the resulting FileSet (spec.md §4.1 public contract: "scan(volume,
// filter_cb, progress_cb, cancel) -> FileSet").
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	boot, err := s.readBootSector()
	if err != nil {
		return nil, ntfstypes.NewJobError(ntfstypes.ErrNoMFT, "MFT_UNREADABLE", "reading boot sector", err)
	}

	mftRecordCount, err := s.mftRecordCount(boot)
	if err != nil {
		return nil, ntfstypes.NewJobError(ntfstypes.ErrMFTUnreadable, "MFT_UNREADABLE", "reading $MFT record 0", err)
	}

	files := volume.NewFileSet()
	// childAttrLists defers attribute-list processing (pass B) until all
	// base records have had pass A applied, so child-record lookups always
	// see an already-present base entry for merges (spec.md §4.1: "lets
	// later code attach streams to earlier-seen base records without
	// lookahead" — the scanner still defers list-following itself because
	// children may be scanned in either order relative to their base when
	// walking right to left).
	var pendingAttrLists []pendingAttrList

	errorCount := 0

	// Records scanned right to left (highest index first), per spec.md
	// §4.1.
	for i := mftRecordCount; i > 0; i-- {
		idx := i - 1
		if err := checkCancel(ctx); err != nil {
			return nil, ntfstypes.NewJobError(ntfstypes.ErrCancelled, "CANCELLED", "mft scan", err)
		}

		data, err := s.readRecordRetrying(idx, boot.RecordSize)
		if err != nil {
			errorCount++
			if !opts.AllowPartialScan {
				return nil, ntfstypes.NewJobError(ntfstypes.ErrMFTUnreadable, "MFT_UNREADABLE",
					fmt.Sprintf("record %d unreadable", idx), err)
			}
			continue
		}

		header, err := ntfstypes.ParseRecordHeader(data)
		if err != nil || !header.IsValid(boot.RecordSize) {
			// spec.md §4.1: ignored, not an error, unless ParseRecordHeader
			// itself failed on too-short data (which only happens for a
			// corrupt read, already counted above).
			continue
		}

		if header.BaseMFTIndex() != 0 && header.BaseMFTIndex() != idx {
			// This is a child record; it is visited directly only while
			// resolving an attribute list from its base. Skip it here.
			continue
		}

		entry, lists, err := s.processBaseRecord(idx, data, header, boot)
		if err != nil {
			errorCount++
			if !opts.AllowPartialScan {
				return nil, ntfstypes.NewJobError(ntfstypes.ErrCorruptRecord, "CORRUPT_RECORD",
					fmt.Sprintf("record %d", idx), err)
			}
			continue
		}

		files.Add(entry)
		pendingAttrLists = append(pendingAttrLists, lists...)

		if opts.ProgressCB != nil {
			opts.ProgressCB(mftRecordCount-idx, mftRecordCount)
		}
	}

	// Pass B: resolve attribute lists now that every base record exists.
	for _, pending := range pendingAttrLists {
		if err := checkCancel(ctx); err != nil {
			return nil, ntfstypes.NewJobError(ntfstypes.ErrCancelled, "CANCELLED", "attribute list resolution", err)
		}
		if err := s.resolveAttrList(files, pending, boot); err != nil {
			errorCount++
			if !opts.AllowPartialScan {
				return nil, ntfstypes.NewJobError(ntfstypes.ErrCorruptRecord, "CORRUPT_RECORD",
					fmt.Sprintf("attribute list for base %d", pending.baseIndex), err)
			}
		}
	}

	for _, f := range files.All() {
		for _, st := range f.Streams {
			st.RecomputeFragmented()
		}
	}

	files.Finalize()
	AssignPaths(files)

	if opts.FilterCB != nil {
		for _, f := range files.All() {
			if !opts.FilterCB(f) {
				files.Remove(f.MFTIndex)
			}
		}
		files.Finalize()
	}

	return &Result{Files: files, BootSector: boot, ErrorCount: errorCount}, nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// readBootSector reads and parses the first sector of the volume.
func (s *Scanner) readBootSector() (*ntfstypes.BootSector, error) {
	data, err := s.device.ReadBlock(0, ntfstypes.BootSectorSize)
	if err != nil {
		return nil, err
	}
	return ntfstypes.ParseBootSector(data)
}

// mftRecordCount computes the total number of MFT records from record 0's
// non-resident $DATA attribute (spec.md §4.1 Bootstrap): total_records =
// data_size / record_size.
func (s *Scanner) mftRecordCount(boot *ntfstypes.BootSector) (uint64, error) {
	data, err := s.readRecordRetrying(0, boot.RecordSize)
	if err != nil {
		return 0, err
	}
	header, err := ntfstypes.ParseRecordHeader(data)
	if err != nil {
		return 0, err
	}
	if !header.IsValid(boot.RecordSize) {
		return 0, fmt.Errorf("MFT record 0 is not a valid FILE record")
	}

	attrs, err := enumerateAttributes(data, header)
	if err != nil {
		return 0, err
	}
	for _, a := range attrs {
		if a.header.Type == ntfstypes.AttrData && a.header.NonResident {
			if a.header.DataSize == 0 || boot.RecordSize == 0 {
				return 0, fmt.Errorf("invalid $MFT $DATA size")
			}
			return a.header.DataSize / uint64(boot.RecordSize), nil
		}
	}
	return 0, fmt.Errorf("$MFT record 0 has no non-resident $DATA attribute")
}

// readRecordRetrying wraps the single raw read with the retry-once policy
// of spec.md §7 ("Transient I/O errors ... Retried once").
func (s *Scanner) readRecordRetrying(idx uint64, recordSize uint32) ([]byte, error) {
	data, err := s.device.ReadMFTRecord(idx, recordSize)
	if err != nil {
		data, err = s.device.ReadMFTRecord(idx, recordSize)
	}
	return data, err
}
