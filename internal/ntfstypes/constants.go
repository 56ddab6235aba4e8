// Package ntfstypes holds the raw on-disk shapes and fixed constants of the
// NTFS format that the scanner, model, and planner all need: the boot
// sector layout, the MFT record and attribute headers, the run-list byte
// grammar, the attribute type codes, the cluster-map color classes, and the
// stable integer error codes from the external-interfaces table.
package ntfstypes

// Attribute type codes, as stored in an attribute header's type field.
const (
	AttrStandardInformation uint32 = 0x10
	AttrAttributeList       uint32 = 0x20
	AttrFileName            uint32 = 0x30
	AttrObjectID            uint32 = 0x40
	AttrSecurityDescriptor  uint32 = 0x50
	AttrVolumeName          uint32 = 0x60
	AttrVolumeInformation   uint32 = 0x70
	AttrData                uint32 = 0x80
	AttrIndexRoot           uint32 = 0x90
	AttrIndexAllocation     uint32 = 0xA0
	AttrBitmap              uint32 = 0xB0
	AttrReparsePoint        uint32 = 0xC0
	AttrEAInformation       uint32 = 0xD0
	AttrEA                  uint32 = 0xE0
	AttrLoggedUtilityStream uint32 = 0x100

	// AttrEndMarker terminates an attribute list within a record.
	AttrEndMarker uint32 = 0xFFFFFFFF
)

// FILE_NAME namespace precedence, high to low: POSIX > WIN32 > DOS. WIN32_AND_DOS
// names the common case where a WIN32 name already satisfies DOS rules.
const (
	FileNameNamespacePOSIX uint8 = 0
	FileNameNamespaceWin32 uint8 = 1
	FileNameNamespaceDOS   uint8 = 2
	FileNameNamespaceBoth  uint8 = 3
)

// filenameRank assigns a comparable rank to a FILE_NAME namespace so a later
// name only overwrites the current one when it strictly improves it, per
// spec.md §4.1 Pass A ("choose names with precedence POSIX > WIN32 > DOS").
func filenameRank(namespace uint8) int {
	switch namespace {
	case FileNameNamespacePOSIX:
		return 3
	case FileNameNamespaceWin32, FileNameNamespaceBoth:
		return 2
	case FileNameNamespaceDOS:
		return 1
	default:
		return 0
	}
}

// ImprovesOn reports whether a FILE_NAME attribute using the candidate
// namespace should replace one currently recorded under current.
func ImprovesOn(candidate, current uint8) bool {
	return filenameRank(candidate) > filenameRank(current)
}

// Fixed system MFT record indexes. Records 0..15 name fixed system files and
// must never be considered movable (spec.md §3 File entry invariant).
const (
	MFTRecordMFT       = 0
	MFTRecordMFTMirr   = 1
	MFTRecordLogFile   = 2
	MFTRecordVolume    = 3
	MFTRecordAttrDef   = 4
	MFTRecordRoot      = 5
	MFTRecordBitmap    = 6
	MFTRecordBoot      = 7
	MFTRecordBadClus   = 8
	MFTRecordSecure    = 9
	MFTRecordUpCase    = 10
	MFTRecordExtend    = 11
	FirstUserMFTRecord = 16
)

// IsSystemRecord reports whether idx names one of the fixed system files
// (spec.md §3: "entries below 16 must never be considered movable").
func IsSystemRecord(idx uint64) bool {
	return idx < FirstUserMFTRecord
}

// SentinelLCN marks a sparse or compressed virtual run that occupies no
// physical clusters (spec.md §3 Extent).
const SentinelLCN uint64 = ^uint64(0)

// Stream disposition flags (spec.md §3 Stream).
type StreamFlags uint8

const (
	StreamFragmented StreamFlags = 1 << iota
	StreamCompressed
	StreamSparse
)

// File entry flags (spec.md §3 File entry).
type FileFlags uint32

const (
	FileFlagDirectory FileFlags = 1 << iota
	FileFlagReparsePoint
	FileFlagSystem
	FileFlagHidden
	FileFlagCompressed
	FileFlagEncrypted
	FileFlagReadOnly
)

// ColorClass is one of the ten color classes used to paint the
// cluster-state map, in ascending priority order (spec.md §3, §4.2).
type ColorClass uint8

const (
	ColorUnused ColorClass = iota
	ColorFree
	ColorSystem
	ColorFragmented
	ColorUnfragmented
	ColorDirectory
	ColorCompressed
	ColorMFTZone
	ColorMFT
	ColorTemporarySystem
	numColorClasses
)

// colorPriority gives each class's precedence; higher wins on collision,
// per spec.md §4.2 and original_source/src/dll/udefrag/udefrag.h's
// NUM_OF_SPACE_STATES enum ("has lowest precedence" ... "has highest
// precedence").
var colorPriority = [numColorClasses]int{
	ColorUnused:          0,
	ColorFree:            1,
	ColorSystem:          2,
	ColorFragmented:      3,
	ColorUnfragmented:    4,
	ColorDirectory:       5,
	ColorCompressed:      6,
	ColorMFTZone:         7,
	ColorMFT:             8,
	ColorTemporarySystem: 9,
}

// HigherPriority reports whether candidate should replace current when both
// touch the same cluster-map cell.
func HigherPriority(candidate, current ColorClass) bool {
	return colorPriority[candidate] > colorPriority[current]
}

// JobOperation is the current_operation field of the progress record
// (spec.md §6).
type JobOperation uint8

const (
	OperationAnalyze JobOperation = iota
	OperationDefrag
	OperationOptimize
)

// JobType distinguishes the five job kinds of spec.md §4.3.
type JobType int

const (
	JobAnalyze JobType = iota
	JobDefragment
	JobOptimize
	JobQuickOptimize
	JobMFTOptimize
)

// ErrorCode is a stable integer error constant from spec.md §6.
type ErrorCode int32

const (
	ErrUnknown            ErrorCode = -1
	ErrFATOptimization     ErrorCode = -2
	ErrW2K4KBClusters      ErrorCode = -3
	ErrNoMem               ErrorCode = -4
	ErrCDROM               ErrorCode = -5
	ErrRemote              ErrorCode = -6
	ErrAssignedBySubst     ErrorCode = -7
	ErrRemovable           ErrorCode = -8
	ErrUDFDefrag           ErrorCode = -9
	ErrNoMFT               ErrorCode = -10
	ErrUnmovableMFT        ErrorCode = -11
	ErrDirtyVolume         ErrorCode = -12

	// Additional kinds named in spec.md §4.1 and §7, given their own codes
	// so JobError has a stable code for every documented failure kind.
	ErrMFTUnreadable   ErrorCode = -13
	ErrCorruptRecord   ErrorCode = -14
	ErrCancelled       ErrorCode = -15
	ErrModelCorrupted  ErrorCode = -16
)

// JobError wraps an underlying error with the stable code and free-form
// context spec.md §7 calls for ("a tagged error carrying { kind, context }").
type JobError struct {
	Code    ErrorCode
	Kind    string
	Context string
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		if e.Context != "" {
			return e.Kind + ": " + e.Context + ": " + e.Err.Error()
		}
		return e.Kind + ": " + e.Err.Error()
	}
	return e.Kind + ": " + e.Context
}

func (e *JobError) Unwrap() error { return e.Err }

// NewJobError builds a JobError with the given stable code.
func NewJobError(code ErrorCode, kind, context string, err error) *JobError {
	return &JobError{Code: code, Kind: kind, Context: context, Err: err}
}

// Stream names that are always excluded from movability regardless of MFT
// index, per spec.md §4.3 ("is not an in-use system stream ($LogFile,
// $Bitmap, the MFT mirror)") and original_source/src/native/udefrag.c's
// literal checks on those stream names before allowing a move. The MFT
// mirror itself is excluded by MFT record index (IsSystemRecord), not by
// stream name: $MFTMirr is a file, and a stream's Name is its attribute
// name, never its parent file's name.
var unmovableStreamNames = map[string]bool{
	"$LogFile": true,
	"$Bitmap":  true,
}

// IsUnmovableSystemStream reports whether name is one of the always-excluded
// system stream names.
func IsUnmovableSystemStream(name string) bool {
	return unmovableStreamNames[name]
}

// DefaultOptimizerFileSizeThreshold is the default ceiling for
// QUICK_OPTIMIZE (spec.md §6, OPTIMIZER_FILE_SIZE_THRESHOLD: "default 20
// MiB").
const DefaultOptimizerFileSizeThreshold uint64 = 20 * 1024 * 1024

// DefaultRepeatThreshold is the default repeat_threshold for pass
// termination (spec.md §4.3: "default 1").
const DefaultRepeatThreshold = 1

// DefaultRefreshIntervalMillis is the default progress-sink period
// (spec.md §6, REFRESH_INTERVAL: "default 100").
const DefaultRefreshIntervalMillis = 100
