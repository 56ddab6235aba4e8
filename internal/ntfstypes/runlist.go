package ntfstypes

import "fmt"

// RawRun is one decoded (vcn, lcn, length) mapping-pairs entry before it is
// attached to a stream. LCN == SentinelLCN marks a sparse run.
type RawRun struct {
	VCN    uint64
	LCN    uint64
	Length uint64
}

// DecodeRunlist decodes an NTFS mapping-pairs byte stream into an ordered
// list of runs, per spec.md §4.1 Runlist decoding.
//
// Each run begins with a header byte whose low nibble is the count-field
// length in bytes and whose high nibble is the offset-field length in
// bytes. A zero offset length marks a sparse run (LCN left as the
// sentinel). A non-zero offset is a signed delta added to the running LCN.
// Decoding stops at a zero header byte or when the buffer is exhausted.
func DecodeRunlist(data []byte, startVCN uint64) ([]RawRun, error) {
	var runs []RawRun
	vcn := startVCN
	var lcn uint64
	pos := 0

	for pos < len(data) {
		header := data[pos]
		if header == 0 {
			break
		}
		pos++

		countLen := int(header & 0x0F)
		offsetLen := int(header >> 4)

		if pos+countLen > len(data) {
			return nil, fmt.Errorf("runlist truncated reading count field at offset %d", pos)
		}
		length := decodeLittleEndianUnsigned(data[pos : pos+countLen])
		pos += countLen

		sparse := offsetLen == 0
		if !sparse {
			if pos+offsetLen > len(data) {
				return nil, fmt.Errorf("runlist truncated reading offset field at offset %d", pos)
			}
			delta := decodeLittleEndianSigned(data[pos : pos+offsetLen])
			pos += offsetLen
			lcn = uint64(int64(lcn) + delta)
		}

		run := RawRun{VCN: vcn, Length: length}
		if sparse {
			run.LCN = SentinelLCN
		} else {
			run.LCN = lcn
		}
		runs = append(runs, run)
		vcn += length
	}

	return runs, nil
}

func decodeLittleEndianUnsigned(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

// decodeLittleEndianSigned sign-extends the last byte's high bit across the
// unused upper bytes, matching the signed mapping-pairs offset encoding.
func decodeLittleEndianSigned(b []byte) int64 {
	v := decodeLittleEndianUnsigned(b)
	if len(b) == 0 {
		return 0
	}
	signBit := uint64(1) << (uint(len(b))*8 - 1)
	if v&signBit != 0 {
		v |= ^uint64(0) << (uint(len(b)) * 8)
	}
	return int64(v)
}
