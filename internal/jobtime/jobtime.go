// Package jobtime parses the two small textual grammars the configuration
// vector (spec.md §6) accepts: the TIME_LIMIT wall-clock budget ("Ay Bd Ch
// Dm Es") and byte sizes with KB/MB/GB/TB/PB/EB suffixes, grounded on the
// independently testable small-parse-function idiom of the teacher's
// internal/device/dmg.go config loader.
package jobtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// byteUnits maps each recognized suffix to its multiplier (spec.md §6:
// "Byte sizes accept suffixes KB MB GB TB PB EB").
var byteUnits = []struct {
	suffix string
	mult   uint64
}{
	{"EB", 1 << 60},
	{"PB", 1 << 50},
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// ParseByteSize parses a byte-size string with an optional KB/MB/GB/TB/PB/EB
// suffix (case-insensitive). A bare number is interpreted as bytes.
func ParseByteSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	upper := strings.ToUpper(s)
	for _, u := range byteUnits {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing byte size %q: %w", s, err)
			}
			return uint64(n * float64(u.mult)), nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing byte size %q: %w", s, err)
	}
	return n, nil
}

// ParseTimeLimit parses the TIME_LIMIT grammar "Ay Bd Ch Dm Es" (years,
// days, hours, minutes, seconds; each component optional, space
// separated, any subset, in any order) into a time.Duration. An empty
// string means no limit (zero duration, meaning "unset" to callers that
// check for zero).
func ParseTimeLimit(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var total time.Duration
	for _, field := range strings.Fields(s) {
		if len(field) < 2 {
			return 0, fmt.Errorf("invalid TIME_LIMIT component %q", field)
		}
		unit := field[len(field)-1]
		numPart := field[:len(field)-1]
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid TIME_LIMIT component %q: %w", field, err)
		}

		var unitDuration time.Duration
		switch unit {
		case 'y', 'Y':
			unitDuration = 365 * 24 * time.Hour
		case 'd', 'D':
			unitDuration = 24 * time.Hour
		case 'h', 'H':
			unitDuration = time.Hour
		case 'm', 'M':
			unitDuration = time.Minute
		case 's', 'S':
			unitDuration = time.Second
		default:
			return 0, fmt.Errorf("invalid TIME_LIMIT unit in %q", field)
		}
		total += time.Duration(n * float64(unitDuration))
	}
	return total, nil
}
