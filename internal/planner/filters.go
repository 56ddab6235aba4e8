package planner

import (
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/ntfstypes"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/volume"
)

// splitPatterns parses a ';'-separated pattern list (IN_FILTER/EX_FILTER,
// spec.md §6).
func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchesAny reports whether path matches any of the given wildcard
// patterns (? and *, per spec.md §6), using filepath.Match semantics.
func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// passesPathFilters reports whether path is allowed by the configured
// include/exclude pattern lists. An empty include list means "everything
// included"; any match in the exclude list overrides inclusion.
func passesPathFilters(cfg Config, path string) bool {
	if len(cfg.ExcludeFilters) > 0 && matchesAny(cfg.ExcludeFilters, path) {
		return false
	}
	if len(cfg.IncludeFilters) > 0 && !matchesAny(cfg.IncludeFilters, path) {
		return false
	}
	return true
}

// IsMovable reports whether a stream is a movability candidate, applying
// every filter of spec.md §4.3's "Inclusion/exclusion filters" and
// SPEC_FULL.md §4.7's per-stream-name exclusion list. optimizerPass
// additionally applies cfg.OptimizerFileSizeThreshold for QUICK_OPTIMIZE.
func IsMovable(cfg Config, f *volume.FileEntry, s *volume.Stream, optimizerPass bool) bool {
	if f.IsSystem() {
		return false
	}
	if f.Flags&ntfstypes.FileFlagReparsePoint != 0 {
		return false
	}
	if ntfstypes.IsUnmovableSystemStream(s.Name) {
		return false
	}
	if s.Corrupt {
		return false
	}
	if !passesPathFilters(cfg, f.Path) {
		return false
	}
	if cfg.FileSizeThreshold > 0 && f.Size > cfg.FileSizeThreshold {
		return false
	}
	if optimizerPass && cfg.OptimizerFileSizeThreshold > 0 && f.Size > cfg.OptimizerFileSizeThreshold {
		return false
	}
	if cfg.FragmentsThreshold > 0 && s.FragmentCount() < cfg.FragmentsThreshold {
		return false
	}
	if len(s.Extents) == 0 {
		return false
	}
	return true
}

// IsFragmented reports whether a stream is both movable and fragmented,
// applying the FRAGMENT_SIZE_THRESHOLD filter: a stream whose every
// fragment is at or above the threshold size is treated as unfragmented
// for planning purposes, since moving it would not reduce visible
// fragmentation. optimizerPass additionally applies
// cfg.OptimizerFileSizeThreshold (QUICK_OPTIMIZE's remainder-defrag phase).
func IsFragmented(cfg Config, f *volume.FileEntry, s *volume.Stream, optimizerPass bool) bool {
	if !IsMovable(cfg, f, s, optimizerPass) {
		return false
	}
	if s.FragmentCount() < 2 {
		return false
	}
	if cfg.FragmentSizeThreshold == 0 {
		return true
	}
	if cfg.ClusterSize == 0 {
		return true
	}
	thresholdClusters := cfg.FragmentSizeThreshold / uint64(cfg.ClusterSize)
	for _, e := range s.Extents {
		if !e.IsSparse() && e.Length < thresholdClusters {
			return true
		}
	}
	return false
}
