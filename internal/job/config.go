// Package job ties the MFT scanner, volume model, planner, and mover
// together into one orchestrated run: it resolves the configuration vector
// (spec.md §6), drives the analyze -> plan -> move control loop described
// in spec.md §5, and exports progress snapshots to an external sink on a
// timer. Grounded on the teacher's pkg/services/service_factory.go
// composition-root pattern (one constructor wiring several internal
// services together), generalized from a services factory to a
// single-job pipeline.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/jobtime"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/planner"
)

// LoadConfig populates a planner.Config from a viper-backed configuration
// source, following the teacher's LoadDMGConfig (internal/device/dmg.go):
// config-file search path, SetDefault per key, and an environment-variable
// prefix (SPEC_FULL.md §3a, §1a).
func LoadConfig() (planner.Config, error) {
	v := viper.New()
	v.SetConfigName("ntfsdefrag")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.ntfsdefrag")
	v.AddConfigPath("/etc/ntfsdefrag")

	v.SetDefault("in_filter", "")
	v.SetDefault("ex_filter", "")
	v.SetDefault("fragment_size_threshold", "0")
	v.SetDefault("file_size_threshold", "0")
	v.SetDefault("optimizer_file_size_threshold", "20MB")
	v.SetDefault("fragments_threshold", 0)
	v.SetDefault("sorting", "PATH")
	v.SetDefault("sorting_order", "ASC")
	v.SetDefault("fragmentation_threshold", 0.0)
	v.SetDefault("time_limit", "")
	v.SetDefault("refresh_interval", 100)
	v.SetDefault("dry_run", false)
	v.SetDefault("repeat_threshold", 1)
	v.SetDefault("cluster_size", 4096)

	v.SetEnvPrefix("NTFSDEFRAG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return planner.Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return configFromViper(v)
}

// configFromViper translates the raw viper-backed key/value vector into a
// planner.Config, resolving the jobtime grammars for byte sizes and the
// wall-clock budget.
func configFromViper(v *viper.Viper) (planner.Config, error) {
	cfg := planner.DefaultConfig()

	cfg.IncludeFilters = splitSemicolon(v.GetString("in_filter"))
	cfg.ExcludeFilters = splitSemicolon(v.GetString("ex_filter"))

	var err error
	if cfg.FragmentSizeThreshold, err = parseByteSizeSetting(v, "fragment_size_threshold"); err != nil {
		return cfg, err
	}
	if cfg.FileSizeThreshold, err = parseByteSizeSetting(v, "file_size_threshold"); err != nil {
		return cfg, err
	}
	if cfg.OptimizerFileSizeThreshold, err = parseByteSizeSetting(v, "optimizer_file_size_threshold"); err != nil {
		return cfg, err
	}

	cfg.FragmentsThreshold = v.GetInt("fragments_threshold")
	cfg.FragmentationThreshold = v.GetFloat64("fragmentation_threshold")
	cfg.DryRun = v.GetBool("dry_run")
	cfg.RepeatThreshold = v.GetInt("repeat_threshold")
	cfg.ClusterSize = uint32(v.GetInt("cluster_size"))
	cfg.RefreshInterval = time.Duration(v.GetInt("refresh_interval")) * time.Millisecond

	switch v.GetString("sorting") {
	case "SIZE":
		cfg.Sorting = planner.SortSize
	case "C_TIME":
		cfg.Sorting = planner.SortCreationTime
	case "M_TIME":
		cfg.Sorting = planner.SortModificationTime
	case "A_TIME":
		cfg.Sorting = planner.SortAccessTime
	default:
		cfg.Sorting = planner.SortPath
	}
	if v.GetString("sorting_order") == "DESC" {
		cfg.SortingOrder = planner.SortDescending
	}

	limit, err := jobtime.ParseTimeLimit(v.GetString("time_limit"))
	if err != nil {
		return cfg, fmt.Errorf("parsing time_limit: %w", err)
	}
	cfg.TimeLimit = limit

	return cfg, nil
}

func parseByteSizeSetting(v *viper.Viper, key string) (uint64, error) {
	raw := v.Get(key)
	switch val := raw.(type) {
	case string:
		n, err := jobtime.ParseByteSize(val)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", key, err)
		}
		return n, nil
	default:
		return uint64(v.GetInt64(key)), nil
	}
}

// splitSemicolon parses a ';'-separated pattern list (IN_FILTER/EX_FILTER,
// spec.md §6 — always ';', independent of host OS path conventions).
func splitSemicolon(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
