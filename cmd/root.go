// Package cmd implements the command-line front end: it wires the
// cobra command tree to pkg/defrag, following the teacher's
// cmd/root.go (a persistent-flag root command plus one file per verb
// registering itself in init).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	dryRunFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "ntfsdefrag",
	Short: "NTFS volume defragmentation and optimization tool",
	Long: `ntfsdefrag analyzes, defragments, and optimizes NTFS volumes from a
raw volume image.

Commands:
  analyze         Scan the volume and report fragmentation statistics
  defragment      Relocate fragmented streams into contiguous free space
  optimize        Compact files to the front of the volume, then defragment
  quick-optimize  Optimize, skipping large files, for a faster pass
  mft-optimize    Consolidate the MFT's own fragments`,
	Version: "0.1.0-dev",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print a progress line per tick")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "plan moves but never touch the volume (overrides DRY_RUN config)")
}
