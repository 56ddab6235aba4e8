package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

var mftOptimizeCmd = &cobra.Command{
	Use:   "mft-optimize <image-path>",
	Short: "Consolidate the MFT's own fragments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(args[0], func(ctx context.Context, j *defrag.Job) (defrag.Progress, error) {
			return j.MFTOptimize(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(mftOptimizeCmd)
}
