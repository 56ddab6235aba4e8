package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

var quickOptimizeCmd = &cobra.Command{
	Use:   "quick-optimize <image-path>",
	Short: "Optimize, excluding files above OPTIMIZER_FILE_SIZE_THRESHOLD, for a faster pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(args[0], func(ctx context.Context, j *defrag.Job) (defrag.Progress, error) {
			return j.QuickOptimize(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(quickOptimizeCmd)
}
