package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <image-path>",
	Short: "Compact files toward the front of the volume, then defragment the remainder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(args[0], func(ctx context.Context, j *defrag.Job) (defrag.Progress, error) {
			return j.Optimize(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}
