package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

var defragmentCmd = &cobra.Command{
	Use:   "defragment <image-path>",
	Short: "Relocate fragmented streams into contiguous free space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(args[0], func(ctx context.Context, j *defrag.Job) (defrag.Progress, error) {
			return j.Defragment(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(defragmentCmd)
}
