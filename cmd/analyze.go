package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image-path>",
	Short: "Scan a volume and report fragmentation statistics without moving anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(args[0], func(ctx context.Context, j *defrag.Job) (defrag.Progress, error) {
			return j.Analyze(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
