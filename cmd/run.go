package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/deploymenttheory/go-ntfsdefrag/internal/fsimage"
	"github.com/deploymenttheory/go-ntfsdefrag/internal/hostio"
	"github.com/deploymenttheory/go-ntfsdefrag/pkg/defrag"
)

// realtimeClock adapts time.Now to hostio.Clock for a live run (tests use
// hostio.MockClock instead).
type realtimeClock struct{}

func (realtimeClock) Now() hostio.Time { return hostio.Time{UnixNano: time.Now().UnixNano()} }

// stdoutSink prints one progress line per publish when verbose is set,
// following the teacher's plain fmt.Printf reporting (no table/JSON
// formatting library is wired anywhere in the example pack's CLIs).
type stdoutSink struct{ verbose bool }

func (s stdoutSink) Publish(p defrag.Progress) {
	if !s.verbose {
		return
	}
	fmt.Printf("pass %d: %s/%s moved, %.1f%% complete\n",
		p.PassNumber,
		humanize.Bytes(p.MovedClusters*uint64(p.ClusterSize)),
		humanize.Bytes(p.TotalSpace),
		p.Percentage)
}

// runJob opens imagePath as a raw volume, loads the configuration vector,
// and runs the requested operation to completion, printing a final
// summary. It is the single entry point every verb subcommand calls.
func runJob(imagePath string, run func(ctx context.Context, j *defrag.Job) (defrag.Progress, error)) error {
	dev, err := fsimage.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening volume image: %w", err)
	}
	defer dev.Close()

	cfg, err := defrag.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if dryRunFlag {
		cfg.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	job := defrag.NewJob(dev, dev, realtimeClock{}, stdoutSink{verbose: verbose}, cfg)

	result, err := run(ctx, job)
	if err != nil {
		return err
	}

	printSummary(result)
	return nil
}

func printSummary(p defrag.Progress) {
	fmt.Printf("completion status: %d\n", p.CompletionStatus)
	fmt.Printf("files: %d  directories: %d  fragmented: %d  fragments: %d\n",
		p.Files, p.Directories, p.Fragmented, p.Fragments)
	fmt.Printf("total space: %s  free space: %s\n",
		humanize.Bytes(p.TotalSpace), humanize.Bytes(p.FreeSpace))
	fmt.Printf("passes: %d  moves: %d  clusters moved: %d\n",
		p.PassNumber, p.TotalMoves, p.MovedClusters)
}
