package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/demoscribe/internal/pipeline"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|manifest>",
	Short: "Process many submission archives in parallel",
	Long: `Batch processes submission archives concurrently:
- A directory argument processes every zip directly under it
- A file argument is read as a manifest, one archive path per line
- Archives run across a worker pool; engine launches stay rate limited
- Each record lands in its review bucket under the output dir

Example:
  demoscribe batch ./incoming
  demoscribe batch queue.txt --concurrency 8 --out ./records
  demoscribe batch ./incoming --skip-playback`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: from config)")
	batchCmd.Flags().StringVar(&outputDir, "out", "", "output directory for records (default: from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the playback transcript cache")
	batchCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "persist the transcript cache to this directory")
	batchCmd.Flags().BoolVar(&skipPlayback, "skip-playback", false, "skip replay; records come out partial")
	batchCmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "try every playback candidate, keep the longest")
	batchCmd.Flags().BoolVar(&trustCategory, "trust-category", false, "promote the replay category to certain")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyPlaybackFlags(cmd, cfg)
	workers := cfg.Concurrency.Workers
	if concurrency > 0 {
		workers = concurrency
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	sink := pipeline.NewDirSink(recordsDir(cfg), logger)
	batch := pipeline.NewBatch(p, sink, workers, logger)

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	var results []*pipeline.BatchResult
	if info.IsDir() {
		results, err = batch.ProcessDir(ctx, input)
		if err != nil {
			return fmt.Errorf("process dir: %w", err)
		}
	} else {
		paths, err := pipeline.ReadManifest(input)
		if err != nil {
			return err
		}
		subs := make([]pipeline.Submission, len(paths))
		for i, path := range paths {
			subs[i] = pipeline.Submission{ArchivePath: path}
		}
		results = batch.Process(ctx, subs)
	}

	successCount := 0
	failureCount := 0
	demoCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Archive, result.Error)
			continue
		}
		successCount++
		demoCount += len(result.Outcome.Demos)
		fmt.Fprintf(os.Stderr, "✓ %s (%d demos)\n", result.Archive, len(result.Outcome.Demos))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Archives:  %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Demos:     %d\n", demoCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", recordsDir(cfg))
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d archives failed", failureCount, len(results))
	}
	return nil
}
