package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/demoscribe/internal/cache"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/pipeline"
	"github.com/ppiankov/demoscribe/internal/post"
	"github.com/ppiankov/demoscribe/internal/replay"
	"github.com/ppiankov/demoscribe/internal/rules"
)

var (
	outputDir     string
	postAuthor    string
	postThread    string
	timeout       time.Duration
	noCache       bool
	cacheDir      string
	skipPlayback  bool
	exhaustive    bool
	trustCategory bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <archive.zip>",
	Short: "Process one demo submission archive into records",
	Long: `Process runs a single submission archive through every fact source:
- Decode the demo's binary header and footer
- Parse the bundled text file
- Apply forum-post context, when given
- Replay the demo against the matching resource sets
- Merge everything in a certainty ledger and assemble a record

Records land in per-review-bucket directories under the output dir.

Example:
  demoscribe process va01-123.zip
  demoscribe process va01-123.zip --author Ancalagon --thread 112211
  demoscribe process va01-123.zip --skip-playback --out ./records`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&outputDir, "out", "", "output directory for records (default: from config)")
	processCmd.Flags().StringVar(&postAuthor, "author", "", "forum post author, used as the player fallback")
	processCmd.Flags().StringVar(&postThread, "thread", "", "forum thread id, applies thread overrides")
	processCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall processing timeout")
	processCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the playback transcript cache")
	processCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "persist the transcript cache to this directory")
	processCmd.Flags().BoolVar(&skipPlayback, "skip-playback", false, "skip replay; records come out partial")
	processCmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "try every playback candidate, keep the longest")
	processCmd.Flags().BoolVar(&trustCategory, "trust-category", false, "promote the replay category to certain")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyPlaybackFlags(cmd, cfg)

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	sub := pipeline.Submission{ArchivePath: args[0]}
	if postAuthor != "" || postThread != "" {
		sub.Post = &post.Post{AuthorName: postAuthor, ThreadID: postThread}
	}

	outcome, err := p.ProcessArchive(ctx, sub)
	if err != nil {
		return fmt.Errorf("process archive: %w", err)
	}

	sink := pipeline.NewDirSink(recordsDir(cfg), logger)
	for _, d := range outcome.Demos {
		switch {
		case d.Err != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", d.LMP, d.Err)
		case d.PlaybackFailed:
			fmt.Fprintf(os.Stderr, "✗ %s: no candidate played it back\n", d.LMP)
		default:
			if err := sink.Write(sub.ArchivePath, d.LMP, d.Record); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", d.LMP, reviewMark(d.Record))
		}
	}

	return nil
}

// applyPlaybackFlags lets explicit flags win over the config file.
func applyPlaybackFlags(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("skip-playback") {
		cfg.Playback.Skip = skipPlayback
	}
	if cmd.Flags().Changed("exhaustive") {
		cfg.Playback.Exhaustive = exhaustive
	}
	if cmd.Flags().Changed("trust-category") {
		cfg.Playback.TrustCategory = trustCategory
	}
}

func recordsDir(cfg *model.Config) string {
	if outputDir != "" {
		return outputDir
	}
	return cfg.Output.Dir
}

// buildPipeline wires the rule index, the thread map and the engine.
func buildPipeline(cfg *model.Config) (*pipeline.Pipeline, error) {
	idx, err := rules.Load(cfg.Rules.ResourceSets)
	if err != nil {
		return nil, fmt.Errorf("load resource sets: %w", err)
	}

	var threads post.ThreadMap
	if cfg.Rules.ThreadMap != "" {
		if _, err := os.Stat(cfg.Rules.ThreadMap); err == nil {
			threads, err = post.LoadThreadMap(cfg.Rules.ThreadMap)
			if err != nil {
				return nil, fmt.Errorf("load thread map: %w", err)
			}
		} else {
			logger.Warn("thread map not found, no thread overrides apply")
		}
	}

	var engine replay.Engine = replay.NewExecEngine(cfg.Engine,
		cfg.Concurrency.LaunchesPerSecond, cfg.Concurrency.LaunchBurst, logger)
	if !noCache {
		var store cache.Cache
		if cacheDir != "" {
			store = cache.NewLayeredCache(time.Hour, cacheDir, 24*time.Hour)
		} else {
			store = cache.NewMemoryCache(time.Hour, 10*time.Minute)
		}
		engine = replay.NewCachedEngine(engine, store)
	}

	return pipeline.New(cfg, idx, threads, engine, logger), nil
}

func reviewMark(record *model.Record) string {
	switch {
	case record.MaybeCheated:
		return "maybe cheated"
	case record.HasIssue:
		return "has issues"
	case len(record.Tags) > 0:
		return "tagged"
	}
	return "clean"
}
