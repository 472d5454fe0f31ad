package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/worker"
)

// submissionJob runs one archive through the pipeline and writes the
// resulting records to the sink.
type submissionJob struct {
	pipe *Pipeline
	sink Sink
	sub  Submission
}

// Execute implements worker.Job.
func (j *submissionJob) Execute(ctx context.Context) worker.Result {
	outcome, err := j.pipe.ProcessArchive(ctx, j.sub)
	if err != nil {
		return &BatchResult{Archive: j.sub.ArchivePath, Error: err}
	}
	for _, d := range outcome.Demos {
		if d.Record == nil {
			continue
		}
		if err := j.sink.Write(j.sub.ArchivePath, d.LMP, d.Record); err != nil {
			return &BatchResult{Archive: j.sub.ArchivePath, Outcome: outcome, Error: err}
		}
	}
	return &BatchResult{Archive: j.sub.ArchivePath, Outcome: outcome}
}

// BatchResult is the outcome of one archive in a batch run.
type BatchResult struct {
	Archive string
	Outcome *Outcome
	Error   error
}

// GetError implements worker.Result.
func (r *BatchResult) GetError() error {
	return r.Error
}

// Batch processes submission archives across a worker pool. The pipeline
// is shared: its rule index and thread map are read-only, and the engine
// carries its own launch limiter.
type Batch struct {
	pipe        *Pipeline
	sink        Sink
	concurrency int
	log         *zap.Logger
}

// NewBatch creates a batch processor.
func NewBatch(pipe *Pipeline, sink Sink, concurrency int, log *zap.Logger) *Batch {
	return &Batch{
		pipe:        pipe,
		sink:        sink,
		concurrency: concurrency,
		log:         log,
	}
}

// Process runs the submissions concurrently and returns a result per
// archive, in completion order.
func (b *Batch) Process(ctx context.Context, subs []Submission) []*BatchResult {
	if len(subs) == 0 {
		return []*BatchResult{}
	}

	pool := worker.NewPool(b.concurrency)
	pool.Start()

	for _, sub := range subs {
		pool.Submit(&submissionJob{pipe: b.pipe, sink: b.sink, sub: sub})
	}

	results := pool.Wait()

	batchResults := make([]*BatchResult, len(results))
	for i, result := range results {
		batchResults[i] = result.(*BatchResult)
	}

	return batchResults
}

// ProcessDir processes every zip archive directly under dir.
func (b *Batch) ProcessDir(ctx context.Context, dir string) ([]*BatchResult, error) {
	archives, err := DiscoverArchives(dir)
	if err != nil {
		return nil, err
	}

	subs := make([]Submission, len(archives))
	for i, path := range archives {
		subs[i] = Submission{ArchivePath: path}
	}
	b.log.Info("batch start",
		zap.String("dir", dir), zap.Int("archives", len(subs)))

	return b.Process(ctx, subs), nil
}

// DiscoverArchives lists the zip files directly under dir, sorted by name.
func DiscoverArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var archives []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			archives = append(archives, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(archives)
	return archives, nil
}

// ReadManifest reads archive paths from a file, one per line. Empty lines
// and # comments are skipped, duplicates keep their first position.
func ReadManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return paths, nil
}
