package replay

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/rules"
	"github.com/ppiankov/demoscribe/internal/worker"
)

// Candidate is one playback attempt: a resource-set guess plus the command
// line to try it with. Note and UpdateSet come from annotated alternative
// command lines in the rule table.
type Candidate struct {
	Set       *rules.ResourceSet
	Args      string
	Note      string
	UpdateSet string
}

// Engine replays a demo with one candidate and returns its transcripts, or
// an error when the playback produced none. Implementations must be safe
// for concurrent use when demos are processed in parallel.
type Engine interface {
	Run(ctx context.Context, lmpPath string, c Candidate) (*Transcripts, error)
}

// Playback flags: write both transcripts, run as fast as possible without
// sound or drawing, and keep the engine quiet.
const defaultArgs = "-levelstat -analysis -nosound -nomusic -nodraw -quiet"

const (
	levelstatFilename = "levelstat.txt"
	analysisFilename  = "analysis.txt"
)

// ExecEngine drives the external replay binary. Launches are rate limited
// so a batch run does not fork-bomb the host. The engine owns one working
// directory and one pair of transcript files, so runs are serialized; the
// limiter wait happens outside the critical section.
type ExecEngine struct {
	binary  string
	dir     string
	limiter *worker.Limiter
	mu      sync.Mutex
	log     *zap.Logger
}

// NewExecEngine builds an engine around the configured replay binary.
// dir is the engine's working directory, which also holds the resource
// files and receives the transcript files.
func NewExecEngine(cfg model.EngineConfig, launchesPerSecond float64, burst int, log *zap.Logger) *ExecEngine {
	return &ExecEngine{
		binary:  cfg.Binary,
		dir:     cfg.Dir,
		limiter: worker.NewLimiter(launchesPerSecond, burst),
		log:     log,
	}
}

// Run launches one playback attempt and collects the transcripts it wrote.
func (e *ExecEngine) Run(ctx context.Context, lmpPath string, c Candidate) (*Transcripts, error) {
	if err := e.limiter.Wait(ctx, e.binary); err != nil {
		return nil, err
	}

	// The transcript filenames are fixed, so a concurrent run would read
	// this run's output as its own. One playback at a time per engine.
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanup()

	args := strings.Fields(defaultArgs)
	// -fastdemo over -timedemo: no tic statistics afterwards, so the
	// engine exits without waiting for input
	args = append(args, "-fastdemo", lmpPath)
	args = append(args, iwadArgs(c.Set.IWAD)...)
	args = append(args, strings.Fields(c.Args)...)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = e.dir
	if err := cmd.Run(); err != nil {
		// A failed exit can still leave a usable levelstat behind;
		// only the transcript files decide success.
		e.log.Debug("playback exited with error",
			zap.String("lmp", lmpPath), zap.Error(err))
	}

	levelstat, err := os.ReadFile(filepath.Join(e.dir, levelstatFilename))
	if err != nil {
		return nil, fmt.Errorf("no levelstat produced for %s", lmpPath)
	}
	analysis, err := os.ReadFile(filepath.Join(e.dir, analysisFilename))
	if err != nil {
		return nil, fmt.Errorf("no analysis produced for %s", lmpPath)
	}
	e.cleanup()

	return &Transcripts{Levelstat: string(levelstat), Analysis: string(analysis)}, nil
}

// cleanup removes stale transcript files so one attempt cannot read the
// previous attempt's output.
func (e *ExecEngine) cleanup() {
	os.Remove(filepath.Join(e.dir, levelstatFilename))
	os.Remove(filepath.Join(e.dir, analysisFilename))
}

// iwadArgs selects the base-game switches. Heretic and Hexen need their
// game mode spelled out; Chex ships in the engine directory itself.
func iwadArgs(iwad string) []string {
	switch iwad {
	case "chex":
		return []string{"-iwad", "chex"}
	case "heretic":
		return []string{"-iwad", "commercial/heretic", "-heretic"}
	case "hexen":
		return []string{"-iwad", "commercial/hexen", "-hexen"}
	default:
		return []string{"-iwad", "commercial/" + iwad}
	}
}
