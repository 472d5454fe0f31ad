// Package pipeline drives one submission archive through every fact source
// and out to an assembled record: post facts, readme, binary header, replay,
// ledger, assembly. Each demo owns its ledger and note set; the rule index
// and thread map are shared read-only.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/archive"
	"github.com/ppiankov/demoscribe/internal/assemble"
	"github.com/ppiankov/demoscribe/internal/demo"
	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/post"
	"github.com/ppiankov/demoscribe/internal/replay"
	"github.com/ppiankov/demoscribe/internal/rules"
	"github.com/ppiankov/demoscribe/internal/textfile"
)

// Submission is one archive plus the forum context it arrived with.
type Submission struct {
	ArchivePath string
	// Post carries the uploader's forum post, when the archive came from a
	// thread. Standalone archives leave it nil.
	Post *post.Post
}

// DemoResult is the outcome for one demo inside a submission.
type DemoResult struct {
	LMP    string
	Record *model.Record
	// PlaybackFailed means no resource-set candidate reproduced the demo;
	// there is no record and the demo needs human triage.
	PlaybackFailed bool
	Err            error
}

// Outcome collects the per-demo results of one submission.
type Outcome struct {
	Archive string
	Demos   []DemoResult
}

// Pipeline processes submissions. Safe for concurrent use: all shared state
// is read-only after construction.
type Pipeline struct {
	cfg       *model.Config
	rules     *rules.Index
	threads   post.ThreadMap
	analyzer  *replay.Analyzer
	assembler *assemble.Assembler
	log       *zap.Logger
}

// New assembles a pipeline around a replay engine. The engine is passed in
// rather than built here so batch runs can share one rate-limited, cached
// engine across workers.
func New(cfg *model.Config, idx *rules.Index, threads post.ThreadMap, engine replay.Engine, log *zap.Logger) *Pipeline {
	opts := replay.Options{
		Exhaustive:       cfg.Playback.Exhaustive,
		AlwaysTrySoloNet: cfg.Playback.AlwaysTrySoloNet,
		TrustCategory:    cfg.Playback.TrustCategory,
	}
	return &Pipeline{
		cfg:       cfg,
		rules:     idx,
		threads:   threads,
		analyzer:  replay.NewAnalyzer(engine, opts, log),
		assembler: assemble.New(log),
		log:       log,
	}
}

// ProcessArchive runs every demo in the archive through the fact sources.
// A demo that fails leaves its error in the outcome; the remaining demos
// still process.
func (p *Pipeline) ProcessArchive(ctx context.Context, sub Submission) (*Outcome, error) {
	a, err := archive.Open(sub.ArchivePath, p.log)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var postData *post.Data
	if sub.Post != nil {
		postData = post.Analyze(*sub.Post, p.threads)
	}

	outcome := &Outcome{Archive: sub.ArchivePath}
	for _, d := range a.Demos {
		result := p.processDemo(ctx, d, a, postData)
		outcome.Demos = append(outcome.Demos, result)
	}
	return outcome, nil
}

func (p *Pipeline) processDemo(ctx context.Context, d archive.Demo, a *archive.Archive, postData *post.Data) DemoResult {
	result := DemoResult{LMP: d.Name}
	led := ledger.New()
	notes := newNoteSet()

	var postGuesses []string
	if postData != nil {
		postData.Populate(led)
		postGuesses = postData.WadLinks
		if postData.Note != "" {
			notes.add(postData.Note)
		}
	}

	txtData, txtDate := p.readTextfile(d, a)
	var txtGuesses []string
	var txtIWAD string
	if txtData != nil {
		txtData.Populate(led)
		txtGuesses = txtData.WadStrings
		txtIWAD = txtData.IWAD
		notes.addAll(txtData.Notes)
	}

	raw, err := os.ReadFile(d.Path)
	if err != nil {
		result.Err = fmt.Errorf("read demo %s: %w", d.Name, err)
		return result
	}
	recordedAt := archive.ResolveRecordedAt(d.RecordedAt, txtDate, p.cfg.Dates, p.log)
	demoData := demo.Parse(raw, recordedAt)
	demoData.Populate(led)
	notes.addAll(demoData.Notes)

	iwad := demoData.IWAD
	if iwad == "" {
		iwad = txtIWAD
	}
	guesses := p.rules.Guess([][]string{postGuesses, txtGuesses, demoData.Resources}, iwad)

	var stats model.RunStats
	if !p.cfg.Playback.Skip {
		playback, err := p.analyzer.Analyze(ctx, replay.Input{
			LMP:         d.Path,
			Guesses:     guesses,
			Skill:       demoData.Skill,
			NumPlayers:  demoData.NumPlayers,
			SourcePort:  demoData.SourcePort,
			Complevel:   demoData.Complevel,
			FooterFiles: demoData.Resources,
		})
		if err != nil {
			result.Err = fmt.Errorf("replay %s: %w", d.Name, err)
			return result
		}
		if playback.PlaybackFailed {
			p.log.Info("skipping demo, playback failed",
				zap.String("lmp", d.Name), zap.String("archive", a.Path))
			result.PlaybackFailed = true
			return result
		}
		playback.Populate(led, p.cfg.Playback.TrustCategory)
		notes.addAll(playback.Notes)
		stats = playback.Stats
	}

	record, err := p.assembler.Assemble(led, notes.sorted(), stats)
	if err != nil {
		result.Err = fmt.Errorf("assemble %s: %w", d.Name, err)
		return result
	}
	result.Record = record
	return result
}

// readTextfile parses the demo's own readme, or the archive's primary one
// when the demo has none. The readme date always falls back to the primary
// readme's, since a demo-pack member often has no readme of its own.
func (p *Pipeline) readTextfile(d archive.Demo, a *archive.Archive) (*textfile.Data, time.Time) {
	path := d.TextfilePath
	date := d.TextfileDate
	if path == "" {
		path = a.PrimaryTextfile
		date = a.PrimaryTextfileDate
	}
	if date.IsZero() {
		date = a.PrimaryTextfileDate
	}
	if path == "" {
		return nil, date
	}
	text, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("unreadable readme", zap.String("path", path), zap.Error(err))
		return nil, date
	}
	return textfile.Parse(string(text)), date
}

// noteSet accumulates advisory notes without duplicates.
type noteSet struct {
	seen map[string]bool
}

func newNoteSet() *noteSet {
	return &noteSet{seen: make(map[string]bool)}
}

func (n *noteSet) add(note string) {
	n.seen[note] = true
}

func (n *noteSet) addAll(notes []string) {
	for _, note := range notes {
		n.add(note)
	}
}

func (n *noteSet) sorted() []string {
	out := make([]string, 0, len(n.seen))
	for note := range n.seen {
		out = append(out, note)
	}
	sort.Strings(out)
	return out
}
