package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/cache"
	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/rules"
)

const testTable = `
https://www.dsdarchive.com/wads/valiant:
  wad_name: valiant
  iwad: doom2
  complevel: 9
  playback_cmd_line: "-file valiant"
  wad_files:
    valiant.wad: {checksum: "aaaa"}
  map_list_info:
    map_ranges: ["1-32"]
    d2all: ["Map 01", "Map 03"]
    episodes:
      - ["Map 01", "Map 02"]
    map_info:
      "Map 07":
        tyson_only: true
      "Map 09":
        skip_also_pacifist: true
https://www.dsdarchive.com/wads/scythe:
  wad_name: scythe
  iwad: doom2
  complevel: 2
  playback_cmd_line: "-file scythe"
  wad_files:
    scythe.wad: {checksum: "bbbb"}
  map_list_info:
    map_ranges: ["1-32"]
    secret_exits:
      "Map 02": "Map 04"
`

func testSets(t *testing.T) *rules.Index {
	t.Helper()
	idx, err := rules.Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Failed to parse rule table: %v", err)
	}
	return idx
}

func testSet(t *testing.T, idx *rules.Index, url string) *rules.ResourceSet {
	t.Helper()
	set, ok := idx.ByURL(url)
	if !ok {
		t.Fatalf("Rule table has no set for %s", url)
	}
	return set
}

// fakeEngine serves canned transcripts keyed on the candidate's args and
// records every run for order assertions.
type fakeEngine struct {
	responses map[string]*Transcripts
	calls     []Candidate
}

func (f *fakeEngine) Run(_ context.Context, _ string, c Candidate) (*Transcripts, error) {
	f.calls = append(f.calls, c)
	if t, ok := f.responses[c.Args]; ok {
		return t, nil
	}
	return nil, errors.New("no transcripts produced")
}

func analysisText(lines ...string) string {
	base := []string{
		"skill 4", "nomonsters 0", "respawn 0", "fast 0", "pacifist 0",
		"stroller 0", "reality 0", "almost_reality 0", "100k 1", "100s 1",
		"weapon_collector 0", "tyson_weapons 0", "turbo 0",
	}
	return strings.Join(append(base, lines...), "\n") + "\n"
}

func newAnalyzer(engine Engine, opts Options) *Analyzer {
	return NewAnalyzer(engine, opts, zap.NewNop())
}

func TestParseLevelstat_SingleLevel(t *testing.T) {
	stats, err := parseLevelstat("MAP31s - 2:30.51 (2:30)  K: 80/80  I: 12/12  S: 3/3\n")
	if err != nil {
		t.Fatalf("Failed to parse levelstat: %v", err)
	}
	want := model.RunStats{{
		Level: "Map 31s", Time: "2:30.51", TotalTime: "2:30",
		Kills: "80/80", Items: "12/12", Secrets: "3/3", SecretExit: true,
	}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Levelstat mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLevelstat_CoopColumns(t *testing.T) {
	stats, err := parseLevelstat("E3M7 - 0:26.97 (0:26)  K: 3/38 (3+0)  I: 0/8 (0+0)  S: 0/4  (0+0)\n")
	if err != nil {
		t.Fatalf("Failed to parse coop levelstat: %v", err)
	}
	s := stats[0]
	if s.Level != "E3M7" || s.Kills != "3/38" || s.Items != "0/8" || s.Secrets != "0/4" {
		t.Errorf("Unexpected coop columns: %+v", s)
	}
}

func TestParseLevelstat_RejectsGarbage(t *testing.T) {
	if _, err := parseLevelstat("segmentation fault\n"); err == nil {
		t.Error("Expected parse to reject a malformed line")
	}
	if _, err := parseLevelstat("\n\n"); err == nil {
		t.Error("Expected parse to reject an empty transcript")
	}
}

func TestParseAnalysis(t *testing.T) {
	parsed, err := parseAnalysis(analysisText("category UV Tyson"))
	if err != nil {
		t.Fatalf("Failed to parse analysis: %v", err)
	}
	if parsed.category != "Tyson" {
		t.Errorf("Expected engine category alias to apply, got %q", parsed.category)
	}
	if !parsed.flag("100k") || parsed.flag("turbo") {
		t.Errorf("Unexpected flags: %v", parsed.flags)
	}
	if _, err := parseAnalysis("skill 4\n"); err == nil {
		t.Error("Expected parse to reject a transcript without a category")
	}
}

func TestAnalyze_TysonCorrection(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:23.00 (1:23)  K: 100/100  I: 50/50  S: 10/10\n",
			Analysis:  analysisText("tyson_weapons 1", "category UV Max"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "va01-123.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Category != "Tyson" {
		t.Errorf("Expected a Tyson-weapons max run to become Tyson, got %q", r.Category)
	}
	if r.Level != "Map 01" || r.Time != "1:23.00" || r.Kills != "100/100" {
		t.Errorf("Unexpected run facts: %+v", r)
	}
}

func TestAnalyze_TysonOnlyMapKeepsMax(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP07 - 1:23.00 (1:23)  K: 10/10  I: 5/5  S: 0/0\n",
			Analysis:  analysisText("tyson_weapons 1", "category UV Max"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "va07-123.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Category != "UV Max" {
		t.Errorf("Expected a tyson-only map to stay UV Max, got %q", r.Category)
	}
}

func TestAnalyze_StrollerCorrection(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 0:40.00 (0:40)  K: 0/100  I: 0/50  S: 0/10\n",
			Analysis:  analysisText("stroller 1", "category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "va01str.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Category != "Stroller" {
		t.Errorf("Expected a stroller-flagged speed run to become Stroller, got %q", r.Category)
	}
}

func TestAnalyze_AlsoPacifistNote(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	run := func(level string) *Result {
		engine := &fakeEngine{responses: map[string]*Transcripts{
			"-file valiant": {
				Levelstat: level + " - 1:00.00 (1:00)  K: 100/100  I: 50/50  S: 10/10\n",
				Analysis:  analysisText("pacifist 1", "category UV Max"),
			},
		}}
		r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
			LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
		})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		return r
	}

	if r := run("MAP01"); !containsString(r.Notes, "Also Pacifist") {
		t.Errorf("Expected a pacifist-flagged max run to carry the note, got %v", r.Notes)
	}
	// Map 09 opts out of the note in the rule table
	if r := run("MAP09"); containsString(r.Notes, "Also Pacifist") {
		t.Errorf("Expected the opt-out map to carry no pacifist note, got %v", r.Notes)
	}
}

func TestAnalyze_RealityNoteSuppressedInNomo(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	run := func(lines ...string) *Result {
		engine := &fakeEngine{responses: map[string]*Transcripts{
			"-file valiant": {
				Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/100  I: 0/50  S: 0/10\n",
				Analysis:  analysisText(lines...),
			},
		}}
		r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
			LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
		})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		return r
	}

	if r := run("reality 1", "category UV Speed"); !containsString(r.Notes, "Also Reality") {
		t.Errorf("Expected a reality run to carry the note, got %v", r.Notes)
	}
	if r := run("reality 1", "nomonsters 1", "category NoMo"); containsString(r.Notes, "Also Reality") {
		t.Errorf("Expected no reality note without monsters, got %v", r.Notes)
	}
	if r := run("almost_reality 1", "category UV Speed"); !containsString(r.Notes, "Also Almost Reality") {
		t.Errorf("Expected an almost-reality run to carry the note, got %v", r.Notes)
	}
}

func TestAnalyze_ForcedSoloNet(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant -solo-net": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 100/100  I: 50/50  S: 10/10\n",
			Analysis:  analysisText("category UV Max"),
		},
	}}
	r, err := newAnalyzer(engine, Options{AlwaysTrySoloNet: true}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !r.SoloNet {
		t.Error("Expected the forced -solo-net playback to set solo-net")
	}
	if !containsString(r.Notes, "Plays back with forced -solo-net") {
		t.Errorf("Expected the forced solo-net note, got %v", r.Notes)
	}
	if len(engine.calls) != 2 {
		t.Errorf("Expected the plain candidate to run first, got %d calls", len(engine.calls))
	}
}

func TestAnalyze_ExhaustiveKeepsLongestPlayback(t *testing.T) {
	idx := testSets(t)
	valiant := testSet(t, idx, "https://www.dsdarchive.com/wads/valiant")
	scythe := testSet(t, idx, "https://www.dsdarchive.com/wads/scythe")
	short := &Transcripts{
		Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
		Analysis:  analysisText("category UV Speed"),
	}
	long := &Transcripts{
		Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n" +
			"MAP02 - 1:30.00 (2:30)  K: 0/10  I: 0/5  S: 0/1\n" +
			"MAP03 - 1:00.00 (3:30)  K: 0/10  I: 0/5  S: 0/1\n",
		Analysis: analysisText("category UV Speed"),
	}
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file scythe": short, "-file valiant": long,
	}}

	r, err := newAnalyzer(engine, Options{Exhaustive: true}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{scythe, valiant}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Wad != "valiant" {
		t.Errorf("Expected the longer playback to win, got %q", r.Wad)
	}
	if len(engine.calls) != 2 {
		t.Errorf("Expected exhaustive mode to try every candidate, got %d calls", len(engine.calls))
	}
}

func TestAnalyze_FirstSuccessWins(t *testing.T) {
	idx := testSets(t)
	valiant := testSet(t, idx, "https://www.dsdarchive.com/wads/valiant")
	scythe := testSet(t, idx, "https://www.dsdarchive.com/wads/scythe")
	transcripts := &Transcripts{
		Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
		Analysis:  analysisText("category UV Speed"),
	}
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file scythe": transcripts, "-file valiant": transcripts,
	}}

	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{scythe, valiant}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Wad != "scythe" || len(engine.calls) != 1 {
		t.Errorf("Expected the first guess to settle the playback, got %q after %d calls",
			r.Wad, len(engine.calls))
	}
}

func TestAnalyze_MovieD2All(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:00.51 (1:00)  K: 0/10  I: 0/5  S: 0/1\n" +
				"MAP02 - 1:30.20 (2:30)  K: 0/10  I: 0/5  S: 0/1\n" +
				"MAP03 - 1:00.00 (3:30)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis: analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Level != "D2All" {
		t.Errorf("Expected a full-range movie to be D2All, got %q", r.Level)
	}
	if r.Time != "3:30" {
		t.Errorf("Expected the final cumulative time, got %q", r.Time)
	}
	if r.Levelstat != "1:00,1:30,1:00" {
		t.Errorf("Expected truncated per-level times, got %q", r.Levelstat)
	}
}

func TestAnalyze_MovieEpisode(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n" +
				"MAP02 - 1:30.00 (2:30)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis: analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Level != "Episode 1" {
		t.Errorf("Expected an episode-range movie, got %q", r.Level)
	}
}

func TestAnalyze_OtherMovieSkipsSecretMaps(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/scythe")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file scythe": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 10/10  I: 5/5  S: 1/1\n" +
				"MAP02 - 1:30.00 (2:30)  K: 10/10  I: 5/5  S: 1/1\n" +
				"MAP03 - 1:00.00 (3:30)  K: 10/10  I: 5/5  S: 1/1\n",
			Analysis: analysisText("category UV Max"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Level != "Other Movie" {
		t.Errorf("Expected a max movie skipping its secret map to be Other Movie, got %q", r.Level)
	}
	if !containsString(r.Notes, "Does not visit secret maps.") {
		t.Errorf("Expected the secret-map note, got %v", r.Notes)
	}
	if !containsString(r.Notes, "Other Movie Map 01 - Map 03") {
		t.Errorf("Expected the movie range note, got %v", r.Notes)
	}
}

func TestAnalyze_UnexpectedFooterFileRejectsCandidate(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis:  analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
		FooterFiles: []string{"sunlust.wad"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !r.PlaybackFailed {
		t.Error("Expected a footer referencing a foreign wad to reject the playback")
	}
}

func TestAnalyze_AllowedFooterFilesPass(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis:  analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
		FooterFiles: []string{"valiant", "DOOM2.WAD", "prboom-plus.wad", "glboom.cfg"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.PlaybackFailed {
		t.Error("Expected the set's own files and companions to pass the footer check")
	}
}

func TestAnalyze_IncompatibleComplevel(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP01 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis:  analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
		Complevel: "2",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !containsString(r.Notes, "Incompatible") {
		t.Errorf("Expected a complevel mismatch to flag the run, got %v", r.Notes)
	}
}

func TestAnalyze_ForeignMapNeedsAttention(t *testing.T) {
	table := strings.Replace(testTable, `map_ranges: ["1-32"]
    d2all`, `map_ranges: ["1-3"]
    d2all`, 1)
	idx, err := rules.Parse([]byte(table))
	if err != nil {
		t.Fatalf("Failed to parse rule table: %v", err)
	}
	set := testSet(t, idx, "https://www.dsdarchive.com/wads/valiant")
	engine := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {
			Levelstat: "MAP05 - 1:00.00 (1:00)  K: 0/10  I: 0/5  S: 0/1\n",
			Analysis:  analysisText("category UV Speed"),
		},
	}}
	r, err := newAnalyzer(engine, Options{}).Analyze(context.Background(), Input{
		LMP: "x.lmp", Guesses: []*rules.ResourceSet{set}, Skill: 4, NumPlayers: 1,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.Level != model.NeedsAttention {
		t.Errorf("Expected a level outside the wad to need attention, got %q", r.Level)
	}
	if !containsString(r.Notes, "Run for map that is not part of the wad.") {
		t.Errorf("Expected the foreign map note, got %v", r.Notes)
	}
}

func TestRankGuesses(t *testing.T) {
	idx := testSets(t)
	valiant := testSet(t, idx, "https://www.dsdarchive.com/wads/valiant")
	scythe := testSet(t, idx, "https://www.dsdarchive.com/wads/scythe")

	ranked := rankGuesses([]*rules.ResourceSet{valiant, scythe, scythe})
	if len(ranked) != 2 || ranked[0] != scythe || ranked[1] != valiant {
		t.Errorf("Expected the twice-guessed set first, got %v", ranked)
	}

	ranked = rankGuesses([]*rules.ResourceSet{valiant, scythe})
	if ranked[0] != valiant {
		t.Error("Expected ties to keep first-seen order")
	}
}

func TestPopulate_CategoryCertainty(t *testing.T) {
	r := &Result{
		Wad: "valiant", Category: "UV Max", Level: "Map 01", Time: "1:23.00",
		Levelstat: "1:23.00", Kills: "100/100", Items: "50/50", Secrets: "10/10",
	}

	led := ledger.New()
	r.Populate(led, false)
	if !led.Evaluate(model.FieldCategory).NeedsAttention {
		t.Error("Expected an untrusted category to need attention")
	}
	if led.Evaluate(model.FieldTime).NeedsAttention {
		t.Error("Expected the measured time to be settled")
	}

	led = ledger.New()
	r.Populate(led, true)
	if led.Evaluate(model.FieldCategory).NeedsAttention {
		t.Error("Expected a trusted category to be settled")
	}
}

func TestCachedEngine_HitSkipsInner(t *testing.T) {
	set := testSet(t, testSets(t), "https://www.dsdarchive.com/wads/valiant")
	inner := &fakeEngine{responses: map[string]*Transcripts{
		"-file valiant": {Levelstat: "stat", Analysis: "category UV Max\n"},
	}}
	cached := NewCachedEngine(inner, cache.NewMemoryCache(time.Minute, time.Minute))
	candidate := Candidate{Set: set, Args: "-file valiant"}

	first, err := cached.Run(context.Background(), "x.lmp", candidate)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := cached.Run(context.Background(), "x.lmp", candidate)
	if err != nil {
		t.Fatalf("Cached run failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Cached transcripts mismatch (-first +second):\n%s", diff)
	}
	if len(inner.calls) != 1 {
		t.Errorf("Expected the second run to come from cache, got %d engine calls", len(inner.calls))
	}

	// Failures pass through and stay uncached
	if _, err := cached.Run(context.Background(), "x.lmp", Candidate{Set: set, Args: "-file other"}); err == nil {
		t.Error("Expected a failed playback to surface its error")
	}
	if len(inner.calls) != 2 {
		t.Errorf("Expected the failure to reach the engine, got %d calls", len(inner.calls))
	}
}
