package replay

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/rules"
)

// Categories that require visiting every secret map of a movie run.
var allSecretsCategories = []string{
	"UV Max", "UV Fast", "UV Respawn", "NM 100S", "NoMo 100S", "SM Max", "BP Max",
	"Skill 3 Max", "Skill 3 Fast", "Skill 3 Respawn", "Skill 3 100S", "Skill 3 NoMo 100S",
	"Skill 2 Max", "Skill 2 Fast", "Skill 2 Respawn", "Skill 2 100S", "Skill 2 NoMo 100S",
	"Skill 1 Max", "Skill 1 Fast", "Skill 1 Respawn", "Skill 1 100S", "Skill 1 NoMo 100S",
}

// Categories that require killing everything, which also forces visiting
// secret maps (except configured no-monster ones).
var allKillsCategories = []string{
	"UV Max", "UV Fast", "UV Respawn", "UV Tyson", "Tyson", "Skill 3 Max", "Skill 3 Fast",
	"Skill 3 Respawn", "Skill 3 Tyson", "Skill 2 Max", "Skill 2 Fast", "Skill 2 Respawn",
	"Skill 2 Tyson", "Skill 1 Max", "Skill 1 Fast", "Skill 1 Respawn", "Skill 1 Tyson",
}

// Companion files recorders commonly load; their presence in a footer never
// disqualifies a resource-set guess.
var allowedFooterFiles = []string{
	"bloodcolor.deh", "bloodfix.deh", "doom widescreen hud.wad",
	"doom 2 widescreen assets.wad", "dsda-doom.wad", "prboom-plus.wad",
	"doom_wide.wad", "notransl.deh", "doomgirl_01.wad", "good.deh",
}

var chexFooterFiles = []string{"chex.deh", "chexehud.wad"}

// Footer entries with these extensions count as resource references; other
// extensions are engine config noise.
var footerResourceExtensions = []string{".bex", ".deh", ".hhe", ".pk3", ".pk7", ".wad"}

var doom1LevelRegex = regexp.MustCompile(`^E(\d)M\ds?$`)

// Notes attached to records by the correction pipeline.
const (
	noteForcedSoloNet   = "Plays back with forced -solo-net"
	noteForcedComplevel = "Plays back with forced -complevel 5"
	noteIncompatible    = "Incompatible"
	noteTurbo           = "Uses turbo"
	noteAlsoReality     = "Also Reality"
	noteAlsoAlmost      = "Also Almost Reality"
	noteAlsoPacifist    = "Also Pacifist"
	noteForeignMap      = "Run for map that is not part of the wad."
	noteNoSecretMaps    = "Does not visit secret maps."
	noteGoodDeh         = "Good at DooM: gib yourself to end the level."
)

// Options tune the analyzer.
type Options struct {
	// Exhaustive runs every candidate and keeps the longest playback
	// instead of stopping at the first success.
	Exhaustive bool
	// AlwaysTrySoloNet adds forced -solo-net retries for every candidate.
	AlwaysTrySoloNet bool
	// TrustCategory promotes the engine's category guess to certain.
	TrustCategory bool
}

// Input is everything known about a demo before playback.
type Input struct {
	LMP        string
	Guesses    []*rules.ResourceSet
	Skill      int
	NumPlayers int
	SourcePort string
	Complevel  string
	// FooterFiles are the resource names the demo's own footer referenced.
	FooterFiles []string
}

// skillName maps the raw header skill byte onto the rule table's buckets.
func skillName(raw int) string {
	switch {
	case raw > 0 && raw < 3:
		return rules.SkillEasy
	case raw == 3:
		return rules.SkillMedium
	case raw > 3 && raw < 6:
		return rules.SkillHard
	default:
		return ""
	}
}

// Result is the outcome of one demo's playback analysis. PlaybackFailed
// means no candidate reproduced a clean replay: the result carries no facts
// and the demo is a hard stop for its caller.
type Result struct {
	PlaybackFailed bool

	Set        *rules.ResourceSet
	Wad        string
	Category   string
	Level      string
	SecretExit bool
	Time       string
	Levelstat  string
	Kills      string
	Items      string
	Secrets    string
	SoloNet    bool
	Stats      model.RunStats
	Notes      []string

	noteSet map[string]bool
}

func (r *Result) addNote(note string) {
	if r.noteSet == nil {
		r.noteSet = make(map[string]bool)
	}
	if r.noteSet[note] {
		return
	}
	r.noteSet[note] = true
	r.Notes = append(r.Notes, note)
}

// Populate inserts the playback facts. Everything the engine measured is
// certain; its category guess is not, unless configured to be trusted.
func (r *Result) Populate(led *ledger.Ledger, trustCategory bool) {
	if r.PlaybackFailed {
		return
	}
	led.Insert(model.FieldWad, r.Wad, model.Certain, model.SourcePlayback)
	led.Insert(model.FieldLevel, r.Level, model.Certain, model.SourcePlayback)
	led.Insert(model.FieldSecretExit, r.SecretExit, model.Certain, model.SourcePlayback)
	led.Insert(model.FieldTime, r.Time, model.Certain, model.SourcePlayback)
	led.Insert(model.FieldLevelstat, r.Levelstat, model.Certain, model.SourcePlayback)
	if r.Kills != "" {
		led.Insert(model.FieldKills, r.Kills, model.Certain, model.SourcePlayback)
		led.Insert(model.FieldItems, r.Items, model.Certain, model.SourcePlayback)
		led.Insert(model.FieldSecrets, r.Secrets, model.Certain, model.SourcePlayback)
	}
	if r.SoloNet {
		led.Insert(model.FieldSoloNet, true, model.Certain, model.SourcePlayback)
	}
	certainty := model.Possible
	if trustCategory {
		certainty = model.Certain
	}
	led.Insert(model.FieldCategory, r.Category, certainty, model.SourcePlayback)
}

// Analyzer drives the replay engine across candidate resource sets and
// corrects the engine's raw category guess against the rule table.
type Analyzer struct {
	engine Engine
	opts   Options
	log    *zap.Logger
}

// NewAnalyzer creates an analyzer around the given engine.
func NewAnalyzer(engine Engine, opts Options, log *zap.Logger) *Analyzer {
	return &Analyzer{engine: engine, opts: opts, log: log}
}

type playback struct {
	candidate   Candidate
	transcripts *Transcripts
	levels      int
}

// Analyze plays the demo back and assembles the corrected result.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*Result, error) {
	best := a.playback(ctx, in)
	if best == nil {
		a.log.Warn("no candidate reproduced the demo", zap.String("lmp", in.LMP))
		return &Result{PlaybackFailed: true}, nil
	}

	r := &Result{Set: best.candidate.Set, Wad: best.candidate.Set.PublishedName()}
	gameMode := rules.ModeSinglePlayer
	if in.NumPlayers > 1 {
		gameMode = rules.ModeCoop
	}
	if strings.Contains(best.candidate.Args, "-solo-net") {
		gameMode = rules.ModeCoop
		r.SoloNet = true
		r.addNote(noteForcedSoloNet)
	}
	if strings.Contains(best.candidate.Args, "-complevel 5") {
		r.addNote(noteForcedComplevel)
	}
	skill := skillName(in.Skill)

	parsed, err := parseAnalysis(best.transcripts.Analysis)
	if err != nil {
		return nil, fmt.Errorf("analysis transcript: %w", err)
	}
	r.Category = parsed.category
	if parsed.flag("turbo") {
		// What kind of turbo usage it is takes manual effort to tell.
		r.addNote(noteTurbo)
	}

	stats, err := parseLevelstat(best.transcripts.Levelstat)
	if err != nil {
		return nil, fmt.Errorf("levelstat transcript: %w", err)
	}
	r.Stats = stats

	if stats.IsMovie() {
		a.fillMovie(r, skill, gameMode)
	} else {
		a.fillSingle(r, skill, gameMode)
		a.correct(r, parsed, skill, gameMode)
	}

	if in.Complevel != "" && in.Complevel != fmt.Sprint(r.Set.Complevel) {
		r.addNote(noteIncompatible)
	}
	if best.candidate.UpdateSet != "" {
		r.Wad = best.candidate.UpdateSet
	}
	if best.candidate.Note != "" {
		r.addNote(best.candidate.Note)
	}
	return r, nil
}

// playback tries candidates in descending guess priority and returns the
// accepted one, or nil when every candidate failed.
func (a *Analyzer) playback(ctx context.Context, in Input) *playback {
	var best *playback
	for _, set := range rankGuesses(in.Guesses) {
		if file, ok := unexpectedFooterFile(in.FooterFiles, set); ok {
			a.log.Warn("demo footer references a resource the set cannot explain",
				zap.String("set", set.Name), zap.String("file", file))
			continue
		}
		for _, candidate := range a.candidates(set, in) {
			transcripts, err := a.engine.Run(ctx, in.LMP, candidate)
			if err != nil {
				a.log.Debug("candidate failed",
					zap.String("set", set.Name), zap.String("args", candidate.Args),
					zap.Error(err))
				continue
			}
			cur := &playback{
				candidate:   candidate,
				transcripts: transcripts,
				levels:      len(strings.Split(strings.TrimSpace(transcripts.Levelstat), "\n")),
			}
			if best == nil || cur.levels > best.levels {
				best = cur
			}
			if !a.opts.Exhaustive {
				return best
			}
		}
		if best != nil && !a.opts.Exhaustive {
			return best
		}
	}
	return best
}

// candidates expands one resource-set guess into its command-line variants,
// in preference order.
func (a *Analyzer) candidates(set *rules.ResourceSet, in Input) []Candidate {
	cmds := []Candidate{{Set: set, Args: set.PlaybackCmd}}
	for _, alt := range set.AltCmds {
		cmds = append(cmds, Candidate{
			Set: set, Args: alt.Args, Note: alt.Note, UpdateSet: alt.UpdateSet,
		})
	}
	if a.opts.AlwaysTrySoloNet {
		for _, c := range cmds {
			c.Args += " -solo-net"
			cmds = append(cmds, c)
		}
	}
	// TASDoom demos sometimes need the complevel spelled out
	if in.SourcePort == "TASDoom" {
		for _, c := range cmds {
			c.Args += " -complevel 5"
			cmds = append(cmds, c)
		}
	}
	for _, footerFile := range in.FooterFiles {
		if strings.ToLower(footerFile) == "good.deh" {
			for _, c := range cmds {
				c.Args += " -deh good"
				c.Note = noteGoodDeh
				cmds = append(cmds, c)
			}
			break
		}
	}
	return cmds
}

// rankGuesses orders candidate sets by how many sources suggested them,
// most agreed-upon first, keeping first-seen order on ties.
func rankGuesses(guesses []*rules.ResourceSet) []*rules.ResourceSet {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var order []*rules.ResourceSet
	for i, set := range guesses {
		if _, seen := counts[set.URL]; !seen {
			firstSeen[set.URL] = i
			order = append(order, set)
		}
		counts[set.URL]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i].URL] != counts[order[j].URL] {
			return counts[order[i].URL] > counts[order[j].URL]
		}
		return firstSeen[order[i].URL] < firstSeen[order[j].URL]
	})
	return order
}

// unexpectedFooterFile checks every resource the demo's footer referenced
// against the matched set's file list. A reference the set cannot explain
// disqualifies the candidate: the playback succeeded against the wrong wad.
func unexpectedFooterFile(footerFiles []string, set *rules.ResourceSet) (string, bool) {
	for _, footerFile := range footerFiles {
		name := strings.ToLower(filepath.Base(footerFile))
		ext := filepath.Ext(name)
		if ext == "" {
			name += ".wad"
			ext = ".wad"
		}
		if set.HasFile(name) || name == set.IWAD+".wad" {
			continue
		}
		if containsString(allowedFooterFiles, name) {
			continue
		}
		if set.IWAD == "chex" && containsString(chexFooterFiles, name) {
			continue
		}
		if containsString(footerResourceExtensions, ext) {
			return footerFile, true
		}
	}
	return "", false
}

// fillSingle fills the result for a single-level run.
func (a *Analyzer) fillSingle(r *Result, skill, gameMode string) {
	s := r.Stats[0]
	r.Level = a.checkedLevel(r, s.Level)
	r.SecretExit = s.SecretExit
	plain := strings.TrimSuffix(r.Level, "s")

	// Completeness categories are recorded on the plain level even when
	// the run leaves through the secret exit, as may be any level the
	// rule table marks that way.
	markNormal, _ := r.Set.Maps.MapInfo(plain).BoolKey("mark_secret_exit_as_normal", skill, gameMode)
	if containsString(allKillsCategories, r.Category) ||
		containsString(allSecretsCategories, r.Category) || markNormal {
		r.Level = plain
	}

	r.Time = s.Time
	r.Levelstat = s.Time
	r.Kills = s.Kills
	r.Items = s.Items
	r.Secrets = s.Secrets
}

// fillMovie fills the result for a multi-level run: the final time comes
// from the last line's cumulative column and the levelstat strings the
// truncated per-level times together.
func (a *Analyzer) fillMovie(r *Result, skill, gameMode string) {
	last := r.Stats[len(r.Stats)-1]
	r.Time = last.TotalTime

	times := make([]string, 0, len(r.Stats))
	for _, s := range r.Stats {
		times = append(times, strings.SplitN(s.Time, ".", 2)[0])
		a.checkedLevel(r, s.Level)
	}
	r.Levelstat = strings.Join(times, ",")

	a.detectMovieRange(r, skill, gameMode)
}

// checkedLevel verifies the level falls in the set's declared ranges. A
// level outside the wad means the playback exited somewhere it should not
// have; the record then needs a human.
func (a *Analyzer) checkedLevel(r *Result, level string) string {
	ok, err := r.Set.Maps.ContainsLevel(level)
	if err != nil {
		a.log.Warn("cannot parse level for range check",
			zap.String("set", r.Set.Name), zap.String("level", level))
		return level
	}
	if !ok {
		r.addNote(noteForeignMap)
		return model.NeedsAttention
	}
	return level
}

// detectMovieRange classifies a multi-level run as a whole-game run, an
// episode run, or an "Other Movie".
func (a *Analyzer) detectMovieRange(r *Result, skill, gameMode string) {
	levels := r.Stats.Levels()
	info := r.Set.Maps

	secretMaps := make(map[string]bool)
	for _, target := range info.SecretExits {
		secretMaps[target] = true
	}

	var first, last string
	for _, level := range levels {
		if secretMaps[level] {
			continue
		}
		if first == "" {
			first = level
		}
		last = level
	}
	// Some sets consist of nothing but secret maps
	if first == "" {
		first = levels[0]
		last = levels[len(levels)-1]
	}

	if !a.visitsRequiredSecretMaps(r, levels, skill, gameMode) {
		r.Level = "Other Movie"
		r.addNote(fmt.Sprintf("Other Movie %s - %s", first, last))
		r.addNote(noteNoSecretMaps)
		return
	}

	if info.HasD2All && first == info.D2All[0] && last == info.D2All[1] {
		r.Level = "D2All"
		return
	}
	if info.HasD1All && first == info.D1All[0] && last == info.D1All[1] {
		r.Level = "D1All"
		return
	}
	for idx, episode := range info.Episodes {
		if first == episode[0] && last == episode[1] {
			if m := doom1LevelRegex.FindStringSubmatch(first); m != nil {
				r.Level = "Episode " + m[1]
			} else {
				r.Level = fmt.Sprintf("Episode %d", idx+1)
			}
			return
		}
	}
	r.Level = "Other Movie"
	r.addNote(fmt.Sprintf("Other Movie %s - %s", first, last))
}

// visitsRequiredSecretMaps reports whether the run visited every secret map
// its category obliges it to. Categories without completeness requirements
// owe no secret-map visits.
func (a *Analyzer) visitsRequiredSecretMaps(r *Result, levels []string, skill, gameMode string) bool {
	needsSecrets := containsString(allSecretsCategories, r.Category)
	needsKills := containsString(allKillsCategories, r.Category)
	if !needsSecrets && !needsKills {
		return true
	}
	if len(r.Set.Maps.SecretExits) == 0 {
		return true
	}

	visited := make(map[string]bool, len(levels))
	for _, level := range levels {
		visited[level] = true
	}

	for exit, secretMap := range r.Set.Maps.SecretExits {
		if !visited[exit] {
			continue
		}
		if !needsSecrets {
			// Kill categories skip secret maps that hold no monsters
			nomo, _ := r.Set.Maps.MapInfo(secretMap).BoolKey("nomo_map", skill, gameMode)
			if nomo {
				continue
			}
		}
		if !visited[secretMap] {
			return false
		}
	}
	return true
}

// correct applies the category correction pipeline to a single-level run.
// The per-set special case comes last on purpose: its rules are stated in
// terms of the already-corrected category.
func (a *Analyzer) correct(r *Result, parsed *analysis, skill, gameMode string) {
	plain := strings.TrimSuffix(r.Level, "s")
	mapInfo := r.Set.Maps.MapInfo(plain)

	// A run with only Tyson weapons and all kills is published as Tyson
	// rather than UV Max, unless the map can only be played that way.
	if parsed.flag("tyson_weapons") && parsed.flag("100k") {
		tysonOnly, _ := mapInfo.BoolKey("tyson_only", skill, gameMode)
		if !tysonOnly && r.Category == "UV Max" {
			r.Category = "Tyson"
		}
	}

	nomo := parsed.flag("nomonsters")
	skipReality := a.skipNote(mapInfo, "skip_reality", "skip_reality_for_categories",
		r.Category, skill, gameMode)
	if parsed.flag("reality") {
		add := true
		if nomo {
			inNomo, _ := mapInfo.BoolKey("add_reality_in_nomo", skill, gameMode)
			add = inNomo
		}
		if skipReality {
			add = false
		}
		if add {
			r.addNote(noteAlsoReality)
		}
	} else if parsed.flag("almost_reality") {
		add := true
		if nomo {
			inNomo, _ := mapInfo.BoolKey("add_almost_reality_in_nomo", skill, gameMode)
			add = inNomo
		}
		if skipReality || a.skipNote(mapInfo, "skip_almost_reality",
			"skip_almost_reality_for_categories", r.Category, skill, gameMode) {
			add = false
		}
		if add {
			r.addNote(noteAlsoAlmost)
		}
	}

	// Maps without monsters play back as UV Speed even when walked; the
	// stroller flag decides.
	if parsed.flag("stroller") && r.Category == "UV Speed" {
		r.Category = "Stroller"
	}

	if parsed.flag("pacifist") && !nomo &&
		!containsString([]string{"Pacifist", "Stroller", "UV Speed"}, r.Category) &&
		!a.skipNote(mapInfo, "skip_also_pacifist", "skip_also_pacifist_for_categories",
			r.Category, skill, gameMode) {
		r.addNote(noteAlsoPacifist)
	}

	// Jumpwad redefines its categories: Pacifist does not exist and
	// UV Max requires every item.
	if r.Wad == "jumpwad" {
		allItems := true
		for _, s := range r.Stats {
			if !s.FullItems() {
				allItems = false
				break
			}
		}
		if !allItems && r.Category == "UV Max" {
			r.Category = "UV Speed"
		} else if r.Category == "Pacifist" {
			r.Category = "UV Speed"
		}
	}
}

// skipNote resolves a skip override plus its category-scoped variant.
func (a *Analyzer) skipNote(mapInfo rules.MapInfo, boolKey, categoriesKey, category, skill, gameMode string) bool {
	skip, _ := mapInfo.BoolKey(boolKey, skill, gameMode)
	if skip {
		return true
	}
	categories, _ := mapInfo.CategoriesKey(categoriesKey, skill, gameMode)
	return categories != nil && containsString(categories, category)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
