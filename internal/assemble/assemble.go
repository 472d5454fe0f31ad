// Package assemble turns a settled fact ledger plus advisory notes into the
// canonical record handed to the publishing side.
package assemble

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
)

// Ledger field names map onto shorter published keys.
var fieldToRecordKey = map[string]string{
	model.FieldTAS:     "tas",
	model.FieldSoloNet: "solo_net",
	model.FieldGuys:    "guys",
	model.FieldEngine:  "engine",
	model.FieldPlayers: "players",
}

// Publishing requires the version key even though nothing sets it yet.
var recordDefaults = map[string]any{
	"tas":      false,
	"solo_net": false,
	"version":  "0",
}

var requiredKeys = []string{
	"tas", "solo_net", "guys", "version", "wad", "engine", "time", "level",
	"levelstat", "category", "secret_exit", "recorded_at", "players",
}

var skillNoteRegex = regexp.MustCompile(`^Skill \d .+$`)

// Notes published verbatim as tags.
var miscNotes = []string{
	"Also Reality", "Also Almost Reality", "Uses turbo", "Uses longtics",
	"Also Pacifist", "Plays back with forced -complevel 5",
}

// Notes naming a playback switch; they extend the category tag instead of
// standing alone.
var miscCategoryNotes = []string{
	"-altdeath", "-coop_spawns", "-fast", "-nomonsters", "-respawn", "-solo-net",
}

// categoryShortcut is one known playback-vs-textfile disagreement that
// resolves to the playback value. The guarded ones only apply when the run's
// levels make the two categories behaviorally identical.
type categoryShortcut struct {
	playback          string
	textfile          string
	requiresNoSecrets bool
	requiresNoKills   bool
}

// The shortcut list is a set of empirically discovered pairs, not a general
// rule; any disagreement outside it stays a review case.
var categoryShortcuts = []categoryShortcut{
	{playback: "NoMo 100S", textfile: "NoMo"},
	{playback: "NM 100S", textfile: "NM Speed"},
	{playback: "Pacifist", textfile: "UV Speed"},
	{playback: "NoMo", textfile: "NoMo 100S", requiresNoSecrets: true},
	{playback: "NM Speed", textfile: "NM 100S", requiresNoSecrets: true},
	{playback: "UV Speed", textfile: "UV Max", requiresNoSecrets: true, requiresNoKills: true},
}

// Assembler builds records out of evaluated ledgers.
type Assembler struct {
	log *zap.Logger
}

// New creates an assembler.
func New(log *zap.Logger) *Assembler {
	return &Assembler{log: log}
}

// Assemble drains the ledger into a record, resolves known category
// disagreements, applies defaults, force-fills required keys and derives
// the tag block from the advisory notes.
func (a *Assembler) Assemble(led *ledger.Ledger, notes []string, stats model.RunStats) (*model.Record, error) {
	record := &model.Record{Fields: make(map[string]any)}

	for _, eval := range led.Evaluations() {
		key := eval.Field
		if mapped, ok := fieldToRecordKey[key]; ok {
			key = mapped
		}
		if eval.NeedsAttention {
			a.fillUnsettled(record, key, eval, stats)
			continue
		}
		value, _ := eval.Single()
		if value == model.NeedsAttention {
			a.log.Warn("field settled on the attention sentinel", zap.String("field", key))
			record.HasIssue = true
		}
		record.Fields[key] = value
	}

	for key, def := range recordDefaults {
		if _, ok := record.Fields[key]; !ok {
			record.Fields[key] = def
		}
	}
	for _, key := range requiredKeys {
		if _, ok := record.Fields[key]; !ok {
			a.log.Error("required key missing from assembled record", zap.String("field", key))
			record.HasIssue = true
			record.Fields[key] = model.NeedsAttention
		}
	}

	// Player lists travel through the ledger as a single joined value
	if joined, ok := record.Fields["players"].(string); ok {
		if joined == model.NeedsAttention {
			record.Fields["players"] = []string{model.NeedsAttention}
		} else {
			record.Fields["players"] = model.SplitPlayers(joined)
		}
	}

	if record.Fields["category"] == "Other" {
		record.HasIssue = true
	}

	if err := a.buildTags(record, notes); err != nil {
		return nil, err
	}
	return record, nil
}

// fillUnsettled handles a field the ledger could not settle. Category
// disagreements get one more chance through the shortcut table; everything
// else fills optimistically or with the sentinel, flagging the record.
func (a *Assembler) fillUnsettled(record *model.Record, key string, eval ledger.Evaluation, stats model.RunStats) {
	if eval.Field == model.FieldCategory {
		if resolved, ok := resolveCategory(eval, stats); ok {
			a.log.Info("resolved category disagreement from playback",
				zap.String("category", resolved))
			record.Fields[key] = resolved
			return
		}
	}

	a.log.Warn("field needs attention",
		zap.String("field", key), zap.String("reason", eval.Reason))
	if value, ok := eval.Single(); ok {
		// A single unconfirmed value is still the best guess available
		record.Fields[key] = value
	} else {
		record.Fields[key] = model.NeedsAttention
	}
	record.HasIssue = true

	// An unsettled tool-assistance verdict means the demo was neither in a
	// tool-assisted thread nor marked in its textfile; a reviewer has to
	// rule out cheating.
	if eval.Field == model.FieldTAS {
		record.MaybeCheated = true
	}
}

// resolveCategory applies the known equivalence pairs to a playback-vs-
// textfile category disagreement.
func resolveCategory(eval ledger.Evaluation, stats model.RunStats) (string, bool) {
	var playback, textfile string
	for value, sources := range eval.Values {
		category, ok := value.(string)
		if !ok {
			return "", false
		}
		switch {
		case containsString(sources, model.SourcePlayback):
			playback = category
		case containsString(sources, model.SourceTextfile):
			textfile = category
		}
	}
	if playback == "" || textfile == "" {
		return "", false
	}

	noKills, noSecrets := true, true
	for _, s := range stats {
		if !s.ZeroKills() {
			noKills = false
		}
		if !s.ZeroSecrets() {
			noSecrets = false
		}
	}

	for _, shortcut := range categoryShortcuts {
		if shortcut.playback != playback || shortcut.textfile != textfile {
			continue
		}
		if shortcut.requiresNoSecrets && !noSecrets {
			continue
		}
		if shortcut.requiresNoKills && !noKills {
			continue
		}
		return playback, true
	}
	return "", false
}

// buildTags derives the record's single tag block: the movie-range line,
// then a category-variant line, then the remaining notes sorted. Records
// without notes carry no tags.
func (a *Assembler) buildTags(record *model.Record, notes []string) error {
	if len(notes) == 0 {
		return nil
	}

	text := movieTag(notes)
	variant, err := a.variantTag(record, notes)
	if err != nil {
		return err
	}
	text += variant
	text += a.miscTags(record, notes)

	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	record.Tags = []model.Tag{{Show: true, Text: text}}
	return nil
}

// movieTag renders the non-standard movie range, when present. The level
// field already says it is an "Other Movie"; the tag carries the range.
func movieTag(notes []string) string {
	var movieRange, noSecretMaps string
	for _, note := range notes {
		if r, ok := strings.CutPrefix(note, "Other Movie "); ok {
			movieRange = r
		}
		if note == "Does not visit secret maps." {
			noSecretMaps = note
		}
	}
	if movieRange == "" {
		return ""
	}
	if noSecretMaps != "" {
		return movieRange + ". " + noSecretMaps + "\n"
	}
	return movieRange + "\n"
}

// variantTag renders the category variant line: a skill-override category
// or the category extended with playback switches. It is omitted when it
// would just repeat the published category.
func (a *Assembler) variantTag(record *model.Record, notes []string) (string, error) {
	published, _ := record.Fields["category"].(string)
	category := published
	incompatible := false
	var switches string

	for _, note := range notes {
		if skillNoteRegex.MatchString(note) {
			// A skill override only ever applies to runs the category
			// table could not place.
			if published != "Other" {
				return "", fmt.Errorf("skill note %q on a %q run", note, published)
			}
			category = note
		}
		if note == "Incompatible" {
			incompatible = true
			record.Fields["category"] = "Other"
		}
		if containsString(miscCategoryNotes, note) {
			if switches == "" {
				switches = " with " + note
			} else {
				switches += " and " + note
			}
		}
	}
	if incompatible {
		category = "Incompatible " + category
	}

	tag := category + switches
	if tag == "" || tag == published {
		return "", nil
	}
	return tag + "\n", nil
}

// miscTags renders the remaining notes, sorted. Turbo usage cannot be
// classified automatically and longtics playback has no matching category,
// so both flag the record on their way through.
func (a *Assembler) miscTags(record *model.Record, notes []string) string {
	var tags []string
	for _, note := range notes {
		if class, ok := strings.CutPrefix(note, "Hexen class: "); ok {
			tags = append(tags, class)
		}
		if containsString(miscNotes, note) ||
			strings.HasPrefix(note, "Recorded in skill ") ||
			strings.HasPrefix(note, "Plays back with ") {
			tags = append(tags, note)
			if note == "Uses turbo" {
				a.log.Warn("turbo usage needs manual classification")
				record.HasIssue = true
			}
			if note == "Uses longtics" {
				record.Fields["category"] = "Other"
			}
		}
	}
	sort.Strings(tags)
	return strings.Join(tags, "\n")
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
