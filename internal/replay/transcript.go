package replay

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/demoscribe/internal/model"
)

// Transcripts are the two text outputs of one successful playback: the
// per-level statistics table and the key-value run analysis.
type Transcripts struct {
	Levelstat string `json:"levelstat"`
	Analysis  string `json:"analysis"`
}

// Levelstat line columns after splitting on whitespace. Coop lines carry
// two extra bracketed sub-totals after the kill and item fractions.
const (
	statLevelIdx       = 0
	statTimeIdx        = 2
	statTotalTimeIdx   = 3
	statKillsIdx       = 5
	statItemsIdx       = 7
	statSecretsIdx     = 9
	statItemsCoopIdx   = 8
	statSecretsCoopIdx = 11
)

// Movie runs pad open parens with whitespace, which shifts the columns.
var parenOffsetRegex = regexp.MustCompile(`\(\s+`)

// parseLevelstat decodes the per-level statistics transcript.
//
// Format:
//
//	MAP01 - 1:23.00 (1:23)  K: 1337/1337  I: 69/69  S: 420/420
//
// and for coop:
//
//	E3M7 - 0:26.97 (0:26)  K: 3/38 (3+0)  I: 0/8 (0+0)  S: 0/4  (0+0)
func parseLevelstat(text string) (model.RunStats, error) {
	var stats model.RunStats
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(parenOffsetRegex.ReplaceAllString(line, "("))

		s := model.LevelStats{}
		switch len(fields) {
		case 10:
			s.Items = fields[statItemsIdx]
			s.Secrets = fields[statSecretsIdx]
		case 13:
			s.Items = fields[statItemsCoopIdx]
			s.Secrets = fields[statSecretsCoopIdx]
		default:
			return nil, fmt.Errorf("unrecognized levelstat line format: %s", line)
		}
		s.Level = levelName(fields[statLevelIdx])
		s.SecretExit = strings.HasSuffix(s.Level, "s")
		s.Time = fields[statTimeIdx]
		s.TotalTime = strings.Trim(fields[statTotalTimeIdx], "()")
		s.Kills = fields[statKillsIdx]
		stats = append(stats, s)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("empty levelstat")
	}
	return stats, nil
}

// levelName converts a transcript level id to the published format:
// MAP01 becomes "Map 01", E#M# stays as is.
func levelName(level string) string {
	if strings.Contains(level, "MAP") {
		return strings.Replace(level, "MAP", "Map ", 1)
	}
	return level
}

// Analysis keys whose values are 0/1 booleans.
var analysisBoolKeys = map[string]bool{
	"nomonsters": true, "respawn": true, "fast": true, "pacifist": true,
	"stroller": true, "almost_reality": true, "100k": true, "100s": true,
	"weapon_collector": true, "tyson_weapons": true, "turbo": true,
	"reality": true,
}

// The engine's Tyson spelling differs from the archive's.
var categoryAliases = map[string]string{"UV Tyson": "Tyson"}

// analysis is the decoded key-value run transcript.
type analysis struct {
	category string
	flags    map[string]bool
	raw      map[string]string
}

// parseAnalysis decodes the analysis transcript. Lines are `key value`,
// booleans as 0/1, with the final line naming the guessed category.
func parseAnalysis(text string) (*analysis, error) {
	a := &analysis{
		flags: make(map[string]bool),
		raw:   make(map[string]string),
	}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unrecognized analysis line format: %s", line)
		}
		value = strings.TrimSpace(value)
		a.raw[key] = value
		if analysisBoolKeys[key] {
			a.flags[key] = value != "0"
		}
		if key == "category" {
			if alias, ok := categoryAliases[value]; ok {
				value = alias
			}
			a.category = value
		}
	}
	if a.category == "" {
		return nil, fmt.Errorf("analysis names no category")
	}
	return a, nil
}

func (a *analysis) flag(key string) bool {
	return a.flags[key]
}
