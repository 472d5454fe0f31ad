package model

import "strings"

// LevelStats holds the per-level outcome of one completed map, as reported
// by the replay engine's levelstat transcript. Fractions keep the engine's
// "got/total" text form.
type LevelStats struct {
	Level     string
	Time      string
	TotalTime string
	Kills     string
	Items     string
	Secrets   string
	// SecretExit is set when the level was left through its secret exit
	SecretExit bool
}

// FullItems reports whether every item was collected on the level.
func (s LevelStats) FullItems() bool {
	return fullFraction(s.Items)
}

// ZeroKills reports whether the level had nothing to kill.
func (s LevelStats) ZeroKills() bool {
	return s.Kills == "0/0"
}

// ZeroSecrets reports whether the level had no secrets.
func (s LevelStats) ZeroSecrets() bool {
	return s.Secrets == "0/0"
}

func fullFraction(frac string) bool {
	got, total, ok := strings.Cut(frac, "/")
	return ok && got == total
}

// RunStats is the ordered sequence of completed levels, in completion
// order. Length 1 is a single-level run; anything longer is a movie run.
type RunStats []LevelStats

// Levels returns the visited level names with secret-exit markers stripped.
func (r RunStats) Levels() []string {
	levels := make([]string, 0, len(r))
	for _, s := range r {
		levels = append(levels, strings.TrimSuffix(s.Level, "s"))
	}
	return levels
}

// IsMovie reports whether the run spans more than one level.
func (r RunStats) IsMovie() bool {
	return len(r) > 1
}
