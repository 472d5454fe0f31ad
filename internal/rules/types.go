// Package rules holds the read-only rule index: the table of known resource
// sets and their per-level override configuration. The index loads once and
// may be shared across demos processed in parallel.
package rules

import "fmt"

// Skill buckets recognized by the override hierarchy
const (
	SkillEasy   = "easy"
	SkillMedium = "medium"
	SkillHard   = "hard"
)

// Game modes recognized by the override hierarchy
const (
	ModeSinglePlayer = "single_player"
	ModeCoop         = "coop"
)

// defaultOverrides enumerates every recognized override key with its
// compiled-in default. Lookup of anything else is a programming error.
var defaultOverrides = map[string]any{
	"add_almost_reality_in_nomo":          false,
	"add_reality_in_nomo":                 false,
	"mark_secret_exit_as_normal":          false,
	"nomo_map":                            false,
	"skip_almost_reality":                 false,
	"skip_almost_reality_for_categories":  nil,
	"skip_also_pacifist":                  false,
	"skip_also_pacifist_for_categories":   nil,
	"skip_reality":                        false,
	"skip_reality_for_categories":         nil,
	"tyson_only":                          false,
}

// FileInfo describes one file a resource set ships
type FileInfo struct {
	Checksum string `yaml:"checksum"`
	// NotRequiredForPlayback marks companion files the engine can run without
	NotRequiredForPlayback bool `yaml:"not_required_for_playback"`
}

// CmdLine is one playback command-line variant, optionally annotated
type CmdLine struct {
	Args string
	// Note is attached to the record when this variant is the one that played
	Note string
	// UpdateSet overrides the published set name when this variant is used
	UpdateSet string
}

// ResourceSet is one named bundle of level/asset data demos depend on
type ResourceSet struct {
	Name       string
	PublicName string
	IWAD       string
	Complevel  int
	Commercial bool
	Files      map[string]FileInfo
	URL        string
	IdgamesURL string
	Thread     string

	PlaybackCmd string
	AltCmds     []CmdLine

	Maps *MapListInfo
}

// PublishedName returns the name records should carry for this set.
func (s *ResourceSet) PublishedName() string {
	if s.PublicName != "" {
		return s.PublicName
	}
	return s.Name
}

// HasFile reports whether the set ships the given (lower-cased) filename.
func (s *ResourceSet) HasFile(name string) bool {
	_, ok := s.Files[name]
	return ok
}

// MapListInfo describes the levels a resource set contains and their
// override configuration.
type MapListInfo struct {
	setName string

	// MapRanges are inclusive level-number ranges the set covers
	MapRanges [][2]int
	// Episodes are [first, last] level-name pairs per episode
	Episodes [][2]string
	// D2All / D1All are the whole-game [first, last] pairs, when defined
	D2All    [2]string
	HasD2All bool
	D1All    [2]string
	HasD1All bool
	// SecretExits maps each level holding a secret exit to the level it
	// leads to
	SecretExits map[string]string

	maps map[string]*mapConfig
}

// mapConfig is the fixed-shape override table for one level: a generic
// key set plus at most one of a skill-headed or game-mode-headed section.
type mapConfig struct {
	generic  map[string]any
	skill    map[string]*mapScope
	gameMode map[string]*mapScope
}

// mapScope is one skill or game-mode section; it may nest the other axis.
type mapScope struct {
	values   map[string]any
	skill    map[string]map[string]any
	gameMode map[string]map[string]any
}

// MapInfo returns the override view for one level. Levels without explicit
// configuration resolve everything to compiled-in defaults.
func (m *MapListInfo) MapInfo(level string) MapInfo {
	if m == nil || m.maps == nil {
		return MapInfo{}
	}
	return MapInfo{config: m.maps[level]}
}

// MapInfo resolves override keys for a single level
type MapInfo struct {
	config *mapConfig
}

// Lookup resolves one override key for the level. Resolution order: the
// skill+game-mode scope, then whichever single scope applies, then the
// level's generic value, then (when useDefaults) the compiled-in default.
func (mi MapInfo) Lookup(key, skill, gameMode string, useDefaults bool) (any, error) {
	def, known := defaultOverrides[key]
	if !known {
		return nil, fmt.Errorf("unrecognized override key %q", key)
	}
	if err := checkSkill(skill); err != nil {
		return nil, err
	}
	if err := checkGameMode(gameMode); err != nil {
		return nil, err
	}

	if mi.config != nil {
		if v, ok := mi.config.lookup(key, skill, gameMode); ok {
			return v, nil
		}
	}
	if useDefaults {
		return def, nil
	}
	return nil, nil
}

func (c *mapConfig) lookup(key, skill, gameMode string) (any, bool) {
	if skill != "" {
		if scope, ok := c.skill[skill]; ok {
			if v, ok := scope.lookup(key, "", gameMode); ok {
				return v, true
			}
		}
	}
	if gameMode != "" {
		if scope, ok := c.gameMode[gameMode]; ok {
			if v, ok := scope.lookup(key, skill, ""); ok {
				return v, true
			}
		}
	}
	if v, ok := c.generic[key]; ok {
		return v, true
	}
	return nil, false
}

func (s *mapScope) lookup(key, skill, gameMode string) (any, bool) {
	if gameMode != "" {
		if nested, ok := s.gameMode[gameMode]; ok {
			if v, ok := nested[key]; ok {
				return v, true
			}
		}
	}
	if skill != "" {
		if nested, ok := s.skill[skill]; ok {
			if v, ok := nested[key]; ok {
				return v, true
			}
		}
	}
	v, ok := s.values[key]
	return v, ok
}

func checkSkill(skill string) error {
	switch skill {
	case "", SkillEasy, SkillMedium, SkillHard:
		return nil
	}
	return fmt.Errorf("unrecognized skill %q", skill)
}

func checkGameMode(mode string) error {
	switch mode {
	case "", ModeSinglePlayer, ModeCoop:
		return nil
	}
	return fmt.Errorf("unrecognized game mode %q", mode)
}

// BoolKey resolves a boolean override, treating absent as false.
func (mi MapInfo) BoolKey(key, skill, gameMode string) (bool, error) {
	v, err := mi.Lookup(key, skill, gameMode, true)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// CategoriesKey resolves a category-list override. The caller must
// distinguish an absent list (nil) from an empty one.
func (mi MapInfo) CategoriesKey(key, skill, gameMode string) ([]string, error) {
	v, err := mi.Lookup(key, skill, gameMode, true)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	cats, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("override key %q is not a category list", key)
	}
	return cats, nil
}
