package rules

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawSet mirrors one resource-set entry in the YAML table
type rawSet struct {
	Name       string              `yaml:"wad_name"`
	PublicName string              `yaml:"dsda_name"`
	IWAD       string              `yaml:"iwad"`
	Complevel  int                 `yaml:"complevel"`
	Commercial bool                `yaml:"commercial"`
	IdgamesURL string              `yaml:"idgames_url"`
	Thread     string              `yaml:"doomworld_thread"`
	Cmd        string              `yaml:"playback_cmd_line"`
	AltCmds    []yaml.Node         `yaml:"alt_playback_cmd_lines"`
	Files      map[string]FileInfo `yaml:"wad_files"`
	Maps       *rawMapListInfo     `yaml:"map_list_info"`
}

type rawMapListInfo struct {
	MapRanges   []any                     `yaml:"map_ranges"`
	Episodes    [][]string                `yaml:"episodes"`
	D2All       []string                  `yaml:"d2all"`
	D1All       []string                  `yaml:"d1all"`
	SecretExits map[string]string         `yaml:"secret_exits"`
	MapInfo     map[string]map[string]any `yaml:"map_info"`
}

type rawAltCmd struct {
	Cmd       string `yaml:"cmd"`
	Note      string `yaml:"note"`
	UpdateSet string `yaml:"update_wad"`
}

// Load reads the resource-set table from path. Any ambiguity or
// unrecognized key in the override hierarchy is fatal here: a silently
// wrong rule would corrupt every demo's categorization.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource sets: %w", err)
	}
	return Parse(raw)
}

// Parse builds an index from the YAML table contents.
func Parse(data []byte) (*Index, error) {
	var rawSets map[string]rawSet
	if err := yaml.Unmarshal(data, &rawSets); err != nil {
		return nil, fmt.Errorf("parse resource sets: %w", err)
	}

	idx := newIndex()
	urls := make([]string, 0, len(rawSets))
	for url := range rawSets {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	for _, url := range urls {
		set, err := buildSet(url, rawSets[url])
		if err != nil {
			return nil, fmt.Errorf("resource set %s: %w", url, err)
		}
		idx.add(set)
	}
	return idx, nil
}

func buildSet(url string, raw rawSet) (*ResourceSet, error) {
	if raw.Name == "" {
		return nil, fmt.Errorf("missing wad_name")
	}
	if raw.IWAD == "" {
		return nil, fmt.Errorf("missing iwad")
	}

	files := make(map[string]FileInfo, len(raw.Files))
	for name, info := range raw.Files {
		files[strings.ToLower(name)] = info
	}

	altCmds, err := buildAltCmds(raw.AltCmds)
	if err != nil {
		return nil, err
	}

	maps, err := buildMapListInfo(raw.Name, raw.Maps)
	if err != nil {
		return nil, err
	}

	return &ResourceSet{
		Name:        raw.Name,
		PublicName:  raw.PublicName,
		IWAD:        strings.ToLower(raw.IWAD),
		Complevel:   raw.Complevel,
		Commercial:  raw.Commercial,
		Files:       files,
		URL:         url,
		IdgamesURL:  raw.IdgamesURL,
		Thread:      raw.Thread,
		PlaybackCmd: raw.Cmd,
		AltCmds:     altCmds,
		Maps:        maps,
	}, nil
}

func buildAltCmds(nodes []yaml.Node) ([]CmdLine, error) {
	cmds := make([]CmdLine, 0, len(nodes))
	for _, node := range nodes {
		switch node.Kind {
		case yaml.ScalarNode:
			var args string
			if err := node.Decode(&args); err != nil {
				return nil, fmt.Errorf("alt command line: %w", err)
			}
			cmds = append(cmds, CmdLine{Args: args})
		case yaml.MappingNode:
			var alt rawAltCmd
			if err := node.Decode(&alt); err != nil {
				return nil, fmt.Errorf("alt command line: %w", err)
			}
			if alt.Cmd == "" {
				return nil, fmt.Errorf("alt command line entry missing cmd")
			}
			cmds = append(cmds, CmdLine{Args: alt.Cmd, Note: alt.Note, UpdateSet: alt.UpdateSet})
		default:
			return nil, fmt.Errorf("alt command line entry must be string or mapping")
		}
	}
	return cmds, nil
}

func buildMapListInfo(setName string, raw *rawMapListInfo) (*MapListInfo, error) {
	if raw == nil {
		return &MapListInfo{setName: setName}, nil
	}

	info := &MapListInfo{
		setName:     setName,
		Episodes:    make([][2]string, 0, len(raw.Episodes)),
		SecretExits: raw.SecretExits,
		maps:        make(map[string]*mapConfig, len(raw.MapInfo)),
	}

	for _, r := range raw.MapRanges {
		parsed, err := ParseRange(r)
		if err != nil {
			return nil, fmt.Errorf("map range: %w", err)
		}
		info.MapRanges = append(info.MapRanges, parsed)
	}
	for _, ep := range raw.Episodes {
		pair, err := levelPair(ep)
		if err != nil {
			return nil, fmt.Errorf("episode range: %w", err)
		}
		info.Episodes = append(info.Episodes, pair)
	}
	if raw.D2All != nil {
		pair, err := levelPair(raw.D2All)
		if err != nil {
			return nil, fmt.Errorf("d2all range: %w", err)
		}
		info.D2All = pair
		info.HasD2All = true
	}
	if raw.D1All != nil {
		pair, err := levelPair(raw.D1All)
		if err != nil {
			return nil, fmt.Errorf("d1all range: %w", err)
		}
		info.D1All = pair
		info.HasD1All = true
	}

	for level, rawConfig := range raw.MapInfo {
		config, err := buildMapConfig(rawConfig)
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", level, err)
		}
		info.maps[level] = config
	}
	return info, nil
}

func buildMapConfig(raw map[string]any) (*mapConfig, error) {
	config := &mapConfig{generic: make(map[string]any)}
	for key, value := range raw {
		switch key {
		case "skill":
			scopes, err := buildScopes(value, checkSkill, "game_mode", checkGameMode)
			if err != nil {
				return nil, err
			}
			config.skill = scopes
		case "game_mode":
			scopes, err := buildScopes(value, checkGameMode, "skill", checkSkill)
			if err != nil {
				return nil, err
			}
			config.gameMode = scopes
		default:
			v, err := overrideValue(key, value)
			if err != nil {
				return nil, err
			}
			config.generic[key] = v
		}
	}
	if config.skill != nil && config.gameMode != nil {
		return nil, fmt.Errorf("level config declares both skill and game_mode sections")
	}
	return config, nil
}

// buildScopes parses one skill- or game-mode-headed section. nestedHead is
// the other axis, which may appear nested one level down.
func buildScopes(value any, checkHead func(string) error, nestedHead string, checkNested func(string) error) (map[string]*mapScope, error) {
	section, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("scoped section must be a mapping")
	}
	scopes := make(map[string]*mapScope, len(section))
	for head, body := range section {
		if err := checkHead(head); err != nil {
			return nil, err
		}
		bodyMap, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("scope %q must be a mapping", head)
		}
		scope := &mapScope{values: make(map[string]any)}
		for key, v := range bodyMap {
			if key == nestedHead {
				nested, err := buildNestedScope(v, checkNested)
				if err != nil {
					return nil, err
				}
				if nestedHead == "skill" {
					scope.skill = nested
				} else {
					scope.gameMode = nested
				}
				continue
			}
			parsed, err := overrideValue(key, v)
			if err != nil {
				return nil, err
			}
			scope.values[key] = parsed
		}
		scopes[head] = scope
	}
	return scopes, nil
}

func buildNestedScope(value any, checkHead func(string) error) (map[string]map[string]any, error) {
	section, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("nested scope must be a mapping")
	}
	nested := make(map[string]map[string]any, len(section))
	for head, body := range section {
		if err := checkHead(head); err != nil {
			return nil, err
		}
		bodyMap, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nested scope %q must be a mapping", head)
		}
		values := make(map[string]any, len(bodyMap))
		for key, v := range bodyMap {
			parsed, err := overrideValue(key, v)
			if err != nil {
				return nil, err
			}
			values[key] = parsed
		}
		nested[head] = values
	}
	return nested, nil
}

// overrideValue validates one override key/value pair at load time.
func overrideValue(key string, value any) (any, error) {
	if _, known := defaultOverrides[key]; !known {
		return nil, fmt.Errorf("unrecognized override key %q", key)
	}
	if strings.HasSuffix(key, "_for_categories") {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("override key %q must be a category list", key)
		}
		cats := make([]string, 0, len(list))
		for _, item := range list {
			cat, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("override key %q has non-string category", key)
			}
			cats = append(cats, cat)
		}
		return cats, nil
	}
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("override key %q must be a boolean", key)
	}
	return b, nil
}

// ParseRange parses an inclusive level-number range. Accepts "#-#", a bare
// number, or a two-element list; level-name characters are stripped, so
// "Map 31" and ["E1M1","E1M9"] work too.
func ParseRange(r any) ([2]int, error) {
	var parts []string
	switch v := r.(type) {
	case string:
		parts = strings.SplitN(v, "-", 2)
	case []any:
		for _, elem := range v {
			parts = append(parts, fmt.Sprint(elem))
		}
	default:
		parts = []string{fmt.Sprint(v)}
	}
	if len(parts) == 0 || len(parts) > 2 {
		return [2]int{}, fmt.Errorf("invalid range %v", r)
	}
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}

	var parsed [2]int
	for i, part := range parts {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, part)
		if digits == "" {
			return [2]int{}, fmt.Errorf("no level number in %q", part)
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return [2]int{}, err
		}
		parsed[i] = n
	}
	return parsed, nil
}

func levelPair(pair []string) ([2]string, error) {
	if len(pair) != 2 {
		return [2]string{}, fmt.Errorf("expected [first, last], got %v", pair)
	}
	return [2]string{pair[0], pair[1]}, nil
}
