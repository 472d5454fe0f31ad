package rules

import (
	"strings"
	"testing"
)

const sampleTable = `
https://www.dsdarchive.com/wads/scythe:
  wad_name: Scythe
  iwad: doom2
  complevel: 2
  idgames_url: https://www.doomworld.com/idgames/levels/doom2/megawads/scythe
  playback_cmd_line: "-file scythe"
  alt_playback_cmd_lines:
    - "-file scythe -deh fix"
    - cmd: "-file scythe -deh good"
      note: "Plays back with good.deh"
  wad_files:
    scythe.wad:
      checksum: abc123
  map_list_info:
    map_ranges: ["1-32"]
    d2all: ["Map 01", "Map 30"]
    episodes:
      - ["Map 01", "Map 10"]
      - ["Map 11", "Map 20"]
      - ["Map 21", "Map 30"]
    secret_exits:
      "Map 15": "Map 31"
      "Map 31": "Map 32"
    map_info:
      "Map 26":
        tyson_only: true
        skill:
          hard:
            tyson_only: false
https://www.dsdarchive.com/wads/doom2:
  wad_name: Doom 2
  dsda_name: doom2
  iwad: doom2
  complevel: 2
  commercial: true
  wad_files:
    doom2.wad:
      checksum: def456
`

func mustParse(t *testing.T, table string) *Index {
	t.Helper()
	idx, err := Parse([]byte(table))
	if err != nil {
		t.Fatalf("Expected table to parse, got %v", err)
	}
	return idx
}

func TestParse_SampleTable(t *testing.T) {
	idx := mustParse(t, sampleTable)
	if idx.Len() != 2 {
		t.Fatalf("Expected 2 sets, got %d", idx.Len())
	}

	set, ok := idx.ByURL("https://www.dsdarchive.com/wads/scythe")
	if !ok {
		t.Fatal("Expected scythe set to be registered by URL")
	}
	if set.PublishedName() != "Scythe" {
		t.Errorf("Expected published name Scythe, got %s", set.PublishedName())
	}
	if len(set.AltCmds) != 2 {
		t.Fatalf("Expected 2 alt commands, got %d", len(set.AltCmds))
	}
	if set.AltCmds[1].Note != "Plays back with good.deh" {
		t.Errorf("Expected note on annotated alt command, got %q", set.AltCmds[1].Note)
	}

	doom2, _ := idx.ByURL("https://www.dsdarchive.com/wads/doom2")
	if doom2.PublishedName() != "doom2" {
		t.Errorf("Expected dsda_name to win, got %s", doom2.PublishedName())
	}
}

func TestParse_RejectsDualScopedSections(t *testing.T) {
	table := `
https://www.dsdarchive.com/wads/bad:
  wad_name: Bad
  iwad: doom2
  wad_files:
    bad.wad:
      checksum: a
  map_list_info:
    map_info:
      "Map 01":
        skill:
          hard:
            tyson_only: true
        game_mode:
          coop:
            tyson_only: true
`
	if _, err := Parse([]byte(table)); err == nil {
		t.Fatal("Expected load to reject a level with both skill and game_mode sections")
	}
}

func TestParse_RejectsUnknownKey(t *testing.T) {
	table := `
https://www.dsdarchive.com/wads/bad:
  wad_name: Bad
  iwad: doom2
  wad_files:
    bad.wad:
      checksum: a
  map_list_info:
    map_info:
      "Map 01":
        tyson_onyl: true
`
	if _, err := Parse([]byte(table)); err == nil {
		t.Fatal("Expected load to reject an unrecognized override key")
	}
	table = strings.Replace(table, "tyson_onyl", "tyson_only", 1)
	if _, err := Parse([]byte(table)); err != nil {
		t.Fatalf("Expected corrected table to load, got %v", err)
	}
}

func TestLookup_Precedence(t *testing.T) {
	table := `
https://www.dsdarchive.com/wads/prec:
  wad_name: Precedence
  iwad: doom2
  wad_files:
    prec.wad:
      checksum: a
  map_list_info:
    map_info:
      "Map 07":
        tyson_only: true
        skill:
          hard:
            tyson_only: false
            game_mode:
              coop:
                tyson_only: true
`
	idx := mustParse(t, table)
	set, _ := idx.ByURL("https://www.dsdarchive.com/wads/prec")
	mi := set.Maps.MapInfo("Map 07")

	// Most specific scope: skill+game-mode
	v, err := mi.Lookup("tyson_only", SkillHard, ModeCoop, true)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if v != true {
		t.Errorf("Expected skill+game-mode override true, got %v", v)
	}

	// Single scope: skill only
	v, _ = mi.Lookup("tyson_only", SkillHard, ModeSinglePlayer, true)
	if v != false {
		t.Errorf("Expected skill scope false, got %v", v)
	}

	// Level generic
	v, _ = mi.Lookup("tyson_only", SkillEasy, ModeSinglePlayer, true)
	if v != true {
		t.Errorf("Expected generic value true, got %v", v)
	}

	// Compiled-in default for an unconfigured level
	v, _ = set.Maps.MapInfo("Map 08").Lookup("tyson_only", SkillHard, ModeCoop, true)
	if v != false {
		t.Errorf("Expected compiled-in default false, got %v", v)
	}

	// With defaults disabled an unconfigured level asserts nothing
	v, _ = set.Maps.MapInfo("Map 08").Lookup("tyson_only", SkillHard, ModeCoop, false)
	if v != nil {
		t.Errorf("Expected nil without defaults, got %v", v)
	}
}

func TestLookup_FallbackNeverSkipsScope(t *testing.T) {
	// Removing the most specific scope must fall back to the next-most
	// specific, not jump to the compiled-in default.
	table := `
https://www.dsdarchive.com/wads/fb:
  wad_name: Fallback
  iwad: doom2
  wad_files:
    fb.wad:
      checksum: a
  map_list_info:
    map_info:
      "Map 07":
        tyson_only: true
        skill:
          hard:
            tyson_only: true
`
	idx := mustParse(t, table)
	set, _ := idx.ByURL("https://www.dsdarchive.com/wads/fb")
	mi := set.Maps.MapInfo("Map 07")

	// No skill+game-mode scope exists; skill scope answers.
	v, _ := mi.Lookup("tyson_only", SkillHard, ModeCoop, true)
	if v != true {
		t.Errorf("Expected skill scope value, got %v", v)
	}
	// No scope matches easy; the generic value answers.
	v, _ = mi.Lookup("tyson_only", SkillEasy, "", true)
	if v != true {
		t.Errorf("Expected generic value, got %v", v)
	}
}

func TestLookup_RejectsBadEnums(t *testing.T) {
	idx := mustParse(t, sampleTable)
	set, _ := idx.ByURL("https://www.dsdarchive.com/wads/scythe")
	mi := set.Maps.MapInfo("Map 26")

	if _, err := mi.Lookup("tyson_only", "nightmare", "", true); err == nil {
		t.Error("Expected unknown skill to be rejected")
	}
	if _, err := mi.Lookup("tyson_only", SkillHard, "deathmatch", true); err == nil {
		t.Error("Expected unknown game mode to be rejected")
	}
	if _, err := mi.Lookup("no_such_key", SkillHard, "", true); err == nil {
		t.Error("Expected unknown key to be rejected")
	}
}

func TestGuess_OrderAndFallback(t *testing.T) {
	idx := mustParse(t, sampleTable)

	guesses := idx.Guess([][]string{
		{"https://www.dsdarchive.com/wads/scythe"},
		{"scythe.wad", "nowhere.wad"},
		{"https://www.doomworld.com/idgames/levels/doom2/megawads/scythe"},
	}, "doom2")
	if len(guesses) != 3 {
		t.Fatalf("Expected 3 guesses (duplicates kept), got %d", len(guesses))
	}
	for i, g := range guesses {
		if g.Name != "Scythe" {
			t.Errorf("Guess %d: expected Scythe, got %s", i, g.Name)
		}
	}

	// No locators: base-game fallback, limited to sets actually loaded
	fallback := idx.Guess(nil, "doom2")
	if len(fallback) != 1 || fallback[0].Name != "Doom 2" {
		t.Errorf("Expected doom2 fallback, got %v", fallback)
	}
}

func TestGuess_BareNameGetsExtension(t *testing.T) {
	idx := mustParse(t, sampleTable)
	guesses := idx.Guess([][]string{{"scythe"}}, "")
	if len(guesses) != 1 || guesses[0].Name != "Scythe" {
		t.Errorf("Expected bare name to resolve via .wad extension, got %v", guesses)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   any
		want [2]int
	}{
		{"1-32", [2]int{1, 32}},
		{"31", [2]int{31, 31}},
		{[]any{"Map 01", "Map 30"}, [2]int{1, 30}},
		{[]any{"E1M1", "E1M9"}, [2]int{11, 19}},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if err != nil {
			t.Errorf("ParseRange(%v) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRange(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseRange("x-y-z"); err == nil {
		t.Error("Expected three-part range to fail")
	}
}

func TestLevelNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"MAP01", 1},
		{"Map 15", 15},
		{"Map 15s", 15},
		{"E1M3", 13},
		{"E4M9s", 49},
	}
	for _, tt := range tests {
		got, err := LevelNumber(tt.in)
		if err != nil {
			t.Errorf("LevelNumber(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("LevelNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
