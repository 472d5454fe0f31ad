package demo

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
)

// headerSize is the longest header prefix any supported format uses.
const headerSize = 22

// modernSignature opens ZDoom/GZDoom demos. Those keep all metadata in the
// header and have no footer sentinel.
var modernSignature = []byte("FORM")

// Complevels that PrBoom+/DSDA-Doom do not write to the footer, keyed by the
// header version byte. Pre-Boom complevels always appear in the footer.
// Version 203 is ambiguous (MBF vs LxDoom) and is resolved from the engine
// tag instead.
var versionComplevels = map[int]string{
	201: "8",
	202: "9",
	210: "10",
	211: "14",
	212: "15",
	213: "16",
	214: "-1",
}

// Longtics note published on the record when the version byte falls in the
// historical longtics band.
const noteLongtics = "Uses longtics"

// Data holds everything read out of one demo file without playing it back.
// Truncated files are fine: offsets past the end of the file simply leave
// their fields at zero values.
type Data struct {
	RecordedAt string

	Version    int
	EngineTag  string
	Skill      int
	Episode    int
	Level      int
	Deathmatch bool
	Respawn    bool
	Fast       bool
	NoMonsters bool

	NumPlayers   int
	SoloNet      bool
	SourcePort   string
	EngineFamily string
	Complevel    string

	// TAS is set from the in-header turning-resolution flag (certain) or
	// from the TASDoom version byte (possible).
	TAS        bool
	TASCertain bool

	// Footer command line
	IWAD      string
	Resources []string
	Chex      bool
	Heretic   bool

	Longtics bool
	Notes    []string
}

// Parse decodes a demo file's header and footer. recordedAt is the archive
// member timestamp; it is passed through as a fact.
func Parse(raw []byte, recordedAt string) *Data {
	d := &Data{RecordedAt: recordedAt}

	header := raw
	if len(header) > headerSize {
		header = header[:headerSize]
	}

	if bytes.HasPrefix(header, modernSignature) {
		// There is no way to tell ZDoom from GZDoom in the demo itself,
		// only the demo compat version pair.
		if len(header) >= headerSize {
			d.SourcePort = fmt.Sprintf("ZDoom/GZDoom (demo compat version 0x%X%02X)",
				header[20], header[21])
		}
		return d
	}

	d.parseHeader(header)
	d.parseFooter(footerText(raw))
	d.resolveSourcePort()
	return d
}

// Populate inserts the parsed facts into the ledger. Player count, solo-net
// and the recording date are certain; the engine is a guess unless a footer
// named it, and even then the complevel half may be inferred.
func (d *Data) Populate(led *ledger.Ledger) {
	if d.RecordedAt != "" {
		led.Insert(model.FieldRecordedAt, d.RecordedAt, model.Certain, model.SourceDemo)
	}
	led.Insert(model.FieldGuys, d.NumPlayers, model.Certain, model.SourceDemo)
	if d.SoloNet {
		led.Insert(model.FieldSoloNet, true, model.Certain, model.SourceDemo)
	}
	if d.SourcePort != "" {
		led.Insert(model.FieldEngine, d.SourcePort, model.Possible, model.SourceDemo)
	}
	if d.TAS {
		certainty := model.Possible
		if d.TASCertain {
			certainty = model.Certain
		}
		led.Insert(model.FieldTAS, true, certainty, model.SourceDemo)
	}
}

func (d *Data) parseHeader(header []byte) {
	if len(header) == 0 {
		return
	}
	d.Version = int(header[0])

	switch {
	case d.Version >= 200 && d.Version <= 214:
		d.parseBoomHeader(header)
	case d.Version >= 7 && d.Version < 200:
		d.parseVanillaHeader(header)
	case d.Version <= 4:
		// Up to Doom 1.2 the first byte was the skill, not a version.
		// Only assert that when the rest of the header looks the part.
		d.parseOldHeader(header)
	}
}

// parseVanillaHeader reads the classic layout: version, skill, episode, map,
// deathmatch, respawn, fast, nomonsters, console player, four player slots.
func (d *Data) parseVanillaHeader(header []byte) {
	if len(header) < 13 {
		return
	}
	// The engine stores skill zero-based; published skills count from 1
	d.Skill = int(header[1]) + 1
	d.Episode = int(header[2])
	d.Level = int(header[3])
	d.Deathmatch = header[4] != 0
	d.Respawn = header[5] != 0
	d.Fast = header[6] != 0
	d.NoMonsters = header[7] != 0
	d.NumPlayers = countSlots(header[9:13])
}

// parseBoomHeader reads the Boom-family layout: version, six engine tag
// bytes, compatibility, skill, episode, map, deathmatch, console player,
// the turning-resolution flag, then eight player slots.
func (d *Data) parseBoomHeader(header []byte) {
	if len(header) < headerSize {
		return
	}
	d.EngineTag = strings.TrimRight(string(header[1:7]), "\x00")
	d.Skill = int(header[8]) + 1
	d.Episode = int(header[9])
	d.Level = int(header[10])
	d.Deathmatch = header[11] != 0
	if header[13] != 0 {
		// Recording with sr50 on turns is only possible tool-assisted.
		d.TAS = true
		d.TASCertain = true
	}
	d.NumPlayers = countSlots(header[14:22])
}

// parseOldHeader interprets the header as Doom 1.2 or earlier, but only
// when episode, map and player slots are all plausible for that era.
func (d *Data) parseOldHeader(header []byte) {
	if len(header) < 7 {
		return
	}
	episode := int(header[1])
	level := int(header[2])
	if episode < 1 || episode > 3 || level < 1 || level > 9 {
		return
	}
	for _, slot := range header[3:7] {
		if slot != 0 && slot != 1 {
			return
		}
	}
	d.Skill = int(header[0]) + 1
	d.Episode = episode
	d.Level = level
	d.NumPlayers = countSlots(header[3:7])
	d.SourcePort = "Doom v1.2 or earlier"
}

func countSlots(slots []byte) int {
	n := 0
	for _, slot := range slots {
		if slot != 0 {
			n++
		}
	}
	return n
}

// footerText scans backward from end-of-file for the 0x80 end-of-inputs
// sentinel and returns the trailing run, reversed, as text. Files without
// the sentinel have no footer.
func footerText(raw []byte) string {
	end := bytes.LastIndexByte(raw, 0x80)
	if end < 0 {
		return ""
	}
	return string(raw[end+1:])
}

func (d *Data) parseFooter(footer string) {
	for _, line := range strings.Split(footer, "\n") {
		if strings.HasPrefix(line, "PrBoom-Plus") ||
			strings.HasPrefix(line, "DSDA-Doom") ||
			strings.HasPrefix(line, "Crispy Doom") {
			d.EngineFamily = strings.TrimSpace(line)
		}
		// The command-line section always carries -iwad
		if !strings.Contains(line, "-iwad") {
			continue
		}
		args := strings.Fields(line)
		for i, arg := range args {
			if i+1 >= len(args) {
				break
			}
			value := strings.ReplaceAll(args[i+1], `"`, "")
			switch arg {
			case "-iwad":
				d.IWAD = value
				if value == "chex.wad" {
					d.Chex = true
				}
				if value == "heretic.wad" {
					d.Heretic = true
				}
			case "-file":
				d.Resources = append(d.Resources, collapseExtension(value))
			case "-complevel":
				d.Complevel = value
			}
		}
		if strings.Contains(line, "-solo-net") {
			d.SoloNet = true
		}
	}
}

// collapseExtension fixes doubled resource extensions some recorders write
// into the footer ("x.wad.wad" becomes "x.wad").
func collapseExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".wad", ".deh", ".bex", ".pk3"} {
		if strings.HasSuffix(lower, ext+ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// resolveSourcePort derives the engine name and complevel from whatever the
// header and footer yielded.
func (d *Data) resolveSourcePort() {
	if d.SourcePort != "" {
		return
	}

	if d.EngineFamily != "" {
		name, version, ok := strings.Cut(d.EngineFamily, " ")
		if ok {
			switch name {
			case "PrBoom-Plus":
				name = "PrBoom-plus"
			case "dsda-doom":
				name = "DSDA-Doom"
			}
			complevel := d.Complevel
			if complevel == "" {
				complevel = d.inferComplevel()
			}
			if complevel != "" {
				d.Complevel = complevel
				d.SourcePort = fmt.Sprintf("%s v%scl%s", name, version, complevel)
			}
		}
	}

	if d.SourcePort == "" {
		switch {
		case d.Version == 110:
			d.SourcePort = "TASDoom"
			d.TAS = true
		}
	}

	if d.Version >= 111 && d.Version < 200 {
		d.Longtics = true
		d.Notes = append(d.Notes, noteLongtics)
	}
}

func (d *Data) inferComplevel() string {
	if d.Version == 203 {
		// MBF and LxDoom share the version byte; the engine tag tells
		// them apart.
		if strings.HasPrefix(d.EngineTag, "M") {
			return "11"
		}
		return ""
	}
	return versionComplevels[d.Version]
}
