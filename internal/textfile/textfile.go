package textfile

import (
	"regexp"
	"strings"

	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/util"
)

// Readme key aliases. Keys are compared with whitespace stripped and
// lowercased, so "Source Port" and "sourceport" land on the same alias.
var (
	categoryKeys = []string{"category", "discipline"}
	portKeys     = []string{
		"client", "engine", "exe", "port", "portused", "sourceport",
		"sourceportused", "usingport", "usingsourceport",
	}
	videoKeys = []string{
		"video", "videolink", "youtube", "youtubelink", "youtubevideo",
		"youtubevideolink", "yt", "ytlink", "ytvideo", "ytvideolink",
	}
	wadKeys = []string{"mapset", "pwad", "pwadfile", "wad"}
)

// Compet-N-style textfiles put the port at the start of a line with no colon.
var nonColonPortRegex = regexp.MustCompile(
	`(?i)^\s*(Recorded|Built)\s*(using|with)\s*(source)?\s*(port)?\s*:?\s*(.+?)\s*$`)

// Ports that only exist for tool-assisted recording.
var tasPorts = []string{"DRE", "TASDoom", "TASMBF", "XDRE"}

const tasMarker = "this is a tools-assisted demo"

type categoryPattern struct {
	regex *regexp.Regexp
	name  string
}

// Order matters: the bare NoMo pattern anchors the end of the value so that
// "NoMo 100S" falls through to its own pattern.
var categoryPatterns = []categoryPattern{
	{regexp.MustCompile(`(?i)(UV)?[ -_]?(Max|100%)`), "UV Max"},
	{regexp.MustCompile(`(?i)UV[ -_]?Speed`), "UV Speed"},
	{regexp.MustCompile(`(?i)NM[ -_]?Speed`), "NM Speed"},
	{regexp.MustCompile(`(?i)NM[ -_]?100s?`), "NM 100S"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?-?fast`), "UV Fast"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?-?respawn`), "UV Respawn"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?Pacifist`), "Pacifist"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?Tyson`), "Tyson"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?No\s*mo(nsters)?\s*$`), "NoMo"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?No\s*mo(nsters)?[ -_]?100s?`), "NoMo 100S"},
	{regexp.MustCompile(`(?i)(UV)?[ -_]?Stroller`), "Stroller"},
}

var alsoRealityRegex = regexp.MustCompile(`(?i)(UV|NM)?[ -_]?Reality`)

const noteAlsoReality = "Also Reality"

type portPattern struct {
	regex *regexp.Regexp
	name  string // "" means take the name from the match itself
}

// Engine name patterns, most specific first. Version and complevel are
// captured where the port publishes them; names are conformed to the
// archive's spelling.
var portPatterns = []portPattern{
	{regexp.MustCompile(`(?i)Chocolate[ -_]?Doom(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+\.\d+)`), "Chocolate DooM"},
	{regexp.MustCompile(`(?i)Crispy[ -_]?Doom(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+(\.\d+)?)`), "Crispy Doom"},
	{regexp.MustCompile(`(?i)Crispy[ -_]?Heretic(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+(\.\d+)?)`), "Crispy Heretic"},
	{regexp.MustCompile(`(?i)CNDoom(\.exe)?\s*(v|version)?[ .]?(?P<version>\d\.\d\.\d(\.\d)?)?`), "CNDoom"},
	{regexp.MustCompile(`(?i)TASMBF`), "TASMBF"},
	{regexp.MustCompile(`(?i)(?P<name>MBF(386|-Sigil|-SNM)?)\s*(v|version)?[ .]?(?P<version>\d\.\d\.\d)`), ""},
	{regexp.MustCompile(`(?i)\bBoom\s*(v|version)?[ .]?(?P<version>2\.0\.[0-2])`), "Boom"},
	{regexp.MustCompile(`(?i)(Pr|GL)Boom(\+|-?plus)(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d\.\d(\.\d)?)\s*-?((complevel|cl)\s*(?P<complevel>\d+))?`), "PRBoom"},
	{regexp.MustCompile(`(?i)(Pr|GL)Boom(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d\.\d(\.\d)?)\s*-?((complevel|cl)\s*(?P<complevel>\d+))?`), "PRBoom"},
	{regexp.MustCompile(`(?i)DSDA[ -_]?Doom(\.exe)?[ -]?(v|version)?\.?(?P<version>\d\.\d+(\.\d+)?)\s*-?((complevel|cl)\s*(?P<complevel>\d+))?`), "DSDA-Doom"},
	{regexp.MustCompile(`(?i)Woof!?(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+(\.\d+)?)\s*-?((complevel|cl)\s*(?P<complevel>\d+))?`), "Woof"},
	{regexp.MustCompile(`(?i)Nugget[ -_]?Doom(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+(\.\d+)?)\s*-?((complevel|cl)\s*(?P<complevel>\d+))?`), "Woof"},
	{regexp.MustCompile(`(?i)GZDoom\s*(v|version)?[ .]?(?P<version>\d\.\d\.\d+)`), "GZDoom"},
	{regexp.MustCompile(`(?i)\bZDoom\s*(v|version)?[ .]?(?P<version>\d\.\d(\.\S+)?)?`), "ZDoom"},
	{regexp.MustCompile(`(?i)ZDaemon\s*(v|version)?[ .]?(?P<version>\d\.\d\.\d+)`), "ZDaemon"},
	{regexp.MustCompile(`(?i)Zandronum\s*(v|version)?[ .]?(?P<version>\d\.\d(\.\d+)?(\s*Alpha)?)`), "Zandronum"},
	{regexp.MustCompile(`(?i)Strawberry[ -_]?Doom\s*r(?P<version>\d+)`), "Strawberry Doom"},
	{regexp.MustCompile(`(?i)XDRE(\.exe)?[ -]?(v|version)?[ .]?(?P<version>\d\.\d+)`), "XDRE"},
}

// Vanilla executables are only useful with a version attached; Final Doom
// is published as DooM2 with an f-suffixed version.
var vanillaPortPatterns = []portPattern{
	{regexp.MustCompile(`(?i)(The\s+)?Final\s*Doom(\s*2)?(\.exe)?\s+(v|version)?\s*(?P<version>\d\.\d+(\.\d+)?)f?`), "Final Doom"},
	{regexp.MustCompile(`(?i)((The\s+)?Ultimate\s*)?Doom(\.exe)?\s+(v|version)?\s*(?P<version>\d\.\d+(\.\d+)?)`), "DooM"},
	{regexp.MustCompile(`(?i)(The\s+)?Doom\s*2(\.exe)?\s+(v|version)?\s*(?P<version>\d\.\d+(\.\d+)?)`), "DooM2"},
}

// Data holds everything parsed out of one readme.
type Data struct {
	Category   string
	SourcePort string
	TAS        bool
	VideoLink  string

	VideoLinks []string
	WadStrings []string
	IWAD       string
	Notes      []string
}

// Parse scans a freeform readme for key/value lines and falls back to
// whole-text pattern matches for the category and engine.
func Parse(text string) *Data {
	d := &Data{}

	if strings.Contains(strings.ToLower(text), tasMarker) {
		d.TAS = true
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, hasColon := strings.Cut(line, ":")
		if hasColon {
			key = strings.ToLower(strings.Join(strings.Fields(key), ""))
			value = strings.TrimSpace(value)
		} else if m := nonColonPortRegex.FindStringSubmatch(line); m != nil {
			key = "engine"
			value = m[len(m)-1]
		} else {
			continue
		}

		lower := strings.ToLower(value)
		switch {
		case contains(categoryKeys, key):
			d.Category = matchCategory(lower)
			for _, word := range strings.Fields(lower) {
				if word == "tas" {
					d.TAS = true
				}
			}
		case contains(portKeys, key):
			d.SourcePort = matchPort(lower, false)
		case contains(videoKeys, key):
			if id := util.YouTubeID(value); id != "" {
				d.VideoLinks = append(d.VideoLinks, id)
			}
		case contains(wadKeys, key):
			d.WadStrings = append(d.WadStrings, lower)
		case key == "iwad":
			d.IWAD = lower
		}
	}

	if len(d.WadStrings) == 0 && d.IWAD != "" {
		d.WadStrings = append(d.WadStrings, d.IWAD)
	}
	if len(d.VideoLinks) == 1 {
		d.VideoLink = d.VideoLinks[0]
	}

	// No key/value hit: scan the whole text. Likely to be wrong since a
	// category or port name may appear in general comments, but better
	// than nothing.
	if d.Category == "" {
		d.Category = matchCategory(text)
	}
	if d.SourcePort == "" {
		d.SourcePort = matchPort(text, true)
	}

	for _, tasPort := range tasPorts {
		if strings.Contains(d.SourcePort, tasPort) {
			d.TAS = true
		}
	}

	if alsoRealityRegex.MatchString(text) {
		d.Notes = append(d.Notes, noteAlsoReality)
	}
	return d
}

// Populate inserts the parsed facts. A readme's tool-assist declaration is
// taken at its word; everything else is a guess.
func (d *Data) Populate(led *ledger.Ledger) {
	if d.TAS {
		led.Insert(model.FieldTAS, true, model.Certain, model.SourceTextfile)
	}
	if d.Category != "" {
		led.Insert(model.FieldCategory, d.Category, model.Possible, model.SourceTextfile)
	}
	if d.SourcePort != "" {
		led.Insert(model.FieldEngine, d.SourcePort, model.Possible, model.SourceTextfile)
	}
	if d.VideoLink != "" {
		led.Insert(model.FieldVideoLink, d.VideoLink, model.Possible, model.SourceTextfile)
	}
}

func matchCategory(text string) string {
	for _, p := range categoryPatterns {
		if p.regex.MatchString(text) {
			return p.name
		}
	}
	return ""
}

func matchPort(text string, skipVanillaCheck bool) string {
	for _, p := range portPatterns {
		m := p.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := p.name
		if name == "" {
			name = group(p.regex, m, "name")
		}
		version := group(p.regex, m, "version")
		if version == "" {
			return name
		}
		// DSDA-Doom versions written as #.## are published as #.##.0
		if name == "DSDA-Doom" && strings.Count(version, ".") == 1 {
			version += ".0"
		}
		if complevel := group(p.regex, m, "complevel"); complevel != "" {
			version += "cl" + complevel
		}
		return name + " v" + version
	}

	if skipVanillaCheck {
		return ""
	}
	for _, p := range vanillaPortPatterns {
		m := p.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		version := group(p.regex, m, "version")
		if version == "" {
			continue
		}
		if p.name == "Final Doom" {
			return "DooM2 v" + version + "f"
		}
		return p.name + " v" + version
	}
	return ""
}

func group(re *regexp.Regexp, match []string, name string) string {
	for i, groupName := range re.SubexpNames() {
		if groupName == name && i < len(match) {
			return match[i]
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
