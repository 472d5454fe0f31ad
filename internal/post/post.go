package post

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/demoscribe/internal/ledger"
	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/util"
)

// Post is one forum announcement, already fetched by an external
// collaborator. Links and Embeds may be filled directly or pulled out of a
// raw HTML body with ExtractLinks.
type Post struct {
	AuthorName string
	ThreadID   string
	Links      []string
	Embeds     []string
}

// ThreadInfo carries per-thread overrides: some threads only accept one
// category, one port, or tool-assisted runs, which settles those facts for
// every demo posted there.
type ThreadInfo struct {
	Wad        string   `yaml:"wad"`
	Wads       []string `yaml:"wads"`
	SoloNet    bool     `yaml:"solo-net"`
	TASOnly    bool     `yaml:"tas_only"`
	Category   string   `yaml:"category"`
	SourcePort string   `yaml:"source_port"`
	NoMonsters bool     `yaml:"nomonsters"`
	Note       string   `yaml:"note"`
}

// ThreadMap maps thread ids to their override info.
type ThreadMap map[string]ThreadInfo

// LoadThreadMap reads the thread override table.
func LoadThreadMap(path string) (ThreadMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thread map: %w", err)
	}
	var m ThreadMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse thread map: %w", err)
	}
	return m, nil
}

// Data holds everything parsed out of one post.
type Data struct {
	Players    []string
	TAS        bool
	SoloNet    bool
	Category   string
	SourcePort string
	VideoLink  string

	WadLinks   []string
	VideoLinks []string
	NoMonsters bool
	Note       string
}

// Analyze parses a post into facts, applying the thread's overrides.
func Analyze(p Post, threads ThreadMap) *Data {
	d := &Data{Players: []string{p.AuthorName}}

	for _, link := range p.Links {
		if id := util.YouTubeID(link); id != "" {
			d.VideoLinks = append(d.VideoLinks, id)
			continue
		}
		if strings.Contains(link, "dsdarchive.com/wads") ||
			strings.Contains(link, "doomworld.com/idgames") {
			d.WadLinks = append(d.WadLinks, link)
		}
	}
	for _, embed := range p.Embeds {
		if id := util.YouTubeID(embed); id != "" {
			d.VideoLinks = append(d.VideoLinks, id)
		}
	}

	// A single video on the post is assumed to show the attached demo.
	if len(d.VideoLinks) == 1 {
		d.VideoLink = d.VideoLinks[0]
	}

	info, ok := threads[p.ThreadID]
	if !ok {
		return d
	}
	if info.Wad != "" {
		// A thread with one attached wad is the priority playback choice
		d.WadLinks = append([]string{info.Wad}, d.WadLinks...)
	} else if len(info.Wads) > 0 {
		d.WadLinks = append(d.WadLinks, info.Wads...)
	}
	if info.SoloNet {
		d.SoloNet = true
	}
	if info.TASOnly {
		d.TAS = true
	}
	if info.Category != "" {
		d.Category = info.Category
	}
	if info.SourcePort != "" {
		d.SourcePort = info.SourcePort
	}
	if info.NoMonsters {
		d.NoMonsters = true
	}
	if info.Note != "" {
		d.Note = info.Note
	}
	return d
}

// Populate inserts the post's facts. The author is who ran the demo; the
// rest are thread-level conventions other sources may override.
func (d *Data) Populate(led *ledger.Ledger) {
	led.Insert(model.FieldPlayers, model.JoinPlayers(d.Players), model.Certain, model.SourcePost)
	if d.TAS {
		led.Insert(model.FieldTAS, true, model.Certain, model.SourcePost)
	}
	if d.SoloNet {
		led.Insert(model.FieldSoloNet, true, model.Possible, model.SourcePost)
	}
	if d.Category != "" {
		led.Insert(model.FieldCategory, d.Category, model.Possible, model.SourcePost)
	}
	if d.SourcePort != "" {
		led.Insert(model.FieldEngine, d.SourcePort, model.Possible, model.SourcePost)
	}
	if d.VideoLink != "" {
		led.Insert(model.FieldVideoLink, d.VideoLink, model.Possible, model.SourcePost)
	}
}
