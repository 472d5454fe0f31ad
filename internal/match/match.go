// Package match reconciles locally assembled records against externally
// hosted counterparts of the same demos. The external side is authoritative
// about which demos exist; the local side is authoritative about what the
// replay actually contains. Matching pairs them up so the differences can
// be reported.
package match

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/model"
)

// Composite match key components, most reliable first. When the full key
// finds nothing the least reliable trailing component is dropped and the
// lookup retried, on the theory that the dropped field is the one that was
// edited on one side.
var matchKeys = []string{"players", "level", "time", "wad", "category"}

// Counterpart is one externally hosted demo entry.
type Counterpart struct {
	ID       string   `json:"id"`
	Players  []string `json:"players"`
	Level    string   `json:"level"`
	Time     string   `json:"time"`
	Wad      string   `json:"wad"`
	Category string   `json:"category"`
	// Extra carries any further published fields to diff (engine, tas,
	// video_link, ...).
	Extra map[string]any `json:"extra,omitempty"`
}

func (c *Counterpart) keyValue(key string) any {
	switch key {
	case "players":
		return model.JoinPlayers(c.Players)
	case "level":
		return c.Level
	case "time":
		return c.Time
	case "wad":
		return c.Wad
	case "category":
		return c.Category
	}
	return nil
}

// Diff is one field the two sides disagree on.
type Diff struct {
	Field       string
	Local       any
	Counterpart any
}

// Pair is a matched record/counterpart with its field differences.
type Pair struct {
	Record      *model.Record
	Counterpart *Counterpart
	Diffs       []Diff
	// DroppedKeys counts how many trailing key components the match needed
	// to ignore. Zero is a full-key match.
	DroppedKeys int
}

// Ambiguity reports a record that tied between counterparts. No selection
// is made for it.
type Ambiguity struct {
	Record       *model.Record
	CandidateIDs []string
}

func (a Ambiguity) String() string {
	return fmt.Sprintf("record matches %d counterparts: %s",
		len(a.CandidateIDs), strings.Join(a.CandidateIDs, ", "))
}

// Result is the outcome of one reconciliation run.
type Result struct {
	Pairs     []Pair
	Ambiguous []Ambiguity
	// Unmatched are local records no counterpart corresponded to.
	Unmatched []*model.Record
	// Orphans are counterparts no local record claimed.
	Orphans []*Counterpart
}

// Resolver pairs records with counterparts.
type Resolver struct {
	log *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(log *zap.Logger) *Resolver {
	return &Resolver{log: log}
}

// Resolve matches every record against the counterpart pool. Matched
// counterparts leave the pool; whatever remains at the end is orphaned.
func (r *Resolver) Resolve(records []*model.Record, counterparts []*Counterpart) *Result {
	result := &Result{}
	pool := make([]*Counterpart, len(counterparts))
	copy(pool, counterparts)

	for _, record := range records {
		matched, dropped, candidates := r.find(record, pool)
		switch {
		case len(candidates) > 1:
			ids := make([]string, 0, len(candidates))
			for _, c := range candidates {
				ids = append(ids, c.ID)
			}
			r.log.Warn("ambiguous match", zap.Strings("candidates", ids))
			result.Ambiguous = append(result.Ambiguous, Ambiguity{
				Record: record, CandidateIDs: ids,
			})
		case matched != nil:
			result.Pairs = append(result.Pairs, Pair{
				Record:      record,
				Counterpart: matched,
				Diffs:       diff(record, matched),
				DroppedKeys: dropped,
			})
			pool = remove(pool, matched)
		default:
			r.log.Warn("record matched no counterpart")
			result.Unmatched = append(result.Unmatched, record)
		}
	}

	result.Orphans = pool
	return result
}

// find locates the unique counterpart for one record, progressively
// shortening the composite key. The first key length yielding any matches
// decides: exactly one is the answer, more than one is an ambiguity.
func (r *Resolver) find(record *model.Record, pool []*Counterpart) (*Counterpart, int, []*Counterpart) {
	for n := len(matchKeys); n > 0; n-- {
		var candidates []*Counterpart
		for _, c := range pool {
			if keysMatch(record, c, matchKeys[:n]) {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) == 1 {
			return candidates[0], len(matchKeys) - n, candidates
		}
		if len(candidates) > 1 {
			return nil, len(matchKeys) - n, candidates
		}
	}
	return nil, 0, nil
}

func keysMatch(record *model.Record, c *Counterpart, keys []string) bool {
	for _, key := range keys {
		local := recordKeyValue(record, key)
		remote := c.keyValue(key)
		if local == remote {
			continue
		}
		if key == "time" && timesMatch(record.StringField("time"), c.Time) {
			continue
		}
		return false
	}
	return true
}

func recordKeyValue(record *model.Record, key string) any {
	if key == "players" {
		return model.JoinPlayers(record.Players())
	}
	return record.Fields[key]
}

// timesMatch allows the local time's tic fraction to be absent on the
// external side, which stores some historical times without tics.
func timesMatch(local, remote string) bool {
	if local == remote {
		return true
	}
	return strings.SplitN(local, ".", 2)[0] == remote
}

// diff compares every field both sides carry. The key fields always
// compare; Extra fields compare when the record has them too.
func diff(record *model.Record, c *Counterpart) []Diff {
	var diffs []Diff
	add := func(field string, local, remote any) {
		if local == remote {
			return
		}
		if field == "time" {
			localStr, _ := local.(string)
			remoteStr, _ := remote.(string)
			if timesMatch(localStr, remoteStr) {
				return
			}
		}
		diffs = append(diffs, Diff{Field: field, Local: local, Counterpart: remote})
	}

	add("level", record.Fields["level"], c.Level)
	add("time", record.Fields["time"], c.Time)
	add("wad", record.Fields["wad"], c.Wad)
	add("category", record.Fields["category"], c.Category)
	if players := record.Players(); model.JoinPlayers(players) != model.JoinPlayers(c.Players) {
		diffs = append(diffs, Diff{Field: "players", Local: players, Counterpart: c.Players})
	}
	extraFields := make([]string, 0, len(c.Extra))
	for field := range c.Extra {
		extraFields = append(extraFields, field)
	}
	sort.Strings(extraFields)
	for _, field := range extraFields {
		local, ok := record.Fields[field]
		if !ok {
			continue
		}
		add(field, local, c.Extra[field])
	}
	return diffs
}

func remove(pool []*Counterpart, target *Counterpart) []*Counterpart {
	out := pool[:0]
	for _, c := range pool {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
