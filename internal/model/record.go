package model

// NeedsAttention is the sentinel stored for fields no source could settle.
// Records carrying it are routed to manual review by the consumer.
const NeedsAttention = "UNKNOWN"

// Tag is one annotation block attached to a published record
type Tag struct {
	Show bool   `json:"show"`
	Text string `json:"text"`
}

// Record is the canonical machine-checkable result for one demo. Fields is
// keyed on the published names (tas, solo_net, guys, wad, engine, time,
// level, levelstat, category, secret_exit, recorded_at, players, ...).
type Record struct {
	Fields map[string]any `json:"fields"`
	Tags   []Tag          `json:"tags,omitempty"`

	// HasIssue means at least one field could not be settled automatically
	HasIssue bool `json:"has_issue"`
	// MaybeCheated means the tool-assistance determination needs review
	MaybeCheated bool `json:"maybe_cheated"`
}

// Players returns the decoded player list, or nil if absent.
func (r *Record) Players() []string {
	v, ok := r.Fields["players"]
	if !ok {
		return nil
	}
	players, ok := v.([]string)
	if !ok {
		return nil
	}
	return players
}

// StringField returns a field as a string, with "" for absent or non-string
// values.
func (r *Record) StringField(key string) string {
	v, ok := r.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
