package model

import "strings"

// Certainty classifies how much a source trusts a value it reports
type Certainty int

const (
	// Possible marks a guess that other sources may contradict
	Possible Certainty = iota
	// Certain marks a value the source can prove from its input alone
	Certain
)

func (c Certainty) String() string {
	if c == Certain {
		return "certain"
	}
	return "possible"
}

// Well-known fact fields. Sources insert these into the ledger; the
// assembler maps them to their published names.
const (
	FieldCategory   = "category"
	FieldEngine     = "source_port"
	FieldGuys       = "num_players"
	FieldItems      = "items"
	FieldKills      = "kills"
	FieldLevel      = "level"
	FieldLevelstat  = "levelstat"
	FieldPlayers    = "player_list"
	FieldRecordedAt = "recorded_at"
	FieldSecretExit = "secret_exit"
	FieldSecrets    = "secrets"
	FieldSoloNet    = "is_solo_net"
	FieldTAS        = "is_tas"
	FieldTime       = "time"
	FieldVideoLink  = "video_link"
	FieldWad        = "wad"
)

// Source tags identifying where a fact came from
const (
	SourceDemo     = "demo"
	SourceExtra    = "extra_info"
	SourcePlayback = "playback"
	SourcePost     = "post"
	SourceTextfile = "textfile"
)

// playerSep joins player names into one comparable ledger value. Names on
// the archive never contain the separator.
const playerSep = "\x1f"

// JoinPlayers encodes a player list as a single ledger value.
func JoinPlayers(players []string) string {
	return strings.Join(players, playerSep)
}

// SplitPlayers decodes a value produced by JoinPlayers.
func SplitPlayers(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, playerSep)
}
