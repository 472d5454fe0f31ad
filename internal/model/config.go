package model

import "time"

// Config holds all runtime configuration for demoscribe
type Config struct {
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Playback    PlaybackConfig    `yaml:"playback" mapstructure:"playback"`
	Dates       DateConfig        `yaml:"dates" mapstructure:"dates"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// EngineConfig locates the external replay engine
type EngineConfig struct {
	// Binary is the replay engine executable
	Binary string `yaml:"binary" mapstructure:"binary"`
	// Dir is the working directory holding base game data and resources
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// RulesConfig locates the rule index inputs
type RulesConfig struct {
	// ResourceSets is the YAML table of known resource sets
	ResourceSets string `yaml:"resource_sets" mapstructure:"resource_sets"`
	// ThreadMap is the YAML map of thread-level override configuration
	ThreadMap string `yaml:"thread_map" mapstructure:"thread_map"`
}

// PlaybackConfig tunes the replay analyzer
type PlaybackConfig struct {
	// Skip disables replay entirely; records come out partial
	Skip bool `yaml:"skip" mapstructure:"skip"`
	// Exhaustive tries every candidate and keeps the longest playback
	Exhaustive bool `yaml:"exhaustive" mapstructure:"exhaustive"`
	// AlwaysTrySoloNet adds forced solo-net retries for every candidate
	AlwaysTrySoloNet bool `yaml:"always_try_solo_net" mapstructure:"always_try_solo_net"`
	// TrustCategory promotes the engine's category guess to certain
	TrustCategory bool `yaml:"trust_category" mapstructure:"trust_category"`
}

// DateConfig bounds plausible recording dates
type DateConfig struct {
	// Cutoff rejects recorded-at values before this instant
	Cutoff time.Time `yaml:"cutoff" mapstructure:"cutoff"`
	// CheckTextDate falls back to the readme timestamp when the archive
	// member timestamp is implausible
	CheckTextDate bool `yaml:"check_text_date" mapstructure:"check_text_date"`
}

// ConcurrencyConfig tunes batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// LaunchesPerSecond throttles replay engine starts across workers
	LaunchesPerSecond float64 `yaml:"launches_per_second" mapstructure:"launches_per_second"`
	LaunchBurst       int     `yaml:"launch_burst" mapstructure:"launch_burst"`
}

// OutputConfig controls where finished records land
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns the standard configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Binary: "dsda-doom",
			Dir:    ".",
		},
		Rules: RulesConfig{
			ResourceSets: "resource_sets.yaml",
			ThreadMap:    "thread_map.yaml",
		},
		Playback: PlaybackConfig{},
		Dates: DateConfig{
			// Around the time the first demos plausibly appeared
			Cutoff:        time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC),
			CheckTextDate: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           2,
			LaunchesPerSecond: 1,
			LaunchBurst:       2,
		},
		Output: OutputConfig{
			Dir: "records",
		},
	}
}
