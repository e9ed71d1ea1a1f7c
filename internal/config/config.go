// Package config loads scheduler configuration from YAML.
//
// Files are decoded over Default() with unknown fields rejected, then
// validated against an embedded CUE schema and a few cross-field rules
// CUE cannot express cheaply (power-of-two capacity, quorum size).
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full scheduler configuration.
type Config struct {
	Shards        int              `yaml:"shards" json:"shards"`
	Domains       int              `yaml:"domains" json:"domains"`
	RingCapacity  int              `yaml:"ring_capacity" json:"ring_capacity"`
	TickBudget    uint32           `yaml:"tick_budget" json:"tick_budget"`
	BeatRate      float64          `yaml:"beat_rate" json:"beat_rate"`
	CommitTimeout string           `yaml:"commit_timeout" json:"commit_timeout"`
	ParkHighWater int              `yaml:"park_high_water" json:"park_high_water"`
	Lockchain     *LockchainConfig `yaml:"lockchain,omitempty" json:"lockchain,omitempty"`
	Log           LogConfig        `yaml:"log" json:"log"`
}

// LockchainConfig enables provenance persistence.
type LockchainConfig struct {
	Peers           []string `yaml:"peers" json:"peers,omitempty"`
	QuorumThreshold int      `yaml:"quorum_threshold" json:"quorum_threshold"`
	SelfPeerID      string   `yaml:"self_peer_id" json:"self_peer_id"`
	StoragePath     string   `yaml:"storage_path" json:"storage_path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Shards:        4,
		Domains:       1,
		RingCapacity:  64,
		TickBudget:    8,
		BeatRate:      1000,
		CommitTimeout: "2s",
		ParkHighWater: 1024,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads, decodes and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // Reject unknown fields
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the CUE schema and cross-field rules.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.RingCapacity&(c.RingCapacity-1) != 0 {
		return fmt.Errorf("invalid config: ring_capacity %d is not a power of two", c.RingCapacity)
	}
	if lc := c.Lockchain; lc != nil && lc.QuorumThreshold > len(lc.Peers)+1 {
		return fmt.Errorf("invalid config: quorum_threshold %d exceeds %d members",
			lc.QuorumThreshold, len(lc.Peers)+1)
	}
	return nil
}

// CommitTimeoutDuration parses CommitTimeout.
func (c Config) CommitTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CommitTimeout)
	if err != nil {
		// Validate rejects unparsable values; fall back for unvalidated configs.
		return 2 * time.Second
	}
	return d
}

// SlogLevel maps Log.Level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
