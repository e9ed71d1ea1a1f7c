package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
shards: 2
domains: 3
ring_capacity: 128
commit_timeout: 500ms
lockchain:
  peers: [peer1, peer2]
  quorum_threshold: 2
  self_peer_id: self
  storage_path: /tmp/lockchain.db
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Shards)
	assert.Equal(t, 3, cfg.Domains)
	assert.Equal(t, 128, cfg.RingCapacity)
	assert.Equal(t, uint32(8), cfg.TickBudget, "default kept")
	assert.Equal(t, 500*time.Millisecond, cfg.CommitTimeoutDuration())
	require.NotNil(t, cfg.Lockchain)
	assert.Equal(t, []string{"peer1", "peer2"}, cfg.Lockchain.Peers)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "shard: 2\n", "failed to parse YAML"},
		{"too many shards", "shards: 9\n", "invalid config"},
		{"zero domains", "domains: 0\n", "invalid config"},
		{"small ring", "ring_capacity: 4\n", "invalid config"},
		{"ring not power of two", "ring_capacity: 48\n", "not a power of two"},
		{"bad timeout", "commit_timeout: soon\n", "invalid config"},
		{"bad log level", "log:\n  level: loud\n  format: text\n", "invalid config"},
		{"negative beat rate", "beat_rate: -1\n", "invalid config"},
		{
			"quorum larger than membership",
			"lockchain:\n  peers: [a]\n  quorum_threshold: 3\n  self_peer_id: s\n  storage_path: x.db\n",
			"exceeds 2 members",
		},
		{
			"lockchain without storage",
			"lockchain:\n  peers: []\n  quorum_threshold: 1\n  self_peer_id: s\n  storage_path: \"\"\n",
			"invalid config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shards: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Shards)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		cfg := Default()
		cfg.Log.Level = level
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
