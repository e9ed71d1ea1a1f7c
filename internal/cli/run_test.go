package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/store"
)

func executeRun(t *testing.T, ctx context.Context, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func decodeRunSummary(t *testing.T, out string) RunSummary {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestRun_BeatLimitWithLockchain(t *testing.T) {
	deltas := writeFile(t, "deltas.json", `[
		{"subject": "ex:alice", "predicate": "ex:knows", "object": "ex:bob"},
		{"subject": "ex:bob", "predicate": "ex:knows", "object": "ex:carol"}
	]`)
	dbPath := filepath.Join(t.TempDir(), "roots.db")

	out, err := executeRun(t, t.Context(), "json",
		"--deltas", deltas, "--db", dbPath, "--beats", "9", "--rate", "0")
	require.NoError(t, err)

	summary := decodeRunSummary(t, out)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, 0, summary.Rejected)
	assert.Equal(t, uint64(9), summary.Stats.Cycle)
	assert.Equal(t, uint64(1), summary.Stats.Executed)
	assert.Equal(t, uint64(2), summary.Stats.Commits, "pulses at cycles 0 and 8")
	assert.Zero(t, summary.Stats.ProvenanceFailures)
	require.NotNil(t, summary.LastRoot)
	assert.Equal(t, uint64(0), summary.LastRoot.CycleID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	entry, err := st.GetRoot(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, summary.LastRoot.Root, entry.Root)
	assert.Equal(t, 1, entry.ReceiptCount)
	assert.Equal(t, 1, entry.Proof.VoteCount(), "local peer votes alone")
}

func TestRun_ResumesAfterPersistedRoots(t *testing.T) {
	deltas := writeFile(t, "deltas.json", `[
		{"subject": "ex:alice", "predicate": "ex:knows", "object": "ex:bob"}
	]`)
	dbPath := filepath.Join(t.TempDir(), "roots.db")
	args := []string{"--deltas", deltas, "--db", dbPath, "--beats", "9", "--rate", "0"}

	out, err := executeRun(t, t.Context(), "json", args...)
	require.NoError(t, err)
	first := decodeRunSummary(t, out)
	require.NotNil(t, first.LastRoot)
	assert.Equal(t, uint64(0), first.LastRoot.CycleID)

	out, err = executeRun(t, t.Context(), "json", args...)
	require.NoError(t, err)
	second := decodeRunSummary(t, out)
	assert.Equal(t, uint64(17), second.Stats.Cycle, "cycles 8 through 16")
	require.NotNil(t, second.LastRoot)
	assert.Equal(t, uint64(1), second.LastRoot.CycleID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	roots, err := st.GetRootsRange(t.Context(), 0, 16)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, first.LastRoot.Root, roots[0].Root, "epoch 0 is not overwritten")
	assert.Equal(t, second.LastRoot.Root, roots[1].Root)

	verified, err := executeCommand(t, NewVerifyCommand, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, verified, "OK")
}

func TestRun_ConfigFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "configured.db")
	cfg := writeFile(t, "cadence.yaml", `
shards: 2
domains: 2
ring_capacity: 16
beat_rate: 0
lockchain:
  peers: [peer-a, peer-b]
  quorum_threshold: 2
  self_peer_id: self
  storage_path: `+dbPath+`
`)
	deltas := writeFile(t, "deltas.json", `{"deltas": [
		{"domain": 1, "cycle": 2, "delta": [{"s": "ex:s", "p": "ex:p", "o": "ex:o"}]},
		{"domain": 7, "cycle": 0, "delta": [{"s": "ex:s", "p": "ex:p", "o": "ex:o"}]}
	]}`)

	out, err := executeRun(t, t.Context(), "json", "--config", cfg, "--deltas", deltas, "--beats", "9")
	require.NoError(t, err)

	summary := decodeRunSummary(t, out)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, 1, summary.Rejected, "domain 7 does not exist")
	require.NotNil(t, summary.LastRoot)
	assert.Equal(t, 2, summary.LastRoot.Proof.VoteCount())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.RootCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_OversizedDeltaIsChunked(t *testing.T) {
	deltas := writeFile(t, "big.json", `[
		{"s": "ex:1", "p": "ex:p", "o": "ex:o"}, {"s": "ex:2", "p": "ex:p", "o": "ex:o"},
		{"s": "ex:3", "p": "ex:p", "o": "ex:o"}, {"s": "ex:4", "p": "ex:p", "o": "ex:o"},
		{"s": "ex:5", "p": "ex:p", "o": "ex:o"}, {"s": "ex:6", "p": "ex:p", "o": "ex:o"},
		{"s": "ex:7", "p": "ex:p", "o": "ex:o"}, {"s": "ex:8", "p": "ex:p", "o": "ex:o"},
		{"s": "ex:9", "p": "ex:p", "o": "ex:o"}
	]`)

	out, err := executeRun(t, t.Context(), "json", "--deltas", deltas, "--beats", "1", "--rate", "0")
	require.NoError(t, err)

	summary := decodeRunSummary(t, out)
	assert.Equal(t, 2, summary.Admitted+summary.Rejected, "nine triples split into runs of 8 and 1")
	assert.Nil(t, summary.LastRoot, "no lockchain configured")
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	out, err := executeRun(t, ctx, "text", "--rate", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped at cycle")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := writeFile(t, "bad.yaml", "ring_capacity: 12\n")

	out, err := executeRun(t, t.Context(), "text", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E002")
}

func TestRun_MissingDeltaFile(t *testing.T) {
	out, err := executeRun(t, t.Context(), "text", "--deltas", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E004")
}

func TestResumeCycle(t *testing.T) {
	empty, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer empty.Close()

	start, err := resumeCycle(t.Context(), empty)
	require.NoError(t, err)
	assert.Zero(t, start)

	seeded, err := store.Open(seedLockchain(t, 1, 4))
	require.NoError(t, err)
	defer seeded.Close()

	start, err = resumeCycle(t.Context(), seeded)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), start, "first cycle of epoch 5")
}
