package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var endToEndScenario = filepath.Join("..", "harness", "testdata", "scenarios", "end_to_end.yaml")

func executeSimulate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSimulate_Scenario(t *testing.T) {
	out, err := executeSimulate(t, "text", endToEndScenario)
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: end_to_end (shards=2 domains=1 capacity=8 beats=9)")
	assert.Contains(t, out, "reject  domain=0 cycle=3 code=RING_FULL")
	assert.Contains(t, out, "beat    cycle=0 tick=0 pulse")
	assert.Contains(t, out, "PASS")
}

func TestSimulate_ScenarioJSON(t *testing.T) {
	out, err := executeSimulate(t, "json", endToEndScenario)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Pass  bool              `json:"pass"`
			Trace []json.RawMessage `json:"trace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.NotEmpty(t, resp.Data.Trace)
}

func TestSimulate_DeltaFileWithFlags(t *testing.T) {
	deltas := writeFile(t, "friends.json", `{"deltas": [
		{"domain": 0, "cycle": 0, "delta": [{"s": "ex:alice", "p": "ex:knows", "o": "ex:bob"}]}
	]}`)

	out, err := executeSimulate(t, "text",
		"--shards", "2", "--domains", "1", "--capacity", "8", "--beats", "9", deltas)
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: friends")
	assert.Contains(t, out, "admit   domain=0 cycle=0 rows=1")
	assert.Contains(t, out, "commit  cycle=0 receipts=1")
	assert.Contains(t, out, "Receipts: 1, parked: 0")
	assert.Contains(t, out, "Last root: cycle 0")
}

func TestSimulate_FailedExpectation(t *testing.T) {
	scenario := writeFile(t, "wrong.yaml", `
name: wrong
shards: 2
domains: 1
capacity: 8
beats: 1
deltas:
  - at_beat: 0
    domain: 0
    cycle: 0
    expect: ring_full
    triples:
      - { subject: "ex:a", predicate: "ex:b", object: "ex:c" }
`)

	out, err := executeSimulate(t, "text", scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "expected ring_full, got admitted")
}

func TestSimulate_MissingInput(t *testing.T) {
	out, err := executeSimulate(t, "text", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E004")
}

func TestSimulate_InvalidDimensions(t *testing.T) {
	out, err := executeSimulate(t, "text", "--shards", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
}
