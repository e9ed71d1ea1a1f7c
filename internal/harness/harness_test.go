package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"end_to_end", "budget_overrun"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_EndToEndResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/end_to_end.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Receipts, 2)
	assert.Equal(t, uint32(0), result.Receipts[0].ShardID)
	assert.Equal(t, uint32(1), result.Receipts[1].ShardID, "tick 3 maps domain 0 to shard 1")
	assert.Equal(t, uint64(3), result.Receipts[1].CycleID)

	require.NotNil(t, result.LastRoot)
	assert.Equal(t, uint64(1), result.LastRoot.CycleID, "second pulse commits epoch 1")
	assert.Equal(t, ir.MustReceiptHash(result.Receipts[1]), result.LastRoot.Root,
		"single-leaf root is the leaf")

	assert.Equal(t, uint64(2), result.Stats.Admitted)
	assert.Equal(t, uint64(2), result.Stats.Rejected)
	assert.Equal(t, uint64(2), result.Stats.Executed)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/end_to_end.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Receipts, second.Receipts)
	assert.Equal(t, first.LastRoot, second.LastRoot)
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:     "mismatch",
		Shards:   1,
		Domains:  1,
		Capacity: 8,
		Beats:    1,
		Deltas: []DeltaStep{{
			Domain: 0,
			Expect: ExpectRingFull,
			Triples: []ir.RawTriple{
				{Subject: "s", Predicate: "p", Object: "o"},
			},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected ring_full, got admitted")
}

func TestRun_InvalidDimensions(t *testing.T) {
	_, err := Run(&Scenario{Name: "bad", Shards: 9, Domains: 1, Capacity: 8, Beats: 1})
	assert.Error(t, err)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "beats: 1\n",
			wantErr: "name is required",
		},
		{
			name:    "zero beats",
			yaml:    "name: x\n",
			wantErr: "beats must be at least 1",
		},
		{
			name:    "unknown field",
			yaml:    "name: x\nbeats: 1\nbeat_count: 3\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "delta after last beat",
			yaml:    "name: x\nbeats: 1\ndeltas:\n  - at_beat: 1\n",
			wantErr: "at_beat 1 outside 0..0",
		},
		{
			name:    "unknown expectation",
			yaml:    "name: x\nbeats: 1\ndeltas:\n  - expect: maybe\n",
			wantErr: "unknown expect",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nbeats: 1\nassertions:\n  - type: final_state\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "trace_count without event",
			yaml:    "name: x\nbeats: 1\nassertions:\n  - type: trace_count\n    count: 1\n",
			wantErr: "event is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}
