package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.add(TraceEvent{Type: EventAdmit, Beat: 0, Domain: 1, Rows: 2})
	r.add(TraceEvent{Type: EventBeat, Beat: 0, Pulse: true})
	r.add(TraceEvent{Type: EventPark, Beat: 0, Domain: 1, ID: "parked-1", Cause: "tick_budget_exceeded"})
	r.add(TraceEvent{Type: EventCommit, Beat: 0, Shards: []int{}})
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	failures := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertTraceCount, Event: EventBeat, Count: 1},
		{Type: AssertTraceOrder, Events: []string{EventAdmit, EventPark, EventCommit}},
		{Type: AssertTraceContains, Event: EventPark, Where: map[string]any{"domain": 1, "cause": "tick_budget_exceeded"}},
		{Type: AssertTraceContains, Event: EventAdmit},
		{Type: AssertReceiptsTotal, Count: 0},
		{Type: AssertParkedTotal, Count: 0},
	})
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	failures := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertTraceCount, Event: EventBeat, Count: 2},
		{Type: AssertTraceOrder, Events: []string{EventCommit, EventAdmit}},
		{Type: AssertTraceContains, Event: EventPark, Where: map[string]any{"domain": 0}},
		{Type: AssertReceiptsTotal, Count: 3},
	})
	require.Len(t, failures, 4)
	assert.Contains(t, failures[0], "assertion 0 (trace_count) failed")
	assert.Contains(t, failures[1], `event "admit" not found in order`)
	assert.Contains(t, failures[2], "no park event matches")
	assert.Contains(t, failures[3], "wrong total")
}

func TestTraceJSON_Canonical(t *testing.T) {
	out, err := TraceJSON("sample", []TraceEvent{
		{Type: EventBeat, Beat: 0, Cycle: 0, Tick: 0, Pulse: true},
		{Type: EventCommit, Beat: 0, Cycle: 0, Shards: []int{1, 0}, Receipts: 2, Lanes: 3},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"sample","trace":[`+
			`{"beat":0,"cycle":0,"pulse":true,"tick":0,"type":"beat"},`+
			`{"beat":0,"cycle":0,"lanes":3,"receipts":2,"shards":[1,0],"type":"commit"}]}`,
		string(out))
}
