package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cadence/internal/ir"
)

// TraceJSON renders a trace as canonical JSON under a scenario name.
func TraceJSON(name string, trace []TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, e := range trace {
		events[i] = e.Fields()
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"trace":         events,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
