package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/ir"
)

// Scenario defines a deterministic scheduler run.
type Scenario struct {
	// Name uniquely identifies this scenario; also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Shards, Domains and Capacity are passed to scheduler.New.
	Shards   int `yaml:"shards"`
	Domains  int `yaml:"domains"`
	Capacity int `yaml:"capacity"`

	// Beats is the number of AdvanceBeat calls.
	Beats int `yaml:"beats"`

	// KernelCost, when non-zero, makes every batch cost this many ticks.
	KernelCost uint32 `yaml:"kernel_cost,omitempty"`

	// TickBudget overrides the fiber budget when non-zero.
	TickBudget uint32 `yaml:"tick_budget,omitempty"`

	// Deltas are admitted before the beat named by AtBeat.
	Deltas []DeltaStep `yaml:"deltas"`

	// Assertions validate the trace and totals.
	// Supported types: trace_contains, trace_order, trace_count,
	// receipts_total, parked_total
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DeltaStep is one EnqueueDelta call.
type DeltaStep struct {
	AtBeat  int            `yaml:"at_beat"`
	Domain  int            `yaml:"domain"`
	Cycle   uint64         `yaml:"cycle"`
	Triples []ir.RawTriple `yaml:"triples"`

	// Expect is the expected admission outcome. Empty means no check.
	Expect string `yaml:"expect,omitempty"`
}

// Admission outcomes.
const (
	ExpectAdmitted         = "admitted"
	ExpectRingFull         = "ring_full"
	ExpectConversionFailed = "conversion_failed"
	ExpectInvalidDomain    = "invalid_domain"
)

// Assertion validates the trace or totals.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event type matches Where
	// - "trace_order": event types appear in this relative order
	// - "trace_count": events of Event type occur exactly Count times
	// - "receipts_total": Count receipts were committed
	// - "parked_total": Count deltas were parked
	Type string `yaml:"type"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Where holds field values to match (trace_contains).
	// Subset match - only specified fields are validated.
	Where map[string]any `yaml:"where,omitempty"`

	// Count is the expected number (trace_count, receipts_total, parked_total).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertReceiptsTotal = "receipts_total"
	AssertParkedTotal   = "parked_total"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks that required fields are present and valid.
// Scheduler dimensions are validated by scheduler.New at run time.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Beats < 1 {
		return fmt.Errorf("beats must be at least 1")
	}

	for i, d := range s.Deltas {
		if d.AtBeat < 0 || d.AtBeat >= s.Beats {
			return fmt.Errorf("deltas[%d]: at_beat %d outside 0..%d", i, d.AtBeat, s.Beats-1)
		}
		switch d.Expect {
		case "", ExpectAdmitted, ExpectRingFull, ExpectConversionFailed, ExpectInvalidDomain:
		default:
			return fmt.Errorf("deltas[%d]: unknown expect %q", i, d.Expect)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertReceiptsTotal, AssertParkedTotal:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
