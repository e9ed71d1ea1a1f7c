package harness

import (
	"fmt"
	"strings"
)

// AssertionError describes a failed assertion with context.
type AssertionError struct {
	Index     int
	Type      string
	Message   string
	Expected  any
	Actual    any
	TraceInfo string
}

func (e *AssertionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "assertion %d (%s) failed: %s", e.Index, e.Type, e.Message)
	if e.Expected != nil {
		fmt.Fprintf(&sb, "\n  expected: %v", e.Expected)
	}
	if e.Actual != nil {
		fmt.Fprintf(&sb, "\n  actual: %v", e.Actual)
	}
	if e.TraceInfo != "" {
		fmt.Fprintf(&sb, "\n  trace: %s", e.TraceInfo)
	}
	return sb.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertReceiptsTotal:
			err = assertTotal(a, len(result.Receipts))
		case AssertParkedTotal:
			err = assertTotal(a, len(result.Parked))
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Index = i
			}
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, e := range trace {
		if e.Type == a.Event && matchFields(e.Fields(), a.Where) {
			return nil
		}
	}
	return &AssertionError{
		Type:      a.Type,
		Message:   fmt.Sprintf("no %s event matches", a.Event),
		Expected:  a.Where,
		TraceInfo: summarize(trace),
	}
}

// assertTraceOrder checks that a.Events is a subsequence of the trace's
// event types.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Events) && e.Type == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:      a.Type,
		Message:   fmt.Sprintf("event %q not found in order", a.Events[next]),
		Expected:  a.Events,
		TraceInfo: summarize(trace),
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Type == a.Event {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Message:  fmt.Sprintf("wrong number of %s events", a.Event),
		Expected: a.Count,
		Actual:   n,
	}
}

func assertTotal(a Assertion, got int) error {
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Message:  "wrong total",
		Expected: a.Count,
		Actual:   got,
	}
}

// matchFields is a subset match. Values compare by their printed form so
// YAML ints match int64 fields.
func matchFields(actual, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func summarize(trace []TraceEvent) string {
	types := make([]string, len(trace))
	for i, e := range trace {
		types[i] = e.Type
	}
	return strings.Join(types, ",")
}
