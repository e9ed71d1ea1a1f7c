package harness

import (
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/scheduler"
)

// Trace event types.
const (
	EventAdmit  = "admit"
	EventReject = "reject"
	EventBeat   = "beat"
	EventPark   = "park"
	EventCommit = "commit"
)

// TraceEvent is one step of a scenario run.
// Fields not relevant to Type are left at their zero value and omitted
// from the canonical form.
type TraceEvent struct {
	Type     string `json:"type"`
	Beat     int    `json:"beat"`
	Cycle    uint64 `json:"cycle"`
	Tick     uint64 `json:"tick,omitempty"`
	Pulse    bool   `json:"pulse,omitempty"`
	Domain   int    `json:"domain,omitempty"`
	Rows     int    `json:"rows,omitempty"`
	Code     string `json:"code,omitempty"`
	ID       string `json:"id,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Receipts int    `json:"receipts,omitempty"`
	Lanes    int    `json:"lanes,omitempty"`
	Shards   []int  `json:"shards,omitempty"`
}

// Fields returns the event's canonical field set.
func (e TraceEvent) Fields() map[string]any {
	m := map[string]any{
		"type":  e.Type,
		"beat":  e.Beat,
		"cycle": int64(e.Cycle),
	}
	switch e.Type {
	case EventAdmit:
		m["domain"] = e.Domain
		m["rows"] = e.Rows
	case EventReject:
		m["domain"] = e.Domain
		m["code"] = e.Code
	case EventBeat:
		m["tick"] = int64(e.Tick)
		m["pulse"] = e.Pulse
	case EventPark:
		m["domain"] = e.Domain
		m["tick"] = int64(e.Tick)
		m["id"] = e.ID
		m["cause"] = e.Cause
	case EventCommit:
		m["receipts"] = e.Receipts
		m["lanes"] = e.Lanes
		shards := make([]any, len(e.Shards))
		for i, s := range e.Shards {
			shards[i] = s
		}
		m["shards"] = shards
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every delta expectation and
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains every admission, beat, park and commit in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Receipts are all receipts committed during the run.
	Receipts []ir.Receipt `json:"receipts"`

	// Parked are all deltas parked during the run.
	Parked []ir.ParkedDelta `json:"parked"`

	// LastRoot is the last provenance root, if any cycle committed receipts.
	LastRoot *ir.ProvenanceRoot `json:"last_root,omitempty"`

	// Stats are the scheduler counters after the final beat.
	Stats scheduler.Stats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Receipts: []ir.Receipt{},
		Parked:   []ir.ParkedDelta{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
