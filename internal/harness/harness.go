package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/lockchain"
	"github.com/roach88/cadence/internal/park"
	"github.com/roach88/cadence/internal/scheduler"
	"github.com/roach88/cadence/internal/testutil"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes scheduler logs. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario against a fresh scheduler and returns the result.
//
// Execution flow:
//  1. Build the scheduler with deterministic clock and parked IDs
//  2. For each beat: admit the deltas scheduled for it, advance,
//     record parks and the commit
//  3. Evaluate delta expectations and assertions
//
// Returns an error only when the scheduler cannot be constructed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(cfg.logger),
		scheduler.WithClock(testutil.NewDeterministicClock()),
		scheduler.WithIDGenerator(park.NewSequenceGenerator("parked")),
		scheduler.WithSink(lockchain.New(lockchain.WithLogger(cfg.logger))),
	}
	if scenario.KernelCost > 0 {
		schedOpts = append(schedOpts, scheduler.WithKernel(&testutil.CostKernel{Cost: scenario.KernelCost}))
	}
	if scenario.TickBudget > 0 {
		schedOpts = append(schedOpts, scheduler.WithTickBudget(scenario.TickBudget))
	}

	sched, err := scheduler.New(scenario.Shards, scenario.Domains, scenario.Capacity, schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer sched.Close()

	result := NewResult()
	byBeat := make(map[int][]int, len(scenario.Deltas))
	for i, d := range scenario.Deltas {
		byBeat[d.AtBeat] = append(byBeat[d.AtBeat], i)
	}

	for b := 0; b < scenario.Beats; b++ {
		for _, i := range byBeat[b] {
			admit(sched, b, i, scenario.Deltas[i], result)
		}

		cycle := sched.CurrentCycle()
		tick, pulse := sched.AdvanceBeat()
		result.add(TraceEvent{Type: EventBeat, Beat: b, Cycle: cycle, Tick: tick, Pulse: pulse})

		for _, p := range sched.ParkedDeltas() {
			result.Parked = append(result.Parked, p)
			result.add(TraceEvent{
				Type:   EventPark,
				Beat:   b,
				Cycle:  p.CycleID,
				Tick:   p.Tick,
				Domain: p.DomainID,
				ID:     p.ID,
				Cause:  p.Cause.String(),
			})
		}

		if pulse {
			receipts := sched.CycleReceipts()
			result.Receipts = append(result.Receipts, receipts...)
			result.add(commitEvent(b, cycle, receipts))
		}
	}

	if root, ok := sched.LastRoot(); ok {
		result.LastRoot = &root
	}
	result.Stats = sched.Stats()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func admit(sched *scheduler.Scheduler, b, index int, d DeltaStep, result *Result) {
	err := sched.EnqueueDelta(d.Domain, d.Triples, d.Cycle)
	if err == nil {
		result.add(TraceEvent{Type: EventAdmit, Beat: b, Cycle: d.Cycle, Domain: d.Domain, Rows: len(d.Triples)})
	} else {
		code := "UNKNOWN"
		var se *scheduler.SchedulerError
		if errors.As(err, &se) {
			code = string(se.Code)
		}
		result.add(TraceEvent{Type: EventReject, Beat: b, Cycle: d.Cycle, Domain: d.Domain, Code: code})
	}

	if d.Expect == "" {
		return
	}
	if got := outcome(err); got != d.Expect {
		result.AddError(fmt.Sprintf("deltas[%d]: expected %s, got %s (%v)", index, d.Expect, got, err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return ExpectAdmitted
	case errors.Is(err, scheduler.ErrRingBufferFull):
		return ExpectRingFull
	case errors.Is(err, scheduler.ErrConversionFailed):
		return ExpectConversionFailed
	case errors.Is(err, scheduler.ErrInvalidDomainCount):
		return ExpectInvalidDomain
	default:
		return "error"
	}
}

func commitEvent(b int, cycle uint64, receipts []ir.Receipt) TraceEvent {
	e := TraceEvent{Type: EventCommit, Beat: b, Cycle: cycle, Receipts: len(receipts), Shards: []int{}}
	for _, r := range receipts {
		e.Lanes += int(r.Lanes)
		e.Shards = append(e.Shards, int(r.ShardID))
	}
	return e
}
