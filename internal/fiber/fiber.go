package fiber

import (
	"fmt"

	"github.com/roach88/cadence/internal/ir"
)

// DefaultTickBudget is the per-execution budget (the Chatman constant).
const DefaultTickBudget = ir.BeatWidth

// Outcome distinguishes completed from parked executions.
type Outcome int

const (
	// OutcomeCompleted means the batch ran within budget.
	OutcomeCompleted Outcome = iota + 1
	// OutcomeParked means the fiber deferred the batch.
	OutcomeParked
)

// Result is the self-reported outcome of ExecuteTick.
//
// Completed results carry Action and Receipt. Parked results carry the
// original Delta, the receipt-in-progress and the Cause.
type Result struct {
	Outcome Outcome
	Action  ir.Columns
	Receipt ir.Receipt
	Delta   ir.Batch
	Cause   ir.ParkCause
}

// Completed reports whether the batch ran to completion.
func (r Result) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// Fiber is the cooperative execution unit owned by one shard.
//
// Thread-safety: a Fiber is driven by the scheduler's single driving
// goroutine and is not safe for concurrent use.
type Fiber struct {
	shardID uint32
	budget  uint32
	kernel  Kernel

	// Per-cycle state, cleared by YieldControl.
	cycleTicks   uint32
	cycleRuns    int
	cycleParks   int
	spanSeq      uint64
	lastCycleID  uint64
	totalRuns    uint64
	totalParks   uint64
	yieldedCount uint64
}

// New creates a fiber for shardID with the given tick budget and kernel.
// A nil kernel defaults to ReflexKernel.
func New(shardID uint32, budget uint32, kernel Kernel) *Fiber {
	if kernel == nil {
		kernel = ReflexKernel{}
	}
	return &Fiber{
		shardID: shardID,
		budget:  budget,
		kernel:  kernel,
	}
}

// ShardID returns the owning shard.
func (f *Fiber) ShardID() uint32 {
	return f.shardID
}

// Budget returns the tick budget per execution.
func (f *Fiber) Budget() uint32 {
	return f.budget
}

// ExecuteTick runs one batch. It never blocks on anything but the kernel.
func (f *Fiber) ExecuteTick(tick uint64, b ir.Batch, cycleID uint64) Result {
	action, ticks := f.kernel.Run(b)

	spanID := ir.SpanID(f.shardID, cycleID, f.spanSeq)
	f.spanSeq++
	f.lastCycleID = cycleID

	receipt := ir.Receipt{
		ID:          ir.ReceiptIDFor(spanID),
		CycleID:     cycleID,
		ShardID:     f.shardID,
		HookID:      f.kernel.HookID(),
		Ticks:       f.budget,
		ActualTicks: ticks,
		Lanes:       uint32(b.Len()),
		SpanID:      spanID,
		AHash:       AHash(action),
	}

	if ticks > f.budget {
		f.cycleParks++
		f.totalParks++
		return Result{
			Outcome: OutcomeParked,
			Receipt: receipt,
			Delta:   b,
			Cause:   ir.ParkCauseTickBudgetExceeded,
		}
	}

	f.cycleTicks += ticks
	f.cycleRuns++
	f.totalRuns++
	return Result{
		Outcome: OutcomeCompleted,
		Action:  action,
		Receipt: receipt,
	}
}

// YieldControl resets per-cycle state at the commit boundary.
func (f *Fiber) YieldControl() {
	f.cycleTicks = 0
	f.cycleRuns = 0
	f.cycleParks = 0
	f.spanSeq = 0
	f.yieldedCount++
}

// State is a read-only snapshot of a fiber.
type State struct {
	ShardID     uint32 `json:"shard_id"`
	Budget      uint32 `json:"budget"`
	CycleTicks  uint32 `json:"cycle_ticks"`
	CycleRuns   int    `json:"cycle_runs"`
	CycleParks  int    `json:"cycle_parks"`
	LastCycleID uint64 `json:"last_cycle_id"`
	TotalRuns   uint64 `json:"total_runs"`
	TotalParks  uint64 `json:"total_parks"`
	Yields      uint64 `json:"yields"`
}

// Snapshot returns the fiber's current state.
func (f *Fiber) Snapshot() State {
	return State{
		ShardID:     f.shardID,
		Budget:      f.budget,
		CycleTicks:  f.cycleTicks,
		CycleRuns:   f.cycleRuns,
		CycleParks:  f.cycleParks,
		LastCycleID: f.lastCycleID,
		TotalRuns:   f.totalRuns,
		TotalParks:  f.totalParks,
		Yields:      f.yieldedCount,
	}
}

// IsReset reports whether the fiber holds no per-cycle state.
func (s State) IsReset() bool {
	return s.CycleTicks == 0 && s.CycleRuns == 0 && s.CycleParks == 0
}

func (s State) String() string {
	return fmt.Sprintf("fiber[%d] ticks=%d/%d runs=%d parks=%d",
		s.ShardID, s.CycleTicks, s.Budget, s.CycleRuns, s.CycleParks)
}
