package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cadence/internal/beat"
	"github.com/roach88/cadence/internal/fiber"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/lockchain"
	"github.com/roach88/cadence/internal/park"
	"github.com/roach88/cadence/internal/ring"
)

// MaxShards is the largest supported shard count.
const MaxShards = ir.MaxShards

// DefaultCommitTimeout bounds the provenance work of one commit.
const DefaultCommitTimeout = 2 * time.Second

// Scheduler is the beat-driven orchestrator.
//
// Thread-safety model:
//   - EnqueueDelta(): safe from any goroutine
//   - AdvanceBeat(), CommitCycle(): one driving goroutine
//   - accessors: safe from any goroutine
//   - Fibers(): inspection only, between beats
//
// INVARIANTS:
//   - every admitted delta yields exactly one receipt or one parked delta
//   - a delta admitted for cycle c executes on the beat entering a cycle
//     with the same tick, on fiber (domain + tick) mod shards
type Scheduler struct {
	clock       beat.ClockSource
	shardCount  int
	domainCount int
	capacity    int

	deltaRings     []*ring.DeltaRing
	assertionRings []*ring.AssertionRing
	fibers         []*fiber.Fiber
	park           *park.Manager

	logger        *slog.Logger
	commitTimeout time.Duration
	tickBudget    uint32
	kernel        fiber.Kernel
	idGen         park.IDGenerator
	highWater     int

	sinkMu sync.Mutex
	sink   lockchain.Sink

	commitMu  sync.Mutex
	lastCycle atomic.Uint64

	mu            sync.RWMutex
	cycleReceipts []ir.Receipt
	lastRoot      ir.ProvenanceRoot
	hasRoot       bool

	saturationLogged atomic.Bool
	stats            counters
}

type counters struct {
	admitted           atomic.Uint64
	rejected           atomic.Uint64
	executed           atomic.Uint64
	commits            atomic.Uint64
	provenanceFailures atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects a shared clock. Default: a private clock at cycle 0.
func WithClock(c beat.ClockSource) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithSink sets the provenance sink. Default: none (commit skips provenance).
func WithSink(sink lockchain.Sink) Option {
	return func(s *Scheduler) {
		s.sink = sink
	}
}

// WithKernel sets the kernel run by every fiber. Default: fiber.ReflexKernel.
func WithKernel(k fiber.Kernel) Option {
	return func(s *Scheduler) {
		s.kernel = k
	}
}

// WithIDGenerator sets the parked delta ID generator. Default: UUIDv7.
func WithIDGenerator(g park.IDGenerator) Option {
	return func(s *Scheduler) {
		s.idGen = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithCommitTimeout bounds consensus and persistence per commit.
//
// Default: 2s (DefaultCommitTimeout)
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.commitTimeout = d
	}
}

// WithTickBudget sets each fiber's per-execution budget.
//
// Default: 8 ticks (fiber.DefaultTickBudget)
func WithTickBudget(ticks uint32) Option {
	return func(s *Scheduler) {
		s.tickBudget = ticks
	}
}

// WithParkHighWater sets the park queue's warning threshold.
func WithParkHighWater(n int) Option {
	return func(s *Scheduler) {
		s.highWater = n
	}
}

// New creates a scheduler with shardCount fibers, domainCount domains and
// rings of ringCapacity rows (split evenly over the 8 tick slots).
func New(shardCount, domainCount, ringCapacity int, opts ...Option) (*Scheduler, error) {
	if shardCount < 1 || shardCount > MaxShards {
		return nil, newError(ErrCodeInvalidShardCount, -1, nil,
			"shard count %d outside 1..%d", shardCount, MaxShards)
	}
	if domainCount < 1 {
		return nil, newError(ErrCodeInvalidDomainCount, -1, nil,
			"domain count %d must be at least 1", domainCount)
	}
	if err := ring.ValidateCapacity(ringCapacity); err != nil {
		return nil, newError(ErrCodeInvalidRingCapacity, -1, err,
			"ring capacity %d", ringCapacity)
	}

	s := &Scheduler{
		shardCount:    shardCount,
		domainCount:   domainCount,
		capacity:      ringCapacity,
		logger:        slog.Default(),
		commitTimeout: DefaultCommitTimeout,
		tickBudget:    fiber.DefaultTickBudget,
		idGen:         park.UUIDv7Generator{},
		highWater:     park.DefaultHighWater,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = beat.NewClock()
	}

	s.deltaRings = make([]*ring.DeltaRing, domainCount)
	s.assertionRings = make([]*ring.AssertionRing, domainCount)
	for d := 0; d < domainCount; d++ {
		// Capacity was validated above; these cannot fail.
		s.deltaRings[d], _ = ring.NewDeltaRing(ringCapacity)
		s.assertionRings[d], _ = ring.NewAssertionRing(ringCapacity)
	}

	s.fibers = make([]*fiber.Fiber, shardCount)
	for i := range s.fibers {
		s.fibers[i] = fiber.New(uint32(i), s.tickBudget, s.kernel)
	}

	s.park = park.NewManager(
		park.WithIDGenerator(s.idGen),
		park.WithLogger(s.logger),
		park.WithHighWater(s.highWater),
	)

	s.logger.Debug("scheduler created",
		"shards", shardCount,
		"domains", domainCount,
		"ring_capacity", ringCapacity,
		"tick_budget", s.tickBudget)

	return s, nil
}

// EnqueueDelta admits a delta into domainID's ring at slot cycleID & 7.
//
// Returns a *SchedulerError:
//   - INVALID_DOMAIN_COUNT if domainID is out of range (no side effects)
//   - CONVERSION_FAILED if the delta is empty, holds more than 8 triples,
//     or has an empty term
//   - RING_FULL if the slot cannot hold the delta's rows
func (s *Scheduler) EnqueueDelta(domainID int, delta []ir.RawTriple, cycleID uint64) error {
	if domainID < 0 || domainID >= s.domainCount {
		return newError(ErrCodeInvalidDomainCount, domainID, nil,
			"domain %d outside 0..%d", domainID, s.domainCount-1)
	}

	b, err := ir.NewBatch(delta, cycleID)
	if err != nil {
		s.stats.rejected.Add(1)
		return newError(ErrCodeConversionFailed, domainID, err, "convert delta")
	}

	tick := beat.Tick(cycleID)
	if err := s.deltaRings[domainID].Enqueue(tick, b); err != nil {
		s.stats.rejected.Add(1)
		if errors.Is(err, ring.ErrFull) {
			return newError(ErrCodeRingFull, domainID, err, "delta ring full")
		}
		return newError(ErrCodeConversionFailed, domainID, err, "delta rejected")
	}

	s.stats.admitted.Add(1)
	return nil
}

// AdvanceBeat enters the next cycle, executes its tick and commits on the
// pulse. Returns the tick entered and whether it was a pulse. Infallible.
func (s *Scheduler) AdvanceBeat() (uint64, bool) {
	cycle := s.clock.Next()
	s.lastCycle.Store(cycle)

	if s.clock.Saturated() && s.saturationLogged.CompareAndSwap(false, true) {
		s.logger.Error("beat clock saturated; cycles no longer advance",
			"cycle", cycle)
	}

	tick := beat.Tick(cycle)
	s.executeTick(cycle, tick)

	pulse := beat.IsPulse(cycle)
	if pulse {
		s.CommitCycle()
	}
	return tick, pulse
}

// executeTick drains slot tick of every delta ring onto its fiber.
func (s *Scheduler) executeTick(cycle, tick uint64) {
	for domainID, dr := range s.deltaRings {
		batches := dr.Dequeue(tick, ir.MaxRunLen)
		if len(batches) == 0 {
			continue
		}

		f := s.fibers[s.FiberSelect(domainID, tick)]
		for _, b := range batches {
			res := f.ExecuteTick(tick, b, cycle)
			if !res.Completed() {
				s.parkDelta(b.Triples, res.Receipt, res.Cause, cycle, tick, domainID)
				continue
			}

			err := s.assertionRings[domainID].Enqueue(tick, res.Action, res.Receipt)
			if err != nil {
				// Assertion slot saturated: the work ran but cannot be held
				// until commit.
				s.parkDelta(b.Triples, res.Receipt, ir.ParkCauseRingOverflow, cycle, tick, domainID)
				continue
			}
			s.stats.executed.Add(1)
		}
	}
}

func (s *Scheduler) parkDelta(delta []ir.RawTriple, receipt ir.Receipt, cause ir.ParkCause, cycle, tick uint64, domainID int) {
	p := s.park.Park(delta, receipt, cause, cycle, tick, domainID)
	s.logger.Debug("delta parked",
		"id", p.ID,
		"domain", domainID,
		"cycle", cycle,
		"tick", tick,
		"cause", cause.String())
}

// CommitCycle drains every assertion ring into the committed receipt set,
// records provenance through the sink and yields every fiber.
//
// Provenance failures are logged and absorbed. The sink is reset on
// every path.
func (s *Scheduler) CommitCycle() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	cycle := s.lastCycle.Load()

	var receipts []ir.Receipt
	for _, ar := range s.assertionRings {
		for tick := uint64(0); tick < ring.Slots; tick++ {
			for _, a := range ar.Drain(tick) {
				receipts = append(receipts, a.Receipt)
			}
		}
	}

	s.mu.Lock()
	s.cycleReceipts = receipts
	s.mu.Unlock()

	if sink := s.currentSink(); sink != nil && len(receipts) > 0 {
		s.recordProvenance(sink, cycle, receipts)
	}

	for _, f := range s.fibers {
		f.YieldControl()
	}
	s.stats.commits.Add(1)
}

func (s *Scheduler) recordProvenance(sink lockchain.Sink, cycle uint64, receipts []ir.Receipt) {
	defer sink.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), s.commitTimeout)
	defer cancel()

	for _, r := range receipts {
		sink.AddReceipt(r)
	}
	root := sink.ComputeRoot()
	epoch := beat.Epoch(cycle)

	proof, err := sink.AchieveConsensus(ctx, root, epoch)
	if err != nil {
		s.stats.provenanceFailures.Add(1)
		s.logger.Error("quorum consensus failed",
			"epoch", epoch,
			"root", root.String(),
			"receipts", len(receipts),
			"error", err)
		return
	}

	if err := sink.PersistRoot(ctx, epoch, root, proof); err != nil {
		s.stats.provenanceFailures.Add(1)
		s.logger.Error("lockchain persist failed",
			"epoch", epoch,
			"root", root.String(),
			"error", err)
		return
	}

	s.mu.Lock()
	s.lastRoot = ir.ProvenanceRoot{CycleID: epoch, Root: root, Proof: proof}
	s.hasRoot = true
	s.mu.Unlock()

	s.logger.Info("cycle committed",
		"cycle", cycle,
		"epoch", epoch,
		"root", root.String(),
		"receipts", len(receipts),
		"votes", proof.VoteCount())
}

func (s *Scheduler) currentSink() lockchain.Sink {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.sink
}

// ConfigureLockchain installs a Lockchain sink with in-process peers and
// SQLite storage at storagePath. A previously installed sink is closed
// once any commit in progress has finished with it.
func (s *Scheduler) ConfigureLockchain(peers []string, quorumThreshold int, selfPeerID, storagePath string) error {
	if storagePath == "" {
		return newError(ErrCodeLockchainConfig, -1, nil, "storage path is empty")
	}
	lc, err := lockchain.Open(lockchain.Config{
		Peers:           peers,
		QuorumThreshold: quorumThreshold,
		SelfPeerID:      selfPeerID,
		StoragePath:     storagePath,
	}, s.logger)
	if err != nil {
		return newError(ErrCodeLockchainConfig, -1, err, "configure lockchain")
	}

	s.commitMu.Lock()
	s.sinkMu.Lock()
	prev := s.sink
	s.sink = lc
	s.sinkMu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			s.logger.Warn("closing previous provenance sink failed", "error", err)
		}
	}
	s.commitMu.Unlock()

	s.logger.Info("lockchain configured",
		"peers", len(peers),
		"threshold", quorumThreshold,
		"self", selfPeerID,
		"storage", storagePath)
	return nil
}

// CycleReceipts returns the receipts of the last committed cycle.
func (s *Scheduler) CycleReceipts() []ir.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ir.Receipt, len(s.cycleReceipts))
	copy(out, s.cycleReceipts)
	return out
}

// ParkedDeltas drains the park queue.
func (s *Scheduler) ParkedDeltas() []ir.ParkedDelta {
	return s.park.GetParked()
}

// ParkCount returns the number of parked deltas without draining.
func (s *Scheduler) ParkCount() int {
	return s.park.ParkedCount()
}

// CurrentCycle returns the cycle the next beat will enter.
func (s *Scheduler) CurrentCycle() uint64 {
	return s.clock.Current()
}

// CurrentTick returns the tick of CurrentCycle.
func (s *Scheduler) CurrentTick() uint64 {
	return beat.Tick(s.clock.Current())
}

// IsPulse reports whether the next beat is a pulse.
func (s *Scheduler) IsPulse() bool {
	return beat.IsPulse(s.clock.Current())
}

// FiberSelect returns the shard whose fiber runs domainID's deltas at tick.
func (s *Scheduler) FiberSelect(domainID int, tick uint64) int {
	return int((uint64(domainID) + tick) % uint64(s.shardCount))
}

// Fibers returns the fibers for inspection. Callers must not execute on
// them.
func (s *Scheduler) Fibers() []*fiber.Fiber {
	out := make([]*fiber.Fiber, len(s.fibers))
	copy(out, s.fibers)
	return out
}

// LastRoot returns the most recently persisted provenance root.
func (s *Scheduler) LastRoot() (ir.ProvenanceRoot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRoot, s.hasRoot
}

// ShardCount returns the number of shards.
func (s *Scheduler) ShardCount() int { return s.shardCount }

// DomainCount returns the number of domains.
func (s *Scheduler) DomainCount() int { return s.domainCount }

// RingCapacity returns the per-domain ring capacity.
func (s *Scheduler) RingCapacity() int { return s.capacity }

// PendingRows returns the rows waiting in domainID's delta ring at tick.
func (s *Scheduler) PendingRows(domainID int, tick uint64) int {
	if domainID < 0 || domainID >= s.domainCount {
		return 0
	}
	return s.deltaRings[domainID].Len(tick)
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Cycle              uint64 `json:"cycle"`
	Admitted           uint64 `json:"admitted"`
	Rejected           uint64 `json:"rejected"`
	Executed           uint64 `json:"executed"`
	Parked             uint64 `json:"parked"`
	Commits            uint64 `json:"commits"`
	ProvenanceFailures uint64 `json:"provenance_failures"`
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycle:              s.clock.Current(),
		Admitted:           s.stats.admitted.Load(),
		Rejected:           s.stats.rejected.Load(),
		Executed:           s.stats.executed.Load(),
		Parked:             s.park.TotalParked(),
		Commits:            s.stats.commits.Load(),
		ProvenanceFailures: s.stats.provenanceFailures.Load(),
	}
}

// Close closes the provenance sink.
func (s *Scheduler) Close() error {
	s.sinkMu.Lock()
	sink := s.sink
	s.sink = nil
	s.sinkMu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}
