package park

import (
	"log/slog"
	"sync"

	"github.com/roach88/cadence/internal/ir"
)

// DefaultHighWater is the queue length that triggers a backlog warning.
const DefaultHighWater = 1024

// Manager is a thread-safe, unbounded FIFO of parked deltas.
//
// The driving goroutine parks while a warm-path consumer may drain
// concurrently.
type Manager struct {
	mu        sync.Mutex
	items     []ir.ParkedDelta
	ids       IDGenerator
	logger    *slog.Logger
	highWater int
	warned    bool
	total     uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator overrides the UUIDv7 default.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// WithLogger sets the logger used for backlog warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithHighWater sets the soft bound. Zero or negative disables warnings.
func WithHighWater(n int) Option {
	return func(m *Manager) {
		m.highWater = n
	}
}

// NewManager creates an empty park queue.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		items:     make([]ir.ParkedDelta, 0, 64),
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		highWater: DefaultHighWater,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Park defers a delta. It always succeeds.
func (m *Manager) Park(delta []ir.RawTriple, receipt ir.Receipt, cause ir.ParkCause, cycleID, tick uint64, domainID int) ir.ParkedDelta {
	p := ir.ParkedDelta{
		ID:       m.ids.Generate(),
		Delta:    delta,
		Receipt:  receipt,
		Cause:    cause,
		CycleID:  cycleID,
		Tick:     tick,
		DomainID: domainID,
	}

	m.mu.Lock()
	m.items = append(m.items, p)
	m.total++
	n := len(m.items)
	crossed := m.highWater > 0 && n >= m.highWater && !m.warned
	if crossed {
		m.warned = true
	}
	m.mu.Unlock()

	if crossed {
		m.logger.Warn("park backlog crossed high-water mark",
			"parked", n,
			"high_water", m.highWater,
			"cycle", cycleID,
		)
	}
	return p
}

// GetParked drains the queue, returning items in park order.
func (m *Manager) GetParked() []ir.ParkedDelta {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.items
	// Fresh backing array so the drained slice is never overwritten.
	m.items = make([]ir.ParkedDelta, 0, 64)
	m.warned = false
	return out
}

// ParkedCount returns the queue length without draining.
func (m *Manager) ParkedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// TotalParked returns the number of items parked since creation.
func (m *Manager) TotalParked() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}
