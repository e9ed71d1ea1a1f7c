package scheduler

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/roach88/cadence/internal/ir"
)

// ParkedHandler receives parked deltas drained after a pulse.
// It runs on the driving goroutine and must return promptly.
type ParkedHandler func(parked []ir.ParkedDelta)

// PulseHandler is called after each commit with the committed receipts.
type PulseHandler func(cycle uint64, receipts []ir.Receipt)

// Driver runs AdvanceBeat in a paced loop.
//
// CRITICAL: Driver.Run must be the only goroutine advancing its scheduler.
type Driver struct {
	sched    *Scheduler
	limiter  *rate.Limiter
	onParked ParkedHandler
	onPulse  PulseHandler
	maxBeats uint64
	logger   *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithBeatRate paces the loop at beatsPerSecond. Zero or negative runs
// unpaced.
func WithBeatRate(beatsPerSecond float64) DriverOption {
	return func(d *Driver) {
		if beatsPerSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(beatsPerSecond), 1)
	}
}

// WithParkedHandler drains the park queue after every pulse.
func WithParkedHandler(h ParkedHandler) DriverOption {
	return func(d *Driver) {
		d.onParked = h
	}
}

// WithPulseHandler observes each commit.
func WithPulseHandler(h PulseHandler) DriverOption {
	return func(d *Driver) {
		d.onPulse = h
	}
}

// WithMaxBeats stops Run after n beats. Zero means unbounded.
func WithMaxBeats(n uint64) DriverOption {
	return func(d *Driver) {
		d.maxBeats = n
	}
}

// WithDriverLogger sets the logger. Default: the scheduler's logger.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver creates an unpaced driver for s.
func NewDriver(s *Scheduler, opts ...DriverOption) *Driver {
	d := &Driver{
		sched:   s,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  s.logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run advances beats until ctx is done or the beat limit is reached.
// Returns ctx.Err() on cancellation and nil when the limit is reached.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("driver starting",
		"cycle", d.sched.CurrentCycle(),
		"max_beats", d.maxBeats)

	var beats uint64
	for d.maxBeats == 0 || beats < d.maxBeats {
		if err := d.limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next beat would land past the
			// deadline; no beat can run before then either.
			<-ctx.Done()
			d.logger.Info("driver stopping: context cancelled", "beats", beats)
			return ctx.Err()
		}

		_, pulse := d.sched.AdvanceBeat()
		beats++
		if !pulse {
			continue
		}

		if d.onPulse != nil {
			d.onPulse(d.sched.lastCycle.Load(), d.sched.CycleReceipts())
		}
		if d.onParked != nil && d.sched.ParkCount() > 0 {
			d.onParked(d.sched.ParkedDeltas())
		}
	}

	d.logger.Info("driver stopping: beat limit reached", "beats", beats)
	return nil
}
