// Package beat implements the 8-beat cadence clock.
//
// A cycle is a monotonically increasing uint64 owned by exactly one Clock.
// Every cycle maps to a tick in [0,7] and every eighth cycle (tick 0) is a
// pulse, the commit boundary for the scheduler.
//
// Tick and pulse are derived with bit arithmetic only. Neither function
// contains a conditional, which keeps them inside the hot-path budget of
// eight steps.
package beat
