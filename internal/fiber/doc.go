// Package fiber implements the per-shard cooperative execution unit.
//
// A Fiber runs one batch per call through its Kernel and reports the
// outcome itself. Budget enforcement is cooperative: the fiber compares the
// kernel's reported cost against its tick budget and parks the batch when
// the budget would be exceeded. Nothing preempts a fiber; a kernel that
// never returns stalls its shard.
package fiber
