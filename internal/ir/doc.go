// Package ir provides the data model shared by every cadence package.
//
// This package contains type definitions, conversions and content
// hashing only. All other internal packages import ir; ir imports nothing
// internal. This keeps the model the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Cycles are logical (uint64 beat counter), never wall-clock time
//   - Receipts are immutable values once produced
//   - Ring storage is columnar: triples become parallel S/P/O term-ID slices
//   - All JSON tags use snake_case
package ir
