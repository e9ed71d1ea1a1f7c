// Package park implements the overflow queue for deferred deltas.
//
// Parking is the designated "never drop" escape valve. Park always
// succeeds: storage is unbounded, and a soft high-water mark only triggers
// a warning log. Items are drained by an external warm-path consumer.
package park
