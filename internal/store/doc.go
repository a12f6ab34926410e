// Package store provides bounded in-memory telemetry state and pub/sub.
//
// This package is internal to PulseMeter and holds everything the poll
// controller produces: the rolling sample window, the log history and the
// session statistics. Presentation code only ever reads snapshots.
//
// The main components are:
//
//   - [Ring]: fixed-capacity, index-based FIFO with oldest-first eviction
//   - [Store]: interface for recording poll outcomes and reading snapshots
//   - [MemoryStore]: the in-memory implementation with pub/sub
//   - [Sample], [LogEntry], [Stats], [Reading]: immutable snapshot values
//
// The store is safe for concurrent access. Subscribers receive [Event]
// values via buffered channels with non-blocking sends (slow subscribers
// miss events rather than block the poll controller).
package store
