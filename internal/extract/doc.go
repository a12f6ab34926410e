// Package extract resolves telemetry readings from arbitrary JSON payloads.
//
// This package is internal to PulseMeter. Devices behind the polled endpoint
// are third-party, so their response schema is not controlled here.
// Extraction is therefore permissive: a payload is decoded into a [Value]
// tagged union that keeps object members in document order, and the reading
// is resolved by probing well-known keys before falling back to the first
// numeric member.
//
// The main entry points are:
//
//   - [Decode]: bytes to [Value]; never fails
//   - [NumericValue]: the telemetry value, if any
//   - [Timestamp]: the reading time, defaulting to "now"
//   - [Path]: dot-notation lookup used by custom extractors
package extract
