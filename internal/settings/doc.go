// Package settings holds the monitoring configuration for a PulseMeter
// instance.
//
// A [Store] owns the current [Snapshot] and notifies subscribers
// synchronously after every change. Snapshots are values: subscribers
// receive a copy and compare it with the previous one to decide what changed.
package settings
