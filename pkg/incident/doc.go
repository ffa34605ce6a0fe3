// Package incident records snapshots of severe connection-health conditions.
//
// A snapshot is captured when the ping/pong tracker crosses a mismatch
// threshold and carries the current counts plus an excerpt of the tracker's
// diagnostic journal, so a condition can be analyzed after the fact without
// the live process.
//
// Two Recorder implementations are provided: MemoryRecorder (bounded
// in-memory list) and Store (SQLite-backed, survives restarts). Both are
// data sinks only - remediation is up to the components observing the
// corresponding status events on the bus.
package incident
