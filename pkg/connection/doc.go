// Package connection tracks the connection state of every backend interface.
//
// This package handles:
//   - Per-interface connection state tracking (a CCU exposes several
//     interfaces - RF, wired, IP - that fail independently)
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Automatic reconnection on connection loss
//
// The Monitor also answers the connection-health tracker's
// HasRPCProxyIssue query: while an interface is anything other than
// connected, ping tracking for it is suppressed so a known outage is not
// double-reported as a ping/pong mismatch.
//
// # Reconnection Strategy
//
// When a connection is lost, the monitor uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
// To prevent thundering herd when multiple clients reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// State transitions are published as ConnectionStateChanged events keyed by
// interface id, so any component can observe one interface or all of them.
package connection
