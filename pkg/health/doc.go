// Package health monitors the liveness of backend callback channels.
//
// The backend accepts liveness probes (pings) and is expected to answer
// each one with a pong carrying the same opaque token. Two silent failure
// modes matter: the backend accepting pings but never answering (pending
// mismatches), and the backend answering pings it was never sent (unknown
// mismatches, typically after a backend restart dropped our registration).
//
// PingPongTracker reconciles tokens across both directions, keeps each side
// in a size- and age-bounded set, and runs a hysteresis state machine per
// side: crossing the allowed delta publishes one error-severity
// SystemStatusChanged event (and optionally records an incident snapshot);
// dropping back publishes exactly one recovery event. Below the threshold,
// events are throttled to even counts so a growing mismatch stays visible
// without flooding the bus.
//
// The tracker only observes, classifies and reports. Deciding when to
// reconnect or restart clients is left to the components subscribed to its
// events.
//
//	tracker, err := health.NewPingPongTracker(health.Config{InterfaceID: "BidCos-RF"}, bus,
//	    health.WithScheduler(runner),
//	    health.WithConnectionState(connMgr),
//	    health.WithIncidentRecorder(store),
//	)
//
//	// From the RPC client:
//	token := health.NewToken("BidCos-RF")
//	tracker.HandleSendPing(token)   // before dispatching the ping
//	// ... later, when a pong-shaped event arrives:
//	tracker.HandleReceivedPong(token)
package health
