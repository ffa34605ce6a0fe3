// Package journal provides the bounded ping/pong diagnostic journal.
//
// A Journal is a capped FIFO log of liveness-probe occurrences (ping sent,
// pong received, pong unknown, pong expired) owned by one connection-health
// tracker. It answers the troubleshooting questions that otherwise require
// reparsing operational logs: recent activity, round-trip-time statistics,
// and the ping success rate.
//
// Journals can be exported to CBOR files (one record per CBOR item, integer
// keys) and read back with Reader, optionally filtered by type, token or
// time range. The ccu-journal CLI builds on this format.
//
//	j := journal.New(1000)
//	j.RecordPingSent("BidCos-RF#42")
//	j.RecordPongReceived("BidCos-RF#42", 18*time.Millisecond)
//
//	diag := j.GetDiagnostics()
//	fmt.Printf("success %.0f%%, mean rtt %s\n", diag.SuccessRate*100, diag.RTT.Mean)
package journal
