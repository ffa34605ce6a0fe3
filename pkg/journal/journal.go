package journal

import (
	"sync"
	"time"
)

// DefaultMaxRecords is the default journal capacity.
const DefaultMaxRecords = 1000

// RecordType classifies a journal record.
type RecordType uint8

const (
	// RecordPingSent indicates a ping was handed to the transport.
	RecordPingSent RecordType = 0
	// RecordPongReceived indicates a pong matched a pending ping.
	RecordPongReceived RecordType = 1
	// RecordPongUnknown indicates a pong arrived with no matching ping.
	RecordPongUnknown RecordType = 2
	// RecordPongExpired indicates a pending ping aged out unanswered.
	RecordPongExpired RecordType = 3
)

// String returns the record type name.
func (r RecordType) String() string {
	switch r {
	case RecordPingSent:
		return "PING_SENT"
	case RecordPongReceived:
		return "PONG_RECEIVED"
	case RecordPongUnknown:
		return "PONG_UNKNOWN"
	case RecordPongExpired:
		return "PONG_EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Record is one ping/pong occurrence.
// CBOR encoding uses integer keys for compactness.
type Record struct {
	// Type classifies the occurrence.
	Type RecordType `cbor:"1,keyasint"`

	// Token is the opaque correlation token.
	Token string `cbor:"2,keyasint"`

	// Timestamp when the occurrence was recorded (nanosecond precision).
	Timestamp time.Time `cbor:"3,keyasint"`

	// RTT is the ping round-trip time. Set only on RecordPongReceived.
	RTT *time.Duration `cbor:"4,keyasint,omitempty"`
}

// RTTStats summarizes round-trip times of matched pongs.
type RTTStats struct {
	// Count is the number of matched pongs with an RTT.
	Count int

	// Min, Max and Mean are in effect only when Count > 0.
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// Diagnostics is a point-in-time summary of the journal contents.
type Diagnostics struct {
	// TotalRecords is the number of records currently retained.
	TotalRecords int

	// CountByType maps record types to their retained counts.
	CountByType map[RecordType]int

	// Oldest and Newest bound the retained time range (zero when empty).
	Oldest time.Time
	Newest time.Time

	// RTT summarizes matched pong round-trip times.
	RTT RTTStats

	// SuccessRate is the fraction of sent pings that were matched, in [0, 1].
	// It is 1 when no pings were retained.
	SuccessRate float64
}

// Journal is a capped, append-only diagnostic log of ping/pong occurrences.
// Records are strictly FIFO ordered; when the cap is reached the oldest
// record is dropped. A Journal is owned by exactly one tracker, but reads
// may come from other goroutines (diagnostics, incident excerpts), so all
// access is guarded internally.
type Journal struct {
	mu      sync.Mutex
	records []Record
	max     int
}

// New creates a journal retaining at most maxRecords entries.
// Non-positive values fall back to DefaultMaxRecords.
func New(maxRecords int) *Journal {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Journal{max: maxRecords}
}

// RecordPingSent appends a PING_SENT record for token.
func (j *Journal) RecordPingSent(token string) {
	j.append(Record{Type: RecordPingSent, Token: token, Timestamp: time.Now()})
}

// RecordPongReceived appends a PONG_RECEIVED record for token with the
// measured round-trip time.
func (j *Journal) RecordPongReceived(token string, rtt time.Duration) {
	j.append(Record{Type: RecordPongReceived, Token: token, Timestamp: time.Now(), RTT: &rtt})
}

// RecordPongUnknown appends a PONG_UNKNOWN record for token.
func (j *Journal) RecordPongUnknown(token string) {
	j.append(Record{Type: RecordPongUnknown, Token: token, Timestamp: time.Now()})
}

// RecordPongExpired appends a PONG_EXPIRED record for token.
func (j *Journal) RecordPongExpired(token string) {
	j.append(Record{Type: RecordPongExpired, Token: token, Timestamp: time.Now()})
}

// append adds a record, dropping the oldest when at capacity.
func (j *Journal) append(r Record) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.records) >= j.max {
		drop := len(j.records) - j.max + 1
		j.records = j.records[drop:]
	}
	j.records = append(j.records, r)
}

// Len returns the number of retained records.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Recent returns a copy of the newest n records in FIFO order.
// n <= 0 returns all retained records.
func (j *Journal) Recent(n int) []Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n <= 0 || n > len(j.records) {
		n = len(j.records)
	}
	out := make([]Record, n)
	copy(out, j.records[len(j.records)-n:])
	return out
}

// RTTStatistics computes round-trip statistics over retained matched pongs.
func (j *Journal) RTTStatistics() RTTStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return rttStats(j.records)
}

func rttStats(records []Record) RTTStats {
	var stats RTTStats
	var total time.Duration
	for _, r := range records {
		if r.Type != RecordPongReceived || r.RTT == nil {
			continue
		}
		rtt := *r.RTT
		if stats.Count == 0 || rtt < stats.Min {
			stats.Min = rtt
		}
		if rtt > stats.Max {
			stats.Max = rtt
		}
		total += rtt
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Mean = total / time.Duration(stats.Count)
	}
	return stats
}

// SuccessRate returns the fraction of retained sent pings that were matched
// by a pong. It returns 1 when no pings are retained.
func (j *Journal) SuccessRate() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return successRate(j.records)
}

func successRate(records []Record) float64 {
	sent, received := 0, 0
	for _, r := range records {
		switch r.Type {
		case RecordPingSent:
			sent++
		case RecordPongReceived:
			received++
		}
	}
	if sent == 0 {
		return 1
	}
	rate := float64(received) / float64(sent)
	if rate > 1 {
		// More matches than sends retained; the sends were capped away.
		rate = 1
	}
	return rate
}

// GetDiagnostics returns a full summary of the retained records.
func (j *Journal) GetDiagnostics() Diagnostics {
	j.mu.Lock()
	defer j.mu.Unlock()

	diag := Diagnostics{
		TotalRecords: len(j.records),
		CountByType:  make(map[RecordType]int),
		RTT:          rttStats(j.records),
		SuccessRate:  successRate(j.records),
	}
	for _, r := range j.records {
		diag.CountByType[r.Type]++
	}
	if len(j.records) > 0 {
		diag.Oldest = j.records[0].Timestamp
		diag.Newest = j.records[len(j.records)-1].Timestamp
	}
	return diag
}

// Clear removes all retained records.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = nil
}
