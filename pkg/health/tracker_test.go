package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/incident"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

// statusCapture records SystemStatusChanged events published on a bus.
type statusCapture struct {
	mu     sync.Mutex
	events []event.SystemStatusChanged
}

func captureStatus(bus *event.Bus) *statusCapture {
	c := &statusCapture{}
	bus.Subscribe(event.TypeSystemStatusChanged, event.KeyAll, func(_ context.Context, ev event.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev.(event.SystemStatusChanged))
		return nil
	})
	return c
}

// issues returns all captured integration issues in publication order.
func (c *statusCapture) issues() []event.IntegrationIssue {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.IntegrationIssue
	for _, ev := range c.events {
		out = append(out, ev.Issues...)
	}
	return out
}

// manualScheduler collects tasks for explicit, synchronous execution.
type manualScheduler struct {
	mu    sync.Mutex
	names []string
	tasks []func(ctx context.Context)
}

func (s *manualScheduler) CreateTask(name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.tasks = append(s.tasks, fn)
}

// runAll executes every collected task, including tasks collected while
// running (a retry may emit a status publication task).
func (s *manualScheduler) runAll() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.names = s.names[1:]
		s.mu.Unlock()
		fn(context.Background())
	}
}

func (s *manualScheduler) countByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, name := range s.names {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n
}

// fixedConnState reports the same issue flag for every interface.
type fixedConnState struct{ issue bool }

func (f fixedConnState) HasRPCProxyIssue(string) bool { return f.issue }

func newTestTracker(t *testing.T, cfg Config, opts ...Option) (*PingPongTracker, *statusCapture) {
	t.Helper()
	if cfg.InterfaceID == "" {
		cfg.InterfaceID = "BidCos-RF"
	}
	bus := event.NewBus()
	capture := captureStatus(bus)
	tracker, err := NewPingPongTracker(cfg, bus, opts...)
	if err != nil {
		t.Fatalf("NewPingPongTracker failed: %v", err)
	}
	return tracker, capture
}

func TestThresholdHysteresis(t *testing.T) {
	tracker, capture := newTestTracker(t, Config{AllowedDelta: 3})

	// Rise to 6 pending pings. Crossing 3 -> 4 enters the high state.
	for i := 0; i < 6; i++ {
		tracker.HandleSendPing(fmt.Sprintf("BidCos-RF#%d", i))
	}

	var errors, resets []event.IntegrationIssue
	for _, issue := range capture.issues() {
		switch {
		case issue.Severity == event.SeverityError:
			errors = append(errors, issue)
		case issue.MismatchCount == 0:
			resets = append(resets, issue)
		}
	}
	if len(errors) != 1 {
		t.Fatalf("ERROR events during rise = %d, want 1", len(errors))
	}
	if errors[0].MismatchCount != 4 {
		t.Errorf("ERROR MismatchCount = %d, want 4", errors[0].MismatchCount)
	}
	if errors[0].MismatchType != event.MismatchPending {
		t.Errorf("ERROR MismatchType = %s, want PENDING", errors[0].MismatchType)
	}
	if len(resets) != 0 {
		t.Errorf("reset events during rise = %d, want 0", len(resets))
	}

	// Matching down to 4 keeps the tracker in high state: no further events.
	before := len(capture.issues())
	tracker.HandleReceivedPong("BidCos-RF#0")
	tracker.HandleReceivedPong("BidCos-RF#1")
	if got := len(capture.issues()); got != before {
		t.Errorf("events while still above delta = %d, want 0", got-before)
	}

	// Dropping to 3 publishes exactly one recovery event with count zero.
	tracker.HandleReceivedPong("BidCos-RF#2")
	resets = nil
	for _, issue := range capture.issues() {
		if issue.MismatchCount == 0 {
			resets = append(resets, issue)
		}
	}
	if len(resets) != 1 {
		t.Fatalf("recovery events = %d, want 1", len(resets))
	}
	if resets[0].Severity != event.SeverityWarning {
		t.Errorf("recovery Severity = %s, want WARNING", resets[0].Severity)
	}

	// Further matches in the low state produce no more recovery events.
	tracker.HandleReceivedPong("BidCos-RF#3")
	resets = nil
	for _, issue := range capture.issues() {
		if issue.MismatchCount == 0 {
			resets = append(resets, issue)
		}
	}
	if len(resets) != 1 {
		t.Errorf("recovery events after further matches = %d, want 1", len(resets))
	}
}

func TestLowStateThrottling(t *testing.T) {
	tracker, capture := newTestTracker(t, Config{AllowedDelta: 10})

	for i := 0; i < 5; i++ {
		tracker.HandleSendPing(fmt.Sprintf("BidCos-RF#%d", i))
	}

	var counts []int
	for _, issue := range capture.issues() {
		counts = append(counts, issue.MismatchCount)
	}
	if len(counts) != 2 || counts[0] != 2 || counts[1] != 4 {
		t.Errorf("published counts = %v, want [2 4]", counts)
	}
	for _, issue := range capture.issues() {
		if issue.Severity != event.SeverityWarning {
			t.Errorf("low-state Severity = %s, want WARNING", issue.Severity)
		}
	}
}

func TestCapacityEviction(t *testing.T) {
	const maxSize = 30
	tracker, _ := newTestTracker(t, Config{AllowedDelta: 1000, CacheMaxSize: maxSize})

	for i := 0; i < maxSize+20; i++ {
		tracker.HandleSendPing(fmt.Sprintf("BidCos-RF#%d", i))
	}

	if got := tracker.PendingCount(); got != maxSize {
		t.Fatalf("PendingCount = %d, want %d", got, maxSize)
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	for i := 0; i < 20; i++ {
		if tracker.pending.contains(fmt.Sprintf("BidCos-RF#%d", i)) {
			t.Errorf("oldest token BidCos-RF#%d still present, want evicted", i)
		}
	}
	for i := 20; i < maxSize+20; i++ {
		if !tracker.pending.contains(fmt.Sprintf("BidCos-RF#%d", i)) {
			t.Errorf("newest token BidCos-RF#%d absent, want present", i)
		}
	}
}

func TestPongBeforeSendReturnsRace(t *testing.T) {
	tracker, _ := newTestTracker(t, Config{})

	token := NewToken("BidCos-RF")
	tracker.HandleSendPing(token)
	tracker.HandleReceivedPong(token)

	if got := tracker.PendingCount(); got != 0 {
		t.Errorf("PendingCount = %d, want 0", got)
	}
	if got := tracker.UnknownCount(); got != 0 {
		t.Errorf("UnknownCount = %d, want 0", got)
	}

	records := tracker.Journal().Recent(0)
	if len(records) != 2 || records[1].Type != journal.RecordPongReceived {
		t.Errorf("journal = %+v, want [PING_SENT PONG_RECEIVED]", records)
	}
	if records[1].RTT == nil {
		t.Error("matched pong has no RTT")
	}
}

func TestTTLExpiry(t *testing.T) {
	tracker, capture := newTestTracker(t, Config{AllowedDelta: 1, TTL: time.Minute})

	tracker.HandleSendPing("BidCos-RF#0")
	tracker.HandleSendPing("BidCos-RF#1")

	// Two pending with delta 1: the tracker is in high state now.
	if got := tracker.PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}

	// Age both tokens beyond the TTL.
	tracker.mu.Lock()
	for token := range tracker.pending.seen {
		tracker.pending.seen[token] = time.Now().Add(-2 * time.Minute)
	}
	tracker.mu.Unlock()

	tracker.Cleanup()

	if got := tracker.PendingCount(); got != 0 {
		t.Errorf("PendingCount after cleanup = %d, want 0", got)
	}

	expired := 0
	for _, r := range tracker.Journal().Recent(0) {
		if r.Type == journal.RecordPongExpired {
			expired++
		}
	}
	if expired != 2 {
		t.Errorf("PONG_EXPIRED records = %d, want 2", expired)
	}

	resets := 0
	for _, issue := range capture.issues() {
		if issue.MismatchCount == 0 {
			resets++
		}
	}
	if resets != 1 {
		t.Errorf("recovery events after expiry = %d, want 1", resets)
	}
}

func TestConnectionIssueSuppression(t *testing.T) {
	tracker, capture := newTestTracker(t, Config{},
		WithConnectionState(fixedConnState{issue: true}))

	for i := 0; i < 25; i++ {
		tracker.HandleSendPing(NewToken("BidCos-RF"))
	}

	if got := tracker.PendingCount(); got != 0 {
		t.Errorf("PendingCount = %d, want 0", got)
	}
	if got := len(capture.issues()); got != 0 {
		t.Errorf("events = %d, want 0", got)
	}
	if got := tracker.Journal().Len(); got != 0 {
		t.Errorf("journal records = %d, want 0", got)
	}
}

func TestUnknownPongTracked(t *testing.T) {
	tracker, _ := newTestTracker(t, Config{})

	tracker.HandleReceivedPong("BidCos-RF#stray")

	if got := tracker.UnknownCount(); got != 1 {
		t.Errorf("UnknownCount = %d, want 1", got)
	}
	records := tracker.Journal().Recent(0)
	if len(records) != 1 || records[0].Type != journal.RecordPongUnknown {
		t.Errorf("journal = %+v, want [PONG_UNKNOWN]", records)
	}
}

func TestUnknownPongRetryReconciles(t *testing.T) {
	sched := &manualScheduler{}
	tracker, _ := newTestTracker(t, Config{RetryDelay: time.Millisecond},
		WithScheduler(sched))

	token := "BidCos-RF#late"
	tracker.HandleReceivedPong(token)
	if got := tracker.UnknownCount(); got != 1 {
		t.Fatalf("UnknownCount = %d, want 1", got)
	}

	// The matching ping registers late, after the pong was seen.
	tracker.HandleSendPing(token)

	sched.runAll()

	if got := tracker.UnknownCount(); got != 0 {
		t.Errorf("UnknownCount after retry = %d, want 0", got)
	}
	if got := tracker.PendingCount(); got != 0 {
		t.Errorf("PendingCount after retry = %d, want 0", got)
	}

	matched := false
	for _, r := range tracker.Journal().Recent(0) {
		if r.Type == journal.RecordPongReceived && r.Token == token {
			matched = true
		}
	}
	if !matched {
		t.Error("reconciled token not journaled as matched")
	}
}

func TestUnknownPongRetryCoalesced(t *testing.T) {
	sched := &manualScheduler{}
	tracker, _ := newTestTracker(t, Config{RetryDelay: time.Millisecond},
		WithScheduler(sched))

	tracker.HandleReceivedPong("BidCos-RF#dup")
	tracker.HandleReceivedPong("BidCos-RF#dup")
	tracker.HandleReceivedPong("BidCos-RF#dup")

	if got := sched.countByPrefix("unknown pong retry"); got != 1 {
		t.Errorf("scheduled retries = %d, want 1", got)
	}
}

func TestUnknownPongRetryNoOpWithoutMatch(t *testing.T) {
	sched := &manualScheduler{}
	tracker, _ := newTestTracker(t, Config{RetryDelay: time.Millisecond},
		WithScheduler(sched))

	tracker.HandleReceivedPong("BidCos-RF#orphan")
	sched.runAll()

	// No late ping appeared: the token stays for ordinary TTL expiry.
	if got := tracker.UnknownCount(); got != 1 {
		t.Errorf("UnknownCount after no-op retry = %d, want 1", got)
	}
}

func TestNoSchedulerSkipsRetry(t *testing.T) {
	tracker, _ := newTestTracker(t, Config{})

	tracker.HandleReceivedPong("BidCos-RF#stray")

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.retries) != 0 {
		t.Errorf("retries tracked without scheduler = %d, want 0", len(tracker.retries))
	}
}

func TestIncidentRecordedOnHighState(t *testing.T) {
	rec := incident.NewMemoryRecorder(10)
	tracker, _ := newTestTracker(t, Config{AllowedDelta: 1},
		WithIncidentRecorder(rec))

	tracker.HandleReceivedPong("BidCos-RF#a")
	tracker.HandleReceivedPong("BidCos-RF#b")

	snaps := rec.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("incidents recorded = %d, want 1", len(snaps))
	}
	snap := snaps[0]
	if snap.Type != incident.TypePingPongUnknownHigh {
		t.Errorf("incident Type = %s, want PING_PONG_UNKNOWN_HIGH", snap.Type)
	}
	if snap.Context["mismatch_count"] != 2 {
		t.Errorf("Context[mismatch_count] = %v, want 2", snap.Context["mismatch_count"])
	}
	if len(snap.JournalExcerpt) == 0 {
		t.Error("incident has no journal excerpt")
	}

	// Pending crossing records its own incident type.
	tracker.HandleSendPing("BidCos-RF#0")
	tracker.HandleSendPing("BidCos-RF#1")
	snaps = rec.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("incidents recorded = %d, want 2", len(snaps))
	}
	if snaps[1].Type != incident.TypePingPongMismatchHigh {
		t.Errorf("incident Type = %s, want PING_PONG_MISMATCH_HIGH", snaps[1].Type)
	}
}

func TestClearResetsEverything(t *testing.T) {
	tracker, capture := newTestTracker(t, Config{AllowedDelta: 1})

	tracker.HandleSendPing("BidCos-RF#0")
	tracker.HandleSendPing("BidCos-RF#1")
	tracker.HandleReceivedPong("BidCos-RF#stray")

	tracker.Clear()

	if got := tracker.PendingCount(); got != 0 {
		t.Errorf("PendingCount after Clear = %d, want 0", got)
	}
	if got := tracker.UnknownCount(); got != 0 {
		t.Errorf("UnknownCount after Clear = %d, want 0", got)
	}
	if got := tracker.Journal().Len(); got != 0 {
		t.Errorf("journal records after Clear = %d, want 0", got)
	}

	tracker.mu.Lock()
	if tracker.pending.logged || tracker.unknown.logged {
		t.Error("hysteresis flags not reset by Clear")
	}
	tracker.mu.Unlock()

	// Clear itself emits nothing; the next rise starts fresh.
	before := len(capture.issues())
	tracker.HandleSendPing("BidCos-RF#fresh")
	if got := len(capture.issues()); got != before {
		t.Errorf("events after Clear and one ping = %d, want 0", got-before)
	}
}

func TestConfigValidation(t *testing.T) {
	bus := event.NewBus()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative ttl", Config{InterfaceID: "BidCos-RF", TTL: -time.Second}},
		{"negative delta", Config{InterfaceID: "BidCos-RF", AllowedDelta: -1}},
		{"negative cache size", Config{InterfaceID: "BidCos-RF", CacheMaxSize: -5}},
		{"negative retry delay", Config{InterfaceID: "BidCos-RF", RetryDelay: -time.Minute}},
		{"missing interface id", Config{}},
	}
	for _, c := range cases {
		if _, err := NewPingPongTracker(c.cfg, bus); err == nil {
			t.Errorf("%s: NewPingPongTracker accepted invalid config", c.name)
		}
	}

	if _, err := NewPingPongTracker(Config{InterfaceID: "BidCos-RF"}, nil); err != ErrNilBus {
		t.Errorf("nil bus: err = %v, want ErrNilBus", err)
	}

	tracker, err := NewPingPongTracker(Config{InterfaceID: "BidCos-RF"}, bus)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if tracker.cfg.AllowedDelta != DefaultAllowedDelta {
		t.Errorf("AllowedDelta default = %d, want %d", tracker.cfg.AllowedDelta, DefaultAllowedDelta)
	}
	if tracker.cfg.TTL != DefaultTTL {
		t.Errorf("TTL default = %s, want %s", tracker.cfg.TTL, DefaultTTL)
	}
}

func TestNewToken(t *testing.T) {
	token := NewToken("HmIP-RF")
	if !strings.HasPrefix(token, "HmIP-RF#") {
		t.Errorf("token = %q, want HmIP-RF# prefix", token)
	}
	if TokenInterfaceID(token) != "HmIP-RF" {
		t.Errorf("TokenInterfaceID = %q, want HmIP-RF", TokenInterfaceID(token))
	}
	if TokenInterfaceID("bare") != "bare" {
		t.Errorf("TokenInterfaceID(bare) = %q, want bare", TokenInterfaceID("bare"))
	}
	if NewToken("HmIP-RF") == token {
		t.Error("two tokens for the same interface are identical")
	}
}
