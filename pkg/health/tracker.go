package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/incident"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

// Tracker defaults.
const (
	// DefaultAllowedDelta is the default tolerated mismatch count per side.
	DefaultAllowedDelta = 15

	// DefaultTTL is the default lifetime of an untouched token.
	DefaultTTL = 5 * time.Minute

	// DefaultCacheMaxSize is the default hard cap on tokens tracked per side.
	DefaultCacheMaxSize = 500

	// DefaultRetryDelay is the default grace period before an unknown pong
	// is re-checked against late-arriving pings.
	DefaultRetryDelay = 15 * time.Second
)

// Tracker configuration errors.
var (
	ErrNilBus              = errors.New("event bus is required")
	ErrMissingInterfaceID  = errors.New("interface id is required")
	ErrInvalidAllowedDelta = errors.New("allowed delta must be positive")
	ErrInvalidTTL          = errors.New("ttl must be positive")
	ErrInvalidCacheMaxSize = errors.New("cache max size must be positive")
	ErrInvalidRetryDelay   = errors.New("retry delay must be positive")
)

// Config holds the tunable parameters of a PingPongTracker.
// Zero values fall back to defaults; negative values are rejected.
type Config struct {
	// InterfaceID identifies the monitored backend interface. Required.
	InterfaceID string

	// AllowedDelta is the mismatch count above which the tracker enters the
	// high state and reports an error-severity issue.
	AllowedDelta int

	// TTL is how long an untouched token stays tracked before it is purged.
	TTL time.Duration

	// CacheMaxSize caps the tokens tracked per side; oldest evicted first.
	CacheMaxSize int

	// RetryDelay is the grace period before an unknown pong is re-checked
	// for a late matching ping. Distinct from TTL.
	RetryDelay time.Duration

	// JournalSize caps the diagnostic journal.
	JournalSize int

	// UnknownSeverity is the severity reported when the unknown-pong count
	// crosses the threshold. The zero value is SeverityError.
	UnknownSeverity event.Severity
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.AllowedDelta == 0 {
		c.AllowedDelta = DefaultAllowedDelta
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.CacheMaxSize == 0 {
		c.CacheMaxSize = DefaultCacheMaxSize
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.JournalSize == 0 {
		c.JournalSize = journal.DefaultMaxRecords
	}
}

// validate rejects invalid configuration values.
func (c Config) validate() error {
	if c.InterfaceID == "" {
		return ErrMissingInterfaceID
	}
	if c.AllowedDelta < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAllowedDelta, c.AllowedDelta)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, c.TTL)
	}
	if c.CacheMaxSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheMaxSize, c.CacheMaxSize)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRetryDelay, c.RetryDelay)
	}
	if c.JournalSize < 0 {
		return fmt.Errorf("journal size must be positive: %d", c.JournalSize)
	}
	return nil
}

// Option customizes a PingPongTracker.
type Option func(*PingPongTracker)

// WithScheduler sets the task scheduler used for the delayed unknown-pong
// retry and asynchronous event publication.
func WithScheduler(s TaskScheduler) Option {
	return func(t *PingPongTracker) { t.scheduler = s }
}

// WithConnectionState sets the collaborator consulted to suppress tracking
// during known outages.
func WithConnectionState(cs ConnectionState) Option {
	return func(t *PingPongTracker) { t.connState = cs }
}

// WithIncidentRecorder sets the recorder asked to persist snapshots on
// threshold crossings into the high state.
func WithIncidentRecorder(r incident.Recorder) Option {
	return func(t *PingPongTracker) { t.recorder = r }
}

// WithLogger sets the operational logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(t *PingPongTracker) { t.logger = logger }
}

// PingPongTracker reconciles liveness-probe tokens for one backend interface
// and reports mismatch conditions as SystemStatusChanged events on the bus.
//
// The tracker never raises errors to its callers during operation: pending
// and unknown mismatches are counted and reported as data, not failures.
// All public methods are safe for concurrent use; events and incidents are
// emitted outside the internal lock, so bus handlers may call back into the
// tracker.
type PingPongTracker struct {
	mu  sync.Mutex
	cfg Config

	bus       *event.Bus
	scheduler TaskScheduler
	connState ConnectionState
	recorder  incident.Recorder
	logger    *slog.Logger

	pending *tokenTracker
	unknown *tokenTracker
	journal *journal.Journal

	// retries coalesces scheduled unknown-pong re-checks per token.
	retries map[string]struct{}
}

// NewPingPongTracker creates a tracker publishing on bus. Invalid
// configuration values are rejected eagerly.
func NewPingPongTracker(cfg Config, bus *event.Bus, opts ...Option) (*PingPongTracker, error) {
	if bus == nil {
		return nil, ErrNilBus
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	t := &PingPongTracker{
		cfg:     cfg,
		bus:     bus,
		pending: newTokenTracker(cfg.CacheMaxSize),
		unknown: newTokenTracker(cfg.CacheMaxSize),
		journal: journal.New(cfg.JournalSize),
		retries: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// InterfaceID returns the monitored interface id.
func (t *PingPongTracker) InterfaceID() string { return t.cfg.InterfaceID }

// Journal returns the tracker's diagnostic journal. The journal is owned by
// the tracker; callers get read access via its snapshot accessors.
func (t *PingPongTracker) Journal() *journal.Journal { return t.journal }

// PendingCount returns the current number of unanswered pings.
func (t *PingPongTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.count()
}

// UnknownCount returns the current number of unmatched pongs.
func (t *PingPongTracker) UnknownCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unknown.count()
}

// emission is status output collected under the lock and delivered after it
// is released.
type emission struct {
	issues    []event.IntegrationIssue
	incidents []pendingIncident
}

type pendingIncident struct {
	incidentType incident.Type
	severity     event.Severity
	message      string
	count        int
}

func (e *emission) merge(other emission) {
	e.issues = append(e.issues, other.issues...)
	e.incidents = append(e.incidents, other.incidents...)
}

// HandleSendPing registers token as an outstanding ping. Call it before
// dispatching the ping on the wire so a fast pong can never race the
// registration. During a known connection outage the ping is not tracked
// at all.
func (t *PingPongTracker) HandleSendPing(token string) {
	if t.connState != nil && t.connState.HasRPCProxyIssue(t.cfg.InterfaceID) {
		return
	}

	t.mu.Lock()
	out := t.cleanupLocked()
	t.pending.insert(token)
	t.journal.RecordPingSent(token)
	out.merge(t.checkThresholdLocked(event.MismatchPending))
	t.mu.Unlock()

	t.emit(out)
}

// HandleReceivedPong reconciles token against the outstanding pings. A
// matched pong is removed from the pending set and its round-trip time is
// journaled; an unmatched pong is tracked as unknown and re-checked once
// after a short grace period in case the matching ping registers late.
func (t *PingPongTracker) HandleReceivedPong(token string) {
	t.mu.Lock()
	out := t.cleanupLocked()

	if sentAt, ok := t.pending.remove(token); ok {
		t.journal.RecordPongReceived(token, time.Since(sentAt))
		out.merge(t.checkThresholdLocked(event.MismatchPending))
		t.mu.Unlock()
		t.emit(out)
		return
	}

	t.unknown.insert(token)
	t.journal.RecordPongUnknown(token)
	out.merge(t.checkThresholdLocked(event.MismatchUnknown))
	scheduled := t.scheduleUnknownPongRetryLocked(token)
	t.mu.Unlock()

	if scheduled {
		t.scheduler.CreateTask("unknown pong retry "+token, func(ctx context.Context) {
			timer := time.NewTimer(t.cfg.RetryDelay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				t.dropRetry(token)
			case <-timer.C:
				t.retryUnknownPong(token)
			}
		})
	}

	t.emit(out)
}

// scheduleUnknownPongRetryLocked marks a retry for token as in flight.
// Returns false when a retry is already pending or no scheduler is
// available.
func (t *PingPongTracker) scheduleUnknownPongRetryLocked(token string) bool {
	if t.scheduler == nil {
		return false
	}
	if _, pending := t.retries[token]; pending {
		return false
	}
	t.retries[token] = struct{}{}
	return true
}

// dropRetry forgets an in-flight retry without re-checking the token.
func (t *PingPongTracker) dropRetry(token string) {
	t.mu.Lock()
	delete(t.retries, token)
	t.mu.Unlock()
}

// retryUnknownPong re-checks an unknown pong after the grace period. If a
// late matching ping has appeared, both sides are reconciled and the token
// is journaled as matched; otherwise the token is left for TTL expiry.
func (t *PingPongTracker) retryUnknownPong(token string) {
	t.mu.Lock()
	delete(t.retries, token)

	var out emission
	if t.unknown.contains(token) {
		if sentAt, ok := t.pending.remove(token); ok {
			t.unknown.remove(token)
			t.journal.RecordPongReceived(token, time.Since(sentAt))
			out.merge(t.checkThresholdLocked(event.MismatchPending))
			out.merge(t.checkThresholdLocked(event.MismatchUnknown))
		}
	}
	t.mu.Unlock()

	t.emit(out)
}

// Cleanup purges expired tokens from both sides and reports any resulting
// threshold transitions. It also runs opportunistically before every insert
// and reconcile, so calling it explicitly is only needed for idle periods.
func (t *PingPongTracker) Cleanup() {
	t.mu.Lock()
	out := t.cleanupLocked()
	t.mu.Unlock()
	t.emit(out)
}

// cleanupLocked purges tokens older than the TTL. Pending tokens that
// expire unanswered are journaled as expired. A purge that changes a side's
// count triggers a threshold re-check for that side, so an expiry can also
// produce a recovery event.
func (t *PingPongTracker) cleanupLocked() emission {
	var out emission

	if expired := t.pending.purgeExpired(t.cfg.TTL); len(expired) > 0 {
		for _, token := range expired {
			t.journal.RecordPongExpired(token)
		}
		out.merge(t.checkThresholdLocked(event.MismatchPending))
	}
	if expired := t.unknown.purgeExpired(t.cfg.TTL); len(expired) > 0 {
		out.merge(t.checkThresholdLocked(event.MismatchUnknown))
	}
	return out
}

// checkThresholdLocked runs the hysteresis state machine for one side.
//
// Low state (logged unset): events are throttled to positive even counts so
// a slowly growing mismatch surfaces as a trend without an event storm.
// Crossing above the allowed delta enters the high state, reports one
// error-severity issue and records an incident. Dropping back to the
// allowed delta or below leaves the high state with exactly one recovery
// issue carrying count zero.
func (t *PingPongTracker) checkThresholdLocked(side event.MismatchType) emission {
	tr := t.pending
	severity := event.SeverityError
	incidentType := incident.TypePingPongMismatchHigh
	if side == event.MismatchUnknown {
		tr = t.unknown
		severity = t.cfg.UnknownSeverity
		incidentType = incident.TypePingPongUnknownHigh
	}

	count := tr.count()
	var out emission

	switch {
	case count > t.cfg.AllowedDelta:
		if !tr.logged {
			tr.logged = true
			out.issues = append(out.issues, event.IntegrationIssue{
				IssueType:     event.IssuePingPongMismatch,
				InterfaceID:   t.cfg.InterfaceID,
				MismatchType:  side,
				MismatchCount: count,
				Severity:      severity,
			})
			out.incidents = append(out.incidents, pendingIncident{
				incidentType: incidentType,
				severity:     severity,
				message: fmt.Sprintf("%s mismatch count %d exceeds allowed delta %d on %s",
					side, count, t.cfg.AllowedDelta, t.cfg.InterfaceID),
				count: count,
			})
		}

	case tr.logged:
		tr.logged = false
		out.issues = append(out.issues, event.IntegrationIssue{
			IssueType:     event.IssuePingPongMismatch,
			InterfaceID:   t.cfg.InterfaceID,
			MismatchType:  side,
			MismatchCount: 0,
			Severity:      event.SeverityWarning,
		})

	case count > 0 && count%2 == 0:
		out.issues = append(out.issues, event.IntegrationIssue{
			IssueType:     event.IssuePingPongMismatch,
			InterfaceID:   t.cfg.InterfaceID,
			MismatchType:  side,
			MismatchCount: count,
			Severity:      event.SeverityWarning,
		})
	}

	return out
}

// emit delivers collected issues and incidents. Must be called without the
// tracker lock held.
func (t *PingPongTracker) emit(out emission) {
	if t.recorder != nil {
		for _, inc := range out.incidents {
			ctx := map[string]any{
				"mismatch_count": inc.count,
				"allowed_delta":  t.cfg.AllowedDelta,
				"ttl_seconds":    t.cfg.TTL.Seconds(),
			}
			if _, err := t.recorder.RecordIncident(inc.incidentType, inc.severity,
				inc.message, t.cfg.InterfaceID, ctx, t.journal); err != nil {
				t.logger.Warn("failed to record incident",
					"incident_type", inc.incidentType.String(),
					"interface_id", t.cfg.InterfaceID,
					"error", err)
			}
		}
	}

	if len(out.issues) == 0 {
		return
	}
	ev := event.NewSystemStatusChanged(out.issues...)
	if t.scheduler != nil {
		t.scheduler.CreateTask("publish system status", func(ctx context.Context) {
			t.bus.Publish(ctx, ev)
		})
		return
	}
	t.bus.Publish(context.Background(), ev)
}

// Clear empties both token sets and the journal and resets the hysteresis
// flags, leaving the tracker in its exact initial state. Used for full
// resets, for example after a reconnect.
func (t *PingPongTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending.clear()
	t.unknown.clear()
	t.journal.Clear()
	t.retries = make(map[string]struct{})
}
