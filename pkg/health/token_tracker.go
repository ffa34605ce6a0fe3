package health

import "time"

// tokenTracker is a size- and age-bounded set of opaque tokens with the
// hysteresis flag for one mismatch direction. The owning tracker guards all
// access; tokenTracker itself is not safe for concurrent use.
type tokenTracker struct {
	// seen maps each live token to its insertion time.
	seen map[string]time.Time

	// logged is true while the high state has already been announced.
	logged bool

	// maxSize is the hard cap on tracked tokens; oldest evicted first.
	maxSize int
}

// newTokenTracker creates an empty tracker with the given capacity.
func newTokenTracker(maxSize int) *tokenTracker {
	return &tokenTracker{
		seen:    make(map[string]time.Time),
		maxSize: maxSize,
	}
}

// insert adds token, evicting the oldest entries when the capacity would be
// exceeded. Re-inserting a live token refreshes its insertion time.
func (t *tokenTracker) insert(token string) {
	if _, exists := t.seen[token]; !exists {
		for len(t.seen) >= t.maxSize {
			t.evictOldest()
		}
	}
	t.seen[token] = time.Now()
}

// evictOldest removes the entry with the earliest insertion time.
func (t *tokenTracker) evictOldest() {
	var oldest string
	var oldestAt time.Time
	first := true
	for token, at := range t.seen {
		if first || at.Before(oldestAt) {
			oldest, oldestAt = token, at
			first = false
		}
	}
	if !first {
		delete(t.seen, oldest)
	}
}

// contains reports whether token is live.
func (t *tokenTracker) contains(token string) bool {
	_, ok := t.seen[token]
	return ok
}

// remove deletes token and returns its insertion time.
func (t *tokenTracker) remove(token string) (time.Time, bool) {
	at, ok := t.seen[token]
	if ok {
		delete(t.seen, token)
	}
	return at, ok
}

// purgeExpired removes every token older than ttl and returns the removed
// tokens in no particular order.
func (t *tokenTracker) purgeExpired(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)
	var expired []string
	for token, at := range t.seen {
		if at.Before(cutoff) {
			expired = append(expired, token)
		}
	}
	for _, token := range expired {
		delete(t.seen, token)
	}
	return expired
}

// count returns the number of live tokens.
func (t *tokenTracker) count() int {
	return len(t.seen)
}

// clear empties the tracker and resets the hysteresis flag.
func (t *tokenTracker) clear() {
	t.seen = make(map[string]time.Time)
	t.logged = false
}
