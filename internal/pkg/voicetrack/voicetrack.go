// Package voicetrack remembers when each member joined voice so the
// leave handler can award points for the elapsed session. Sessions are
// in-memory only; a restart loses in-flight sessions (partial loss, not
// corruption).
package voicetrack

import (
	"sync"
	"time"
)

// Tracker maps member id to voice-join timestamp.
type Tracker struct {
	mu    sync.Mutex
	joins map[string]time.Time
}

func New() *Tracker {
	return &Tracker{joins: make(map[string]time.Time)}
}

// Join records now as the member's session start. A second join without
// a leave (e.g. a missed event) restarts the session.
func (t *Tracker) Join(memberID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joins[memberID] = now
}

// Leave consumes the member's session and returns its duration. ok is
// false when no session was being tracked.
func (t *Tracker) Leave(memberID string, now time.Time) (elapsed time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.joins[memberID]
	if !ok {
		return 0, false
	}
	delete(t.joins, memberID)
	return now.Sub(start), true
}
