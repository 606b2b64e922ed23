// Package cooldown provides the two process-local gates the bot uses to
// pace member actions: a fixed cooldown (minimum elapsed time between
// repeats of an action) and a fixed-window burst limiter (at most N
// actions per rolling window). State is in-memory only; a restart clears
// every gate, which is an accepted tradeoff.
package cooldown

import (
	"sync"
	"time"
)

// Cooldown tracks the last allowed action per key and rejects repeats
// until the cooldown duration has elapsed. Allow records the timestamp
// itself on success, so check-and-record is a single critical section.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
	d    time.Duration
}

func NewCooldown(d time.Duration) *Cooldown {
	return &Cooldown{last: make(map[string]time.Time), d: d}
}

// Allow reports whether the action keyed by key may run at now, and on
// success records now as the key's last action time.
func (c *Cooldown) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.d {
		return false
	}
	c.last[key] = now
	return true
}

type windowEntry struct {
	count int
	start time.Time
}

// Window is a fixed-window burst limiter: once the window elapses the
// count resets to 1 and the action is allowed; within the window the
// count increments and the action is allowed while count <= max.
type Window struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	size    time.Duration
	max     int
}

func NewWindow(size time.Duration, max int) *Window {
	return &Window{entries: make(map[string]*windowEntry), size: size, max: max}
}

// Allow reports whether the action keyed by key fits in the current
// window at now.
func (w *Window) Allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[key]
	if !ok || now.Sub(e.start) > w.size {
		w.entries[key] = &windowEntry{count: 1, start: now}
		return true
	}
	e.count++
	return e.count <= w.max
}
