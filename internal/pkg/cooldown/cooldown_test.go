package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldown_RejectsWithinWindow(t *testing.T) {
	c := NewCooldown(20 * time.Minute)
	now := time.Now()

	assert.True(t, c.Allow("author-1", now))
	assert.False(t, c.Allow("author-1", now.Add(time.Minute)))
	assert.False(t, c.Allow("author-1", now.Add(19*time.Minute)))
	assert.True(t, c.Allow("author-1", now.Add(20*time.Minute)))
}

func TestCooldown_KeysAreIndependent(t *testing.T) {
	c := NewCooldown(20 * time.Minute)
	now := time.Now()

	assert.True(t, c.Allow("guild-target-a", now))
	assert.True(t, c.Allow("guild-target-b", now))
	assert.False(t, c.Allow("guild-target-a", now.Add(time.Second)))
}

func TestCooldown_SuccessRecordsNewTimestamp(t *testing.T) {
	c := NewCooldown(10 * time.Minute)
	now := time.Now()

	assert.True(t, c.Allow("k", now))
	assert.True(t, c.Allow("k", now.Add(10*time.Minute)))
	// The second success restarted the clock.
	assert.False(t, c.Allow("k", now.Add(11*time.Minute)))
}

func TestWindow_SixthCallRejected(t *testing.T) {
	w := NewWindow(10*time.Second, 5)
	now := time.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, w.Allow("spammer", now.Add(time.Duration(i)*time.Second)), "call %d", i+1)
	}
	assert.False(t, w.Allow("spammer", now.Add(5*time.Second)))
}

func TestWindow_ResetsAfterWindowElapses(t *testing.T) {
	w := NewWindow(10*time.Second, 5)
	now := time.Now()

	for i := 0; i < 6; i++ {
		w.Allow("spammer", now)
	}
	assert.False(t, w.Allow("spammer", now.Add(9*time.Second)))
	assert.True(t, w.Allow("spammer", now.Add(11*time.Second)))
}

func TestWindow_KeysAreIndependent(t *testing.T) {
	w := NewWindow(10*time.Second, 1)
	now := time.Now()

	assert.True(t, w.Allow("a", now))
	assert.False(t, w.Allow("a", now))
	assert.True(t, w.Allow("b", now))
}
