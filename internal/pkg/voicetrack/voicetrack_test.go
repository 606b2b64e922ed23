package voicetrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_JoinLeave(t *testing.T) {
	tr := New()
	now := time.Now()

	tr.Join("m1", now)
	elapsed, ok := tr.Leave("m1", now.Add(95*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 95*time.Second, elapsed)
}

func TestTracker_LeaveConsumesSession(t *testing.T) {
	tr := New()
	now := time.Now()

	tr.Join("m1", now)
	_, ok := tr.Leave("m1", now.Add(time.Second))
	assert.True(t, ok)
	_, ok = tr.Leave("m1", now.Add(2*time.Second))
	assert.False(t, ok)
}

func TestTracker_LeaveWithoutJoin(t *testing.T) {
	tr := New()
	_, ok := tr.Leave("ghost", time.Now())
	assert.False(t, ok)
}

func TestTracker_RejoinRestartsSession(t *testing.T) {
	tr := New()
	now := time.Now()

	tr.Join("m1", now)
	tr.Join("m1", now.Add(60*time.Second))
	elapsed, ok := tr.Leave("m1", now.Add(90*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, elapsed)
}
