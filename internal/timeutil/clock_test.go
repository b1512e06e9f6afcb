package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRealClockTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClockAdvance(t *testing.T) {
	c := NewMockClock(epoch)
	c.Advance(33 * time.Millisecond)
	assert.Equal(t, epoch.Add(33*time.Millisecond), c.Now())
	assert.Equal(t, 33*time.Millisecond, c.Since(epoch))

	c.Set(epoch)
	assert.Equal(t, epoch, c.Now())
}

func TestMockClockSleep(t *testing.T) {
	c := NewMockClock(epoch)
	c.Sleep(2 * time.Millisecond)
	c.Sleep(3 * time.Millisecond)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 3 * time.Millisecond}, c.Sleeps())
	assert.Equal(t, epoch, c.Now(), "sleep does not move the clock by default")

	c.SleepAdvances = true
	c.Sleep(time.Second)
	assert.Equal(t, epoch.Add(time.Second), c.Now())
}

func TestMockTicker(t *testing.T) {
	c := NewMockClock(epoch)
	ticker := c.NewTicker(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticked early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-ticker.C():
		assert.Equal(t, epoch.Add(100*time.Millisecond), got)
	default:
		t.Fatal("expected a tick")
	}

	// Unreceived ticks are dropped rather than queued.
	c.Advance(100 * time.Millisecond)
	c.Advance(100 * time.Millisecond)
	require.Len(t, ticker.C(), 1)
	<-ticker.C()

	ticker.Stop()
	c.Advance(time.Second)
	assert.Len(t, ticker.C(), 0)

	ticker.Reset(10 * time.Millisecond)
	c.Advance(10 * time.Millisecond)
	assert.Len(t, ticker.C(), 1)
}
