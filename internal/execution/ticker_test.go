package execution

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestEpochTicker(t *testing.T) {
	t.Run("elapses only after the full length", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		ticker := newEpochTicker(10*time.Second, clock.now)

		assert.False(t, ticker.elapsed())
		clock.advance(9 * time.Second)
		assert.False(t, ticker.elapsed())
		clock.advance(time.Second)
		assert.True(t, ticker.elapsed())
	})

	t.Run("reset starts a fresh period", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		ticker := newEpochTicker(10*time.Second, clock.now)

		clock.advance(15 * time.Second)
		assert.True(t, ticker.elapsed())

		ticker.reset()
		assert.False(t, ticker.elapsed())
		clock.advance(10 * time.Second)
		assert.True(t, ticker.elapsed())
	})

	t.Run("zero length elapses immediately", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		ticker := newEpochTicker(0, clock.now)
		assert.True(t, ticker.elapsed())
	})

	t.Run("negative length elapses immediately", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		ticker := newEpochTicker(-time.Second, clock.now)
		assert.True(t, ticker.elapsed())
	})

	t.Run("defaults to the wall clock", func(t *testing.T) {
		ticker := newEpochTicker(time.Hour, nil)
		assert.False(t, ticker.elapsed())
	})
}
