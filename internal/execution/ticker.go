package execution

import "time"

// epochTicker decides when the current epoch has run its course.
// time.Time carries a monotonic reading, so wall-clock adjustments never
// stretch or shrink an epoch. now is replaceable in tests.
type epochTicker struct {
	length  time.Duration
	started time.Time
	now     func() time.Time
}

func newEpochTicker(length time.Duration, now func() time.Time) *epochTicker {
	if now == nil {
		now = time.Now
	}
	t := &epochTicker{length: length, now: now}
	t.reset()
	return t
}

// elapsed reports whether a full epoch length has passed since the last
// reset. A non-positive length elapses immediately.
func (t *epochTicker) elapsed() bool {
	return t.now().Sub(t.started) >= t.length
}

func (t *epochTicker) reset() {
	t.started = t.now()
}
