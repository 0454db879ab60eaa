package inputs

import (
	"context"
	"fmt"
	"time"
)

// MinPollInterval is the smallest interval PollingSource accepts. Polls
// share the worker's only thread, so very tight intervals would starve
// the rest of the dataflow.
const MinPollInterval = 10 * time.Millisecond

// PollingSource calls a getter at a fixed wall-clock interval, emitting
// one item per tick. Between ticks the reader reports Pending. The
// source is a single partition named "singleton" and keeps no resumable
// state; a resumed execution polls fresh.
//
// The getter should return promptly. An error from it is fatal to the
// dataflow.
type PollingSource[D any] struct {
	interval time.Duration
	alignTo  time.Time
	getter   func() (D, error)
}

// PollingOption configures a PollingSource.
type PollingOption func(*pollingConfig)

type pollingConfig struct {
	alignTo time.Time
}

// WithAlignTo snaps awake times onto the grid anchored at t, so several
// executions poll in phase.
var WithAlignTo = func(t time.Time) PollingOption {
	return func(c *pollingConfig) {
		c.alignTo = t
	}
}

func NewPollingSource[D any](interval time.Duration, getter func() (D, error), opts ...PollingOption) (*PollingSource[D], error) {
	if interval < MinPollInterval {
		return nil, fmt.Errorf("polling interval %v below minimum %v", interval, MinPollInterval)
	}
	if getter == nil {
		return nil, fmt.Errorf("polling source requires a getter")
	}
	var cfg pollingConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &PollingSource[D]{interval: interval, alignTo: cfg.alignTo, getter: getter}, nil
}

func (s *PollingSource[D]) ListParts(ctx context.Context) ([]string, error) {
	return []string{"singleton"}, nil
}

func (s *PollingSource[D]) BuildPart(ctx context.Context, forPart string, resumeState []byte) (Reader[D], error) {
	if forPart != "singleton" {
		return nil, fmt.Errorf("polling source has no partition %q", forPart)
	}
	r := &pollingReader[D]{
		interval: s.interval,
		alignTo:  s.alignTo,
		getter:   s.getter,
		now:      time.Now,
	}
	if !s.alignTo.IsZero() {
		r.nextAwake = nextAligned(s.alignTo, s.interval, r.now())
	}
	return r, nil
}

type pollingReader[D any] struct {
	interval  time.Duration
	alignTo   time.Time
	getter    func() (D, error)
	now       func() time.Time
	nextAwake time.Time
}

func (r *pollingReader[D]) Next() (D, Poll, error) {
	now := r.now()
	if now.Before(r.nextAwake) {
		var zero D
		return zero, Pending, nil
	}
	item, err := r.getter()
	if err != nil {
		var zero D
		return zero, Pending, fmt.Errorf("poll getter: %w", err)
	}
	if r.alignTo.IsZero() {
		r.nextAwake = now.Add(r.interval)
	} else {
		r.nextAwake = nextAligned(r.alignTo, r.interval, now)
	}
	return item, Ready, nil
}

func (r *pollingReader[D]) Snapshot() ([]byte, error) {
	return nil, nil
}

func (r *pollingReader[D]) Close() error {
	return nil
}

// nextAligned returns the first grid point strictly after now on the
// grid anchored at origin with the given spacing.
func nextAligned(origin time.Time, interval time.Duration, now time.Time) time.Time {
	if now.Before(origin) {
		return origin
	}
	steps := int64(now.Sub(origin)/interval) + 1
	return origin.Add(time.Duration(steps) * interval)
}

var _ PartitionedSource[int] = (*PollingSource[int])(nil)
