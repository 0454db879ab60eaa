package stream

import "fmt"

// Capability is the permission to emit items at its current epoch or
// later. Holding one pins the frontier at or below that epoch. Misuse is
// a programming error and panics: downgrades must be monotonic and a
// dropped capability must not be touched again.
type Capability struct {
	sc      *Scope
	port    *portID
	t       Epoch
	dropped bool
}

// Time returns the epoch the capability is currently held at.
func (c *Capability) Time() Epoch {
	if c.dropped {
		panic("stream: Time on dropped capability")
	}
	return c.t
}

// Downgrade advances the capability to t. Equal epochs are a no-op.
func (c *Capability) Downgrade(t Epoch) {
	if c.dropped {
		panic("stream: Downgrade on dropped capability")
	}
	if t < c.t {
		panic(fmt.Sprintf("stream: capability downgrade from %d to earlier epoch %d", c.t, t))
	}
	if t == c.t {
		return
	}
	c.sc.hold(t)
	c.sc.release(c.t)
	c.t = t
}

// Delayed returns a new capability for the same output at epoch t, which
// must not precede the current epoch. The receiver stays live.
func (c *Capability) Delayed(t Epoch) *Capability {
	if c.dropped {
		panic("stream: Delayed on dropped capability")
	}
	if t < c.t {
		panic(fmt.Sprintf("stream: capability delayed from %d to earlier epoch %d", c.t, t))
	}
	c.sc.hold(t)
	return &Capability{sc: c.sc, port: c.port, t: t}
}

// Drop releases the capability. The owning operator can never again emit
// on this output, and the frontier is free to move past the epoch.
func (c *Capability) Drop() {
	if c.dropped {
		panic("stream: Drop on dropped capability")
	}
	c.sc.release(c.t)
	c.dropped = true
}
