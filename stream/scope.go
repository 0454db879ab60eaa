package stream

import (
	"fmt"
	"io"
	"log/slog"
)

// Address identifies an operator within its Scope.
type Address int

// Activation is one unit of operator work. It must not block; an operator
// that has more work to do re-arms itself through its Activator.
type Activation func() error

type node struct {
	addr    Address
	name    string
	act     Activation
	pending bool
}

// Scope hosts the operators of one worker: it keeps the activation queue
// and tracks progress as pointstamp counts per epoch. A Scope is confined
// to a single goroutine; all activations run on the caller of Step.
type Scope struct {
	name string
	log  *slog.Logger

	nodes []*node
	queue []Address

	// Live pointstamps: capability holds and buffered items, counted per
	// epoch. The frontier is the minimum epoch with a non-zero count.
	counts map[Epoch]int
}

func NewScope(name string, log *slog.Logger) *Scope {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scope{
		name:   name,
		log:    log.With("scope", name),
		counts: make(map[Epoch]int),
	}
}

func (s *Scope) register(name string) *node {
	n := &node{addr: Address(len(s.nodes)), name: name}
	s.nodes = append(s.nodes, n)
	s.log.Debug("registered operator", "operator", name, "address", n.addr)
	return n
}

func (s *Scope) schedule(addr Address) {
	n := s.nodes[addr]
	if n.pending {
		return
	}
	n.pending = true
	s.queue = append(s.queue, addr)
}

// Step runs a single pending activation. It reports false if nothing was
// pending. An activation error is returned wrapped with the operator name
// and leaves the scope unusable for further progress.
func (s *Scope) Step() (bool, error) {
	if len(s.queue) == 0 {
		return false, nil
	}
	addr := s.queue[0]
	s.queue = s.queue[1:]

	n := s.nodes[addr]
	n.pending = false
	if n.act == nil {
		panic(fmt.Sprintf("stream: operator %q activated before Build", n.name))
	}
	if err := n.act(); err != nil {
		return true, fmt.Errorf("operator %s: %w", n.name, err)
	}
	return true, nil
}

// Done reports whether the dataflow has quiesced: no pending activations
// and no live pointstamps. Once true it stays true.
func (s *Scope) Done() bool {
	return len(s.queue) == 0 && len(s.counts) == 0
}

// ActivatorFor returns a re-arm handle for the operator at addr. Like the
// Scope itself it may only be used from the scope's goroutine.
func (s *Scope) ActivatorFor(addr Address) *Activator {
	return &Activator{sc: s, addr: addr}
}

// Activator re-schedules an operator. Repeated activations before the
// operator runs collapse into one.
type Activator struct {
	sc   *Scope
	addr Address
}

func (a *Activator) Activate() {
	a.sc.schedule(a.addr)
}

func (s *Scope) hold(e Epoch) {
	s.counts[e]++
}

func (s *Scope) release(e Epoch) {
	c, ok := s.counts[e]
	if !ok {
		panic(fmt.Sprintf("stream: released pointstamp at epoch %d with no holds", e))
	}
	if c == 1 {
		delete(s.counts, e)
		return
	}
	s.counts[e] = c - 1
}

func (s *Scope) lessThan(t Epoch) bool {
	for e := range s.counts {
		if e < t {
			return true
		}
	}
	return false
}

func (s *Scope) frontier() (Epoch, bool) {
	var min Epoch
	found := false
	for e := range s.counts {
		if !found || e < min {
			min = e
			found = true
		}
	}
	return min, found
}
