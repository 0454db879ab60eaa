package stream

import "fmt"

// OperatorBuilder assembles one operator: outputs and inputs first, then
// Build with a constructor that receives one capability per output (in
// creation order, all at epoch 0) and returns the activation to run.
type OperatorBuilder struct {
	sc    *Scope
	n     *node
	ports []*portID
	built bool
}

func NewOperatorBuilder(name string, sc *Scope) *OperatorBuilder {
	return &OperatorBuilder{sc: sc, n: sc.register(name)}
}

// Address identifies the operator, e.g. for Scope.ActivatorFor.
func (b *OperatorBuilder) Address() Address {
	return b.n.addr
}

// Build finishes the operator. The constructor runs immediately; the
// activation it returns is scheduled once so every operator gets an
// initial chance to run.
func (b *OperatorBuilder) Build(constructor func(caps []*Capability) Activation) {
	if b.built {
		panic(fmt.Sprintf("stream: operator %q built twice", b.n.name))
	}
	b.built = true

	caps := make([]*Capability, len(b.ports))
	for i, p := range b.ports {
		b.sc.hold(0)
		caps[i] = &Capability{sc: b.sc, port: p, t: 0}
	}
	b.n.act = constructor(caps)
	b.sc.schedule(b.n.addr)
}

// portID gives each output port an identity so capabilities can be
// checked against the output they were minted for.
type portID struct {
	owner Address
	index int
}

// Stream is a typed handle to an operator output that downstream
// operators subscribe to with NewInput.
type Stream[T any] struct {
	sc  *Scope
	out *Output[T]
}

// Output is the producer side of a stream. Emitting requires a session
// opened with a capability minted for this output.
type Output[T any] struct {
	sc    *Scope
	port  *portID
	edges []*edge[T]
}

// edge buffers in-flight items for one subscriber. Each buffered item
// holds a pointstamp at its epoch until the subscriber consumes it.
type edge[T any] struct {
	consumer Address
	buf      []Timestamped[T]
}

// NewOutput adds an output port to the operator under construction and
// returns it together with the stream downstream operators subscribe to.
func NewOutput[T any](b *OperatorBuilder) (*Output[T], *Stream[T]) {
	if b.built {
		panic(fmt.Sprintf("stream: output added to %q after Build", b.n.name))
	}
	p := &portID{owner: b.n.addr, index: len(b.ports)}
	b.ports = append(b.ports, p)
	out := &Output[T]{sc: b.sc, port: p}
	return out, &Stream[T]{sc: b.sc, out: out}
}

// NewInput subscribes the operator under construction to st.
func NewInput[T any](b *OperatorBuilder, st *Stream[T]) *Input[T] {
	if b.built {
		panic(fmt.Sprintf("stream: input added to %q after Build", b.n.name))
	}
	e := &edge[T]{consumer: b.n.addr}
	st.out.edges = append(st.out.edges, e)
	return &Input[T]{sc: b.sc, e: e}
}

// Session permits emitting at the capability's epoch.
type Session[T any] struct {
	out *Output[T]
	cap *Capability
}

// Session opens an emission session. The capability must have been minted
// for this output and must still be live.
func (o *Output[T]) Session(cap *Capability) Session[T] {
	if cap.dropped {
		panic("stream: session from dropped capability")
	}
	if cap.port != o.port {
		panic("stream: capability does not belong to this output")
	}
	return Session[T]{out: o, cap: cap}
}

// Give emits one item at the session capability's current epoch.
func (s Session[T]) Give(item T) {
	if s.cap.dropped {
		panic("stream: Give on dropped capability")
	}
	s.out.give(s.cap.t, item)
}

// give enqueues the item on every subscriber edge. Callers must hold a
// pointstamp at or below e: either a live capability (sessions) or an
// in-flight item being relayed (ForEach callbacks).
func (o *Output[T]) give(e Epoch, item T) {
	for _, ed := range o.edges {
		o.sc.hold(e)
		ed.buf = append(ed.buf, Timestamped[T]{Epoch: e, Item: item})
		o.sc.schedule(ed.consumer)
	}
}

// Input is the consumer side of a stream subscription.
type Input[T any] struct {
	sc *Scope
	e  *edge[T]
}

// ForEach drains buffered items in arrival order. The item's pointstamp
// is released only after f returns, so emissions made while processing an
// item at epoch e can never let the frontier pass e.
func (in *Input[T]) ForEach(f func(e Epoch, item T) error) error {
	for len(in.e.buf) > 0 {
		ts := in.e.buf[0]
		in.e.buf = in.e.buf[1:]
		err := f(ts.Epoch, ts.Item)
		in.sc.release(ts.Epoch)
		if err != nil {
			return err
		}
	}
	return nil
}
