package stream

import "slices"

// Unary builds a one-in one-out operator. f runs once per item and emits
// at the item's epoch through emit.
func Unary[I, O any](sc *Scope, name string, in *Stream[I], f func(e Epoch, item I, emit func(O)) error) *Stream[O] {
	b := NewOperatorBuilder(name, sc)
	out, st := NewOutput[O](b)
	input := NewInput(b, in)
	b.Build(func(caps []*Capability) Activation {
		// Relays emit at input epochs only, so the initial capability
		// would just pin the frontier at 0.
		for _, c := range caps {
			c.Drop()
		}
		return func() error {
			return input.ForEach(func(e Epoch, item I) error {
				return f(e, item, func(o O) { out.give(e, o) })
			})
		}
	})
	return st
}

// Sink builds a terminal operator invoking f once per item.
func Sink[T any](sc *Scope, name string, in *Stream[T], f func(e Epoch, item T) error) {
	b := NewOperatorBuilder(name, sc)
	input := NewInput(b, in)
	b.Build(func(caps []*Capability) Activation {
		return func() error {
			return input.ForEach(f)
		}
	})
}

// Merge funnels multiple streams of the same type into one.
func Merge[T any](sc *Scope, name string, ins ...*Stream[T]) *Stream[T] {
	if len(ins) == 1 {
		return ins[0]
	}
	b := NewOperatorBuilder(name, sc)
	out, st := NewOutput[T](b)
	inputs := make([]*Input[T], len(ins))
	for i, s := range ins {
		inputs[i] = NewInput(b, s)
	}
	b.Build(func(caps []*Capability) Activation {
		for _, c := range caps {
			c.Drop()
		}
		return func() error {
			for _, input := range inputs {
				err := input.ForEach(func(e Epoch, item T) error {
					out.give(e, item)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		}
	})
	return st
}

// Captured collects everything a stream produced, for tests and
// in-process inspection.
type Captured[T any] struct {
	items []Timestamped[T]
}

// Capture subscribes a collecting sink to in.
func Capture[T any](sc *Scope, name string, in *Stream[T]) *Captured[T] {
	c := &Captured[T]{}
	Sink(sc, name, in, func(e Epoch, item T) error {
		c.items = append(c.items, Timestamped[T]{Epoch: e, Item: item})
		return nil
	})
	return c
}

// Extract returns the captured items in arrival order.
func (c *Captured[T]) Extract() []Timestamped[T] {
	return slices.Clone(c.items)
}

// At returns the items captured at epoch e, in arrival order.
func (c *Captured[T]) At(e Epoch) []T {
	var out []T
	for _, ts := range c.items {
		if ts.Epoch == e {
			out = append(out, ts.Item)
		}
	}
	return out
}
