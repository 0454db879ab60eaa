package stream

// Frontier is the downstream progress view consumed by operators that
// gate their work on completed epochs.
type Frontier interface {
	// LessThan reports whether work at some epoch strictly before t is
	// still incomplete.
	LessThan(t Epoch) bool
}

// Probe observes the scope's frontier.
type Probe struct {
	sc *Scope
}

func (s *Scope) Probe() *Probe {
	return &Probe{sc: s}
}

func (p *Probe) LessThan(t Epoch) bool {
	return p.sc.lessThan(t)
}

// Frontier returns the minimum live epoch. ok is false once the dataflow
// has quiesced and no epochs remain in flight.
func (p *Probe) Frontier() (Epoch, bool) {
	return p.sc.frontier()
}

var _ Frontier = (*Probe)(nil)
