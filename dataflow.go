package bytewax

import (
	"context"
	"fmt"

	"github.com/vishalsingh17/bytewax/internal/execution"
	"go.uber.org/multierr"
)

// Dataflow describes a flow as an ordered list of named steps. Steps are
// added through the typed free functions (Input, Map, Output, ...) which
// link themselves by step ID; the App lowers the description into
// per-worker operators when it runs.
//
// Construction never fails fast. Malformed steps are collected and
// surfaced by New, so a whole flow can be declared before checking.
type Dataflow struct {
	name  string
	steps []*step
	errs  []error
}

type step struct {
	id      string
	isInput bool
	build   func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error
}

func NewDataflow(name string) *Dataflow {
	return &Dataflow{name: name}
}

func (d *Dataflow) Name() string {
	return d.name
}

func (d *Dataflow) addStep(id string, isInput bool, build func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error) {
	if id == "" {
		d.errs = append(d.errs, fmt.Errorf("dataflow %q: step with empty id", d.name))
		return
	}
	for _, s := range d.steps {
		if s.id == id {
			d.errs = append(d.errs, fmt.Errorf("dataflow %q: duplicate step id %q", d.name, id))
			return
		}
	}
	d.steps = append(d.steps, &step{id: id, isInput: isInput, build: build})
}

func (d *Dataflow) addErr(err error) {
	d.errs = append(d.errs, err)
}

// plan lowers the dataflow into its type-erased execution form.
func (d *Dataflow) plan() (*execution.Plan, error) {
	errs := d.errs
	if d.name == "" {
		errs = append(errs, fmt.Errorf("dataflow name must not be empty"))
	}
	hasInput := false
	for _, s := range d.steps {
		if s.isInput {
			hasInput = true
		}
	}
	if !hasInput {
		errs = append(errs, fmt.Errorf("dataflow %q: at least one input step required", d.name))
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	plan := &execution.Plan{}
	for _, s := range d.steps {
		plan.Steps = append(plan.Steps, execution.PlanStep{ID: s.id, Build: s.build})
	}
	return plan, nil
}
