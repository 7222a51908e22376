package realizer

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region propagator
// Propagator computes a leaf construct's output from pulled inputs. A
// propagator is a pure function of its inputs unless it also implements
// Stateful, in which case it may carry cross-cycle state mutated only through
// its own Call/Update.
type Propagator interface {
	// Serves returns the mask of construct kinds this propagator may drive.
	Serves() sym.Kind

	// Expects returns the acceptance predicate deciding which sources are
	// wired to the owning construct. This predicate is the sole source of
	// truth for topology.
	Expects() sym.Match

	// Call computes fresh strengths for client from the pulled inputs.
	Call(client sym.Symbol, inputs Inputs) (numdict.NumDict, error)
}

// Stateful is implemented by propagators needing a post-propagation hook,
// e.g. to clear transient flags. Update runs once per cycle, after the full
// propagation pass of the enclosing agent.
type Stateful interface {
	Update(client sym.Symbol, inputs Inputs, output Value)
}

// #endregion propagator

// #region realizer
// Realizer is a node of the construct graph: it owns an emitter, a registry
// of input pull-links, and a cached output.
type Realizer interface {
	Construct() sym.Symbol
	Accepts(source sym.Symbol) bool
	Watch(source sym.Symbol, pull PullFunc)
	Drop(source sym.Symbol)
	ClearInputs()
	View() Value
	ClearOutput()
	Propagate() error
	Update()
}

// UpdaterFunc is an optional learning/maintenance hook carried by a realizer,
// run once per cycle after propagation. It may inspect outputs and mutate
// shared knowledge stores or restructure the graph.
type UpdaterFunc func(r Realizer)

// #endregion realizer

// #region construct
// Construct is a leaf realizer: it wraps a Propagator and caches the result
// of each propagation.
type Construct struct {
	name    sym.Symbol
	prop    Propagator
	inputs  map[sym.Symbol]PullFunc
	output  Value
	updater UpdaterFunc

	lastInputs Inputs // inputs pulled on the most recent propagation
}

// NewConstruct returns a leaf realizer for name driven by prop. The construct
// kind must be a single basic kind inside the propagator's serves mask;
// anything else is a structural error.
func NewConstruct(name sym.Symbol, prop Propagator, opts ...ConstructOption) (*Construct, error) {
	if !name.Kind.IsBasic() {
		return nil, fmt.Errorf("realizer: %v is not a basic construct kind", name)
	}
	if name.Kind&prop.Serves() == 0 {
		return nil, fmt.Errorf(
			"realizer: propagator %T cannot serve %v (serves %v)",
			prop, name, prop.Serves(),
		)
	}
	c := &Construct{
		name:   name,
		prop:   prop,
		inputs: make(map[sym.Symbol]PullFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustConstruct is NewConstruct that panics on structural errors. Intended
// for static agent assembly where a failure is a programming mistake.
func MustConstruct(name sym.Symbol, prop Propagator, opts ...ConstructOption) *Construct {
	c, err := NewConstruct(name, prop, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ConstructOption configures a Construct at creation.
type ConstructOption func(*Construct)

// WithUpdater attaches a post-propagation updater hook.
func WithUpdater(u UpdaterFunc) ConstructOption {
	return func(c *Construct) { c.updater = u }
}

// Construct returns the client symbol.
func (c *Construct) Construct() sym.Symbol { return c.name }

// Propagator returns the wrapped propagator.
func (c *Construct) Propagator() Propagator { return c.prop }

// Accepts delegates to the propagator's acceptance predicate.
func (c *Construct) Accepts(source sym.Symbol) bool {
	return c.prop.Expects().Accepts(source)
}

// Watch registers source as an input, replacing any prior link from it.
func (c *Construct) Watch(source sym.Symbol, pull PullFunc) {
	c.inputs[source] = pull
}

// Drop unregisters the link from source, if present.
func (c *Construct) Drop(source sym.Symbol) {
	delete(c.inputs, source)
}

// ClearInputs drops every registered link.
func (c *Construct) ClearInputs() {
	c.inputs = make(map[sym.Symbol]PullFunc)
}

// InputSources returns the symbols currently linked into c, sorted.
func (c *Construct) InputSources() []sym.Symbol {
	out := make([]sym.Symbol, 0, len(c.inputs))
	for s := range c.inputs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return sym.Less(out[i], out[j]) })
	return out
}

// View returns the cached output. Before the first propagation it returns a
// well-defined empty value of the kind-appropriate type.
func (c *Construct) View() Value {
	if c.output == nil {
		return emptyOutput(c.name.Kind)
	}
	return c.output
}

// ClearOutput discards the cached output.
func (c *Construct) ClearOutput() {
	c.output = nil
	c.lastInputs = nil
}

// Propagate pulls every registered input eagerly, runs the propagator, and
// caches the wrapped result. Pulls read cached values only; no recursive
// computation is triggered.
func (c *Construct) Propagate() error {
	pulled := make(Inputs, len(c.inputs))
	for source, pull := range c.inputs {
		pulled[source] = pull()
	}
	d, err := c.prop.Call(c.name, pulled)
	if err != nil {
		return fmt.Errorf("propagate %v: %w", c.name, err)
	}
	d.Squeeze()
	c.output = wrapOutput(c.name.Kind, d)
	c.lastInputs = pulled
	return nil
}

// Update runs the propagator's state hook (if any) and then the attached
// updater. Called once per cycle after the full propagation pass.
func (c *Construct) Update() {
	if s, ok := c.prop.(Stateful); ok {
		inputs := c.lastInputs
		if inputs == nil {
			inputs = Inputs{}
		}
		s.Update(c.name, inputs, c.View())
	}
	if c.updater != nil {
		c.updater(c)
	}
}

// #endregion construct

// #region wrapping
// wrapOutput applies the kind-specific wrapping rule: termini emit decisions
// whose selection is the explicit key set of the computed strengths, all
// other basic kinds emit the strengths unchanged. The rule lives here, not in
// propagators, so behavior is uniform across propagators of one kind.
func wrapOutput(kind sym.Kind, d numdict.NumDict) Value {
	if kind == sym.Terminus {
		return Decision{Strengths: d, Selection: d.Keys()}
	}
	return d
}

func emptyOutput(kind sym.Kind) Value {
	switch {
	case kind == sym.Terminus:
		return Decision{Strengths: numdict.New()}
	case kind.IsContainer():
		return SiteMap{}
	default:
		return numdict.New()
	}
}

// #endregion wrapping
