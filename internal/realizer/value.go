// Package realizer implements the construct graph: leaf constructs wrapping
// propagators, composite structures wrapping cycles, pull-link wiring between
// them, and the per-step propagation pass.
package realizer

import (
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region value
// Value is the payload pulled across links. Concrete types:
//
//   - numdict.NumDict for nodes, flows, and buffers
//   - Decision for termini
//   - SiteMap for composite structures
//
// Pulling always reads an already-cached value; it never triggers
// recomputation.
type Value interface{}

// Decision is the output of a terminus construct: the surviving strengths
// plus the discrete selection made this cycle.
type Decision struct {
	Strengths numdict.NumDict
	Selection []sym.Symbol
}

// SiteMap is the output of a composite structure: the outputs of the members
// matching the structure's output mask, keyed by member symbol.
type SiteMap map[sym.Symbol]Value

// PullFunc reads the cached output of some other realizer.
type PullFunc func() Value

// #endregion value

// #region inputs
// Inputs pairs source construct symbols with their pulled outputs for one
// propagation call.
type Inputs map[sym.Symbol]Value

// Strengths returns the activation strengths pulled from source. Missing
// sources and non-strength payloads read as an empty dict, keeping propagator
// arithmetic total.
func (in Inputs) Strengths(source sym.Symbol) numdict.NumDict {
	v, ok := in[source]
	if !ok {
		return numdict.New()
	}
	return AsStrengths(v)
}

// Terminus indexes the output of a composite source at one of its termini.
// The boolean is false when the source is absent, is not a composite, or has
// no cached output for the terminus yet.
func (in Inputs) Terminus(source, terminus sym.Symbol) (numdict.NumDict, bool) {
	v, ok := in[source]
	if !ok {
		return numdict.New(), false
	}
	site, ok := v.(SiteMap)
	if !ok {
		return numdict.New(), false
	}
	tv, ok := site[terminus]
	if !ok {
		return numdict.New(), false
	}
	return AsStrengths(tv), true
}

// AsStrengths coerces a pulled value to activation strengths. Decisions
// expose their strength component; unknown payloads read as empty.
func AsStrengths(v Value) numdict.NumDict {
	switch t := v.(type) {
	case numdict.NumDict:
		return t
	case Decision:
		return t.Strengths
	default:
		return numdict.New()
	}
}

// #endregion inputs
