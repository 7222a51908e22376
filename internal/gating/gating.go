// Package gating provides composition combinators that wrap a base propagator
// to scale its output (Gated) or rescale its inputs (Filtered) using an
// independently computed control signal, plus the FilteringRelay buffer that
// turns controller decisions into gate weights.
package gating

import (
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region transform
// Transform maps a pulled control weight to the applied multiplier.
type Transform int

const (
	// Eye applies the weight unchanged.
	Eye Transform = iota
	// Inv applies the complement, 1 - weight.
	Inv
)

func (t Transform) apply(w float64) float64 {
	if t == Inv {
		return 1 - w
	}
	return w
}

// #endregion transform

// #region gated
// Gated scales the wrapped propagator's output by a scalar weight pulled from
// the gate construct's output at the gated construct's own symbol. Gating is
// per consumer, not per key: one weight multiplies the whole output, and
// entries whose scaled value is not positive are dropped.
type Gated struct {
	Base      realizer.Propagator
	Gate      sym.Symbol
	Transform Transform
}

func (g Gated) Serves() sym.Kind { return g.Base.Serves() }

// Expects augments the base acceptance with the gate source.
func (g Gated) Expects() sym.Match {
	return g.Base.Expects().Or(sym.MatchSymbols(g.Gate))
}

func (g Gated) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	w := g.Transform.apply(inputs.Strengths(g.Gate).Get(client))
	d, err := g.Base.Call(client, strip(inputs, g.Gate))
	if err != nil {
		return numdict.New(), err
	}
	scaled := numdict.Scale(d, w)
	out := numdict.New()
	scaled.Each(func(k sym.Symbol, v float64) {
		if v > 0 {
			out.Set(k, v)
		}
	})
	return out, nil
}

// Update forwards the state hook to the wrapped propagator, with the gate
// input stripped, so stateful bases behave identically gated or bare.
func (g Gated) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	if s, ok := g.Base.(realizer.Stateful); ok {
		s.Update(client, strip(inputs, g.Gate), output)
	}
}

// #endregion gated

// #region filtered
// Filtered rescales every input entry by a per-key weight pulled from the
// filter construct before the wrapped propagator sees it. Keys absent from
// the filter signal read as DefaultWeight. The same rescaling applies during
// the update phase, so stateful bases learn from exactly what they computed
// on.
type Filtered struct {
	Base          realizer.Propagator
	Filter        sym.Symbol
	Invert        bool
	DefaultWeight float64
}

func (f Filtered) Serves() sym.Kind { return f.Base.Serves() }

// Expects augments the base acceptance with the filter source.
func (f Filtered) Expects() sym.Match {
	return f.Base.Expects().Or(sym.MatchSymbols(f.Filter))
}

func (f Filtered) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	return f.Base.Call(client, f.filtered(inputs))
}

// Update forwards the state hook with identically filtered inputs.
func (f Filtered) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	if s, ok := f.Base.(realizer.Stateful); ok {
		s.Update(client, f.filtered(inputs), output)
	}
}

func (f Filtered) filtered(inputs realizer.Inputs) realizer.Inputs {
	weights := inputs.Strengths(f.Filter)
	out := make(realizer.Inputs, len(inputs))
	for source, v := range inputs {
		if source == f.Filter {
			continue
		}
		d := realizer.AsStrengths(v)
		scaled := numdict.New()
		d.Each(func(k sym.Symbol, val float64) {
			w := f.DefaultWeight
			if weights.Contains(k) {
				w = weights.Get(k)
				if f.Invert {
					w = 1 - w
				}
			}
			scaled.Set(k, val*w)
		})
		out[source] = scaled
	}
	return out
}

// #endregion filtered

// strip returns inputs without the named control source, so wrapped
// propagators never see their decorator's signal.
func strip(inputs realizer.Inputs, source sym.Symbol) realizer.Inputs {
	out := make(realizer.Inputs, len(inputs))
	for s, v := range inputs {
		if s != source {
			out[s] = v
		}
	}
	return out
}
