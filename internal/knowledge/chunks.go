// Package knowledge implements the shared knowledge databases: chunk forms
// binding top-level chunks to weighted feature sets, and associative rules
// linking chunks to chunks. Flow propagators read these stores every cycle;
// mutation happens only through updater hooks, never during propagation.
package knowledge

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region form
// Form is a chunk's dimensional shape: the features it binds and one weight
// per feature dimension.
type Form struct {
	Features []sym.Symbol
	Weights  map[sym.Dim]float64
}

// dims returns the form's dimensions in sorted order.
func (f Form) dims() []sym.Dim {
	out := make([]sym.Dim, 0, len(f.Weights))
	for d := range f.Weights {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Lag < out[j].Lag
	})
	return out
}

// #endregion form

// #region chunks
// Chunks is the chunk database. The zero value is not usable; construct with
// NewChunks.
type Chunks struct {
	forms map[sym.Symbol]Form
}

// NewChunks returns an empty chunk database.
func NewChunks() *Chunks {
	return &Chunks{forms: make(map[sym.Symbol]Form)}
}

// Link binds ch to features, replacing any existing form. A nil weights map
// assigns weight 1 to every feature dimension; explicit weights must cover
// only dimensions actually present among the features.
func (c *Chunks) Link(ch sym.Symbol, features []sym.Symbol, weights map[sym.Dim]float64) error {
	if ch.Kind != sym.Chunk {
		return fmt.Errorf("knowledge: %v is not a chunk", ch)
	}
	if len(features) == 0 {
		return fmt.Errorf("knowledge: chunk %v needs at least one feature", ch)
	}
	dims := make(map[sym.Dim]struct{})
	for _, f := range features {
		if f.Kind != sym.Feature {
			return fmt.Errorf("knowledge: chunk %v form contains non-feature %v", ch, f)
		}
		dims[f.Dim()] = struct{}{}
	}

	w := make(map[sym.Dim]float64, len(dims))
	for d := range dims {
		w[d] = 1
	}
	for d, v := range weights {
		if _, ok := dims[d]; !ok {
			return fmt.Errorf("knowledge: chunk %v has weight for absent dimension %v", ch, d)
		}
		w[d] = v
	}

	fs := make([]sym.Symbol, len(features))
	copy(fs, features)
	sort.Slice(fs, func(i, j int) bool { return sym.Less(fs[i], fs[j]) })
	c.forms[ch] = Form{Features: fs, Weights: w}
	return nil
}

// Form returns the form bound to ch.
func (c *Chunks) Form(ch sym.Symbol) (Form, bool) {
	f, ok := c.forms[ch]
	return f, ok
}

// Remove deletes ch's form, if any.
func (c *Chunks) Remove(ch sym.Symbol) {
	delete(c.forms, ch)
}

// Len returns the number of chunks in the database.
func (c *Chunks) Len() int { return len(c.forms) }

// Symbols returns the chunk symbols in sorted order.
func (c *Chunks) Symbols() []sym.Symbol {
	out := make([]sym.Symbol, 0, len(c.forms))
	for ch := range c.forms {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return sym.Less(out[i], out[j]) })
	return out
}

// Each calls fn for every (chunk, form) pair in sorted chunk order.
func (c *Chunks) Each(fn func(ch sym.Symbol, form Form)) {
	for _, ch := range c.Symbols() {
		fn(ch, c.forms[ch])
	}
}

// #endregion chunks

// #region topdown
// TopDown broadcasts chunk strengths to the features of their forms: each
// feature receives the chunk's strength scaled by its dimension weight,
// max-merged across chunks.
type TopDown struct {
	Chunks  *Chunks
	Sources sym.Match
}

func (p TopDown) Serves() sym.Kind   { return sym.FlowTB }
func (p TopDown) Expects() sym.Match { return p.Sources }

func (p TopDown) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	out := numdict.New()
	p.Chunks.Each(func(ch sym.Symbol, form Form) {
		s := merged.Get(ch)
		if s == 0 {
			return
		}
		for _, f := range form.Features {
			v := s * form.Weights[f.Dim()]
			if cur := out.Get(f); v > cur || !out.Contains(f) {
				out.Set(f, v)
			}
		}
	})
	return out, nil
}

// #endregion topdown

// #region bottomup
// BottomUp activates chunks from features: a chunk's strength is the
// weighted average, over its form's dimensions, of the maximum input
// strength among that dimension's features.
type BottomUp struct {
	Chunks  *Chunks
	Sources sym.Match
}

func (p BottomUp) Serves() sym.Kind   { return sym.FlowBT }
func (p BottomUp) Expects() sym.Match { return p.Sources }

func (p BottomUp) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	out := numdict.New()
	p.Chunks.Each(func(ch sym.Symbol, form Form) {
		byDim := make(map[sym.Dim]float64)
		for _, f := range form.Features {
			if v := merged.Get(f); v > byDim[f.Dim()] {
				byDim[f.Dim()] = v
			}
		}
		var num, den float64
		for _, d := range form.dims() {
			w := form.Weights[d]
			num += w * byDim[d]
			if w < 0 {
				den -= w
			} else {
				den += w
			}
		}
		if den > 0 {
			out.Set(ch, num/den)
		}
	})
	return out, nil
}

// #endregion bottomup
