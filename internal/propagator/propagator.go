// Package propagator provides the standard activation propagators: node
// pooling, repetition, lagging, constant and single-shot stimulus emission,
// and the selection propagators driving termini.
package propagator

import (
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region maxnodes
// MaxNodes pools node activations: the elementwise maximum over all inputs,
// restricted to keys of the owning pool's own node kind. The restriction
// keeps a feature pool from picking up chunk symbols arriving on a shared
// channel, and vice versa.
type MaxNodes struct {
	Sources sym.Match
}

func (p MaxNodes) Serves() sym.Kind   { return sym.Nodes }
func (p MaxNodes) Expects() sym.Match { return p.Sources }

func (p MaxNodes) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	out := numdict.New()
	for source := range inputs {
		out.MaxMerge(inputs.Strengths(source))
	}
	out.Filter(func(k sym.Symbol) bool { return k.Kind == client.Kind })
	return out, nil
}

// #endregion maxnodes

// #region repeater
// Repeater copies one named source's last output unchanged. Used to re-inject
// a buffer's content into a later pipeline stage.
type Repeater struct {
	Source sym.Symbol
}

func (p Repeater) Serves() sym.Kind   { return sym.Buffer | sym.Flows }
func (p Repeater) Expects() sym.Match { return sym.MatchSymbols(p.Source) }

func (p Repeater) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	return inputs.Strengths(p.Source).Copy(), nil
}

// #endregion repeater

// #region lag
// Lag re-keys every incoming feature with its lag counter incremented by one,
// dropping features whose new lag would exceed MaxLag. Downstream stages see
// "what was true last step" without a cycle forming in the graph.
type Lag struct {
	Sources sym.Match
	MaxLag  int
}

func (p Lag) Serves() sym.Kind   { return sym.Flows }
func (p Lag) Expects() sym.Match { return p.Sources }

func (p Lag) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	out := numdict.TransformKeys(merged, func(k sym.Symbol) sym.Symbol {
		return sym.WithLag(k, k.Lag+1)
	})
	out.Filter(func(k sym.Symbol) bool {
		return k.Kind == sym.Feature && k.Lag <= p.MaxLag
	})
	return out, nil
}

// #endregion lag

// #region constants
// Constants emits a fixed activation pattern every cycle, ignoring inputs.
type Constants struct {
	Pattern numdict.NumDict
}

func (p Constants) Serves() sym.Kind   { return sym.Buffer | sym.Flows }
func (p Constants) Expects() sym.Match { return sym.Match{} }

func (p Constants) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	return p.Pattern.Copy(), nil
}

// #endregion constants

// #region stimulus
// Stimulus models a single-shot environmental cue: data staged with Input
// between cycles is emitted on exactly one propagation, then the buffer
// reverts to empty until the next Input call.
type Stimulus struct {
	staged numdict.NumDict
	armed  bool
}

// NewStimulus returns an empty stimulus buffer.
func NewStimulus() *Stimulus {
	return &Stimulus{staged: numdict.New()}
}

// Input stages data for the next propagation, replacing anything already
// staged. Call between cycles.
func (p *Stimulus) Input(data numdict.NumDict) {
	p.staged = data.Copy()
	p.armed = true
}

func (p *Stimulus) Serves() sym.Kind   { return sym.Buffer }
func (p *Stimulus) Expects() sym.Match { return sym.Match{} }

func (p *Stimulus) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	if !p.armed {
		return numdict.New(), nil
	}
	out := p.staged
	p.staged = numdict.New()
	p.armed = false
	return out, nil
}

// #endregion stimulus
