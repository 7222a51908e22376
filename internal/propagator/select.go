package propagator

import (
	"math/rand"
	"time"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// DefaultSelectionThreshold is the cutoff used by selectors when no explicit
// threshold is configured.
const DefaultSelectionThreshold = 0.85

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// #region threshold
// ThresholdSelector passes through only entries strictly above its cutoff.
// A value exactly at the cutoff is excluded.
type ThresholdSelector struct {
	Sources   sym.Match
	Threshold float64
}

func (p ThresholdSelector) Serves() sym.Kind   { return sym.Terminus }
func (p ThresholdSelector) Expects() sym.Match { return p.Sources }

func (p ThresholdSelector) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	return numdict.Threshold(merged, p.Threshold), nil
}

// #endregion threshold

// #region boltzmann
// BoltzmannSelector thresholds its pooled input, converts the survivors to a
// categorical distribution via a temperature softmax, and draws exactly one
// key. Zero survivors yield an empty selection.
type BoltzmannSelector struct {
	sources     sym.Match
	threshold   float64
	temperature float64
	rng         *rand.Rand
}

// NewBoltzmannSelector returns a selector over sources. A nil rng is seeded
// from the clock; tests inject a fixed-seed rng.
func NewBoltzmannSelector(sources sym.Match, threshold, temperature float64, rng *rand.Rand) *BoltzmannSelector {
	return &BoltzmannSelector{
		sources:     sources,
		threshold:   threshold,
		temperature: temperature,
		rng:         ensureRNG(rng),
	}
}

func (p *BoltzmannSelector) Serves() sym.Kind   { return sym.Terminus }
func (p *BoltzmannSelector) Expects() sym.Match { return p.sources }

func (p *BoltzmannSelector) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	pool := numdict.Threshold(merged, p.threshold)
	if pool.Len() == 0 {
		return numdict.New(), nil
	}
	probs := numdict.Boltzmann(pool, p.temperature)
	return numdict.Draw(probs, 1, p.rng), nil
}

// #endregion boltzmann

// #region action
// ActionSelector runs one Boltzmann draw per command dimension of its control
// interface, over that dimension's declared values, and unions the per-
// dimension winners into one output. Dimensions with no input activation draw
// uniformly over their declared values.
type ActionSelector struct {
	iface       control.Interface
	sources     sym.Match
	temperature float64
	rng         *rand.Rand
}

// NewActionSelector returns a selector drawing over iface's command
// dimensions. A nil rng is seeded from the clock.
func NewActionSelector(iface control.Interface, sources sym.Match, temperature float64, rng *rand.Rand) *ActionSelector {
	return &ActionSelector{
		iface:       iface,
		sources:     sources,
		temperature: temperature,
		rng:         ensureRNG(rng),
	}
}

func (p *ActionSelector) Serves() sym.Kind   { return sym.Terminus }
func (p *ActionSelector) Expects() sym.Match { return p.sources }

func (p *ActionSelector) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}

	byDim := sym.GroupByDims(p.iface.Cmds())
	out := numdict.New()
	for _, dim := range p.iface.CmdDims() {
		pool := numdict.New()
		for _, cmd := range byDim[dim] {
			pool.Set(cmd, merged.Get(cmd))
		}
		if pool.Len() == 0 {
			continue
		}
		probs := numdict.Boltzmann(pool, p.temperature)
		out.MaxMerge(numdict.Draw(probs, 1, p.rng))
	}
	return out, nil
}

// #endregion action
