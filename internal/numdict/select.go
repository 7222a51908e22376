package numdict

import (
	"math"
	"math/rand"
)

// #region boltzmann
// Boltzmann converts d into a categorical distribution via a softmax with
// temperature t. An empty input yields an empty output; the normalization is
// never attempted over zero candidates.
func Boltzmann(d NumDict, t float64) NumDict {
	out := New()
	if d.Len() == 0 {
		return out
	}
	var denom float64
	keys := d.Keys()
	exps := make([]float64, len(keys))
	for i, k := range keys {
		exps[i] = math.Exp(d.Get(k) / t)
		denom += exps[i]
	}
	for i, k := range keys {
		out.Set(k, exps[i]/denom)
	}
	return out
}

// #endregion boltzmann

// #region draw
// Draw samples up to k keys from d without replacement, weighting by value,
// and returns the selection with every drawn key set to 1.0. If d has k or
// fewer entries the whole key set is returned. rng must not be nil.
func Draw(d NumDict, k int, rng *rand.Rand) NumDict {
	out := New()
	if d.Len() <= k {
		for _, key := range d.Keys() {
			out.Set(key, 1.0)
		}
		return out
	}

	remaining := d.Copy()
	for out.Len() < k {
		keys := remaining.Keys()
		var total float64
		for _, key := range keys {
			total += remaining.Get(key)
		}
		if total <= 0 {
			// All remaining weights zero: fall back to uniform choice.
			choice := keys[rng.Intn(len(keys))]
			out.Set(choice, 1.0)
			remaining.Delete(choice)
			continue
		}
		r := rng.Float64() * total
		var acc float64
		for _, key := range keys {
			acc += remaining.Get(key)
			if r < acc {
				out.Set(key, 1.0)
				remaining.Delete(key)
				break
			}
		}
	}
	return out
}

// #endregion draw
