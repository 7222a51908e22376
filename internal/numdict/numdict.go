// Package numdict implements numerical dictionaries: sparse mappings from
// construct symbols to activation strengths with a total lookup (missing keys
// read as the default, normally 0) and the algebra the propagation engine is
// built on (max-merge, restrict, threshold, re-key, boltzmann, draw).
package numdict

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kibbyd/constructnet/internal/sym"
)

// closeTol is the absolute tolerance used when comparing strengths against
// the default (squeeze) and against each other (IsClose).
const closeTol = 1e-9

// #region numdict
// NumDict is a mutable numerical dictionary. The zero value is not usable;
// construct instances with New or FromMap. Copying the struct aliases the
// underlying map; use Copy for an independent instance.
type NumDict struct {
	m   map[sym.Symbol]float64
	def float64
}

// New returns an empty NumDict with default 0.
func New() NumDict {
	return NumDict{m: make(map[sym.Symbol]float64)}
}

// WithDefault returns an empty NumDict with the given default.
func WithDefault(def float64) NumDict {
	return NumDict{m: make(map[sym.Symbol]float64), def: def}
}

// FromMap returns a NumDict with default 0 holding a copy of data.
func FromMap(data map[sym.Symbol]float64) NumDict {
	m := make(map[sym.Symbol]float64, len(data))
	for k, v := range data {
		m[k] = v
	}
	return NumDict{m: m}
}

// Copy returns an independent copy of d.
func (d NumDict) Copy() NumDict {
	out := NumDict{m: make(map[sym.Symbol]float64, len(d.m)), def: d.def}
	for k, v := range d.m {
		out.m[k] = v
	}
	return out
}

// Default returns d's default value.
func (d NumDict) Default() float64 { return d.def }

// Len returns the number of explicit entries in d.
func (d NumDict) Len() int { return len(d.m) }

// Get returns the strength at k, or the default if k is not explicit.
func (d NumDict) Get(k sym.Symbol) float64 {
	if v, ok := d.m[k]; ok {
		return v
	}
	return d.def
}

// Contains reports whether k is an explicit entry of d. Note that Get may
// return a value even when Contains is false.
func (d NumDict) Contains(k sym.Symbol) bool {
	_, ok := d.m[k]
	return ok
}

// Set assigns the strength at k.
func (d NumDict) Set(k sym.Symbol, v float64) {
	d.m[k] = v
}

// Delete removes the explicit entry at k, if any.
func (d NumDict) Delete(k sym.Symbol) {
	delete(d.m, k)
}

// Clear removes all explicit entries.
func (d NumDict) Clear() {
	for k := range d.m {
		delete(d.m, k)
	}
}

// Keys returns the explicit keys of d in a deterministic order.
func (d NumDict) Keys() []sym.Symbol {
	keys := make([]sym.Symbol, 0, len(d.m))
	for k := range d.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return sym.Less(keys[i], keys[j])
	})
	return keys
}

// Each calls fn for every explicit entry of d in deterministic key order.
func (d NumDict) Each(fn func(k sym.Symbol, v float64)) {
	for _, k := range d.Keys() {
		fn(k, d.m[k])
	}
}

func (d NumDict) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v: %g", k, d.m[k])
	}
	b.WriteString("}")
	return b.String()
}

// #endregion numdict

// #region mutators
// MaxMerge folds other into d, keeping the elementwise maximum over the union
// of keys. This is the canonical write/merge operation for stores and pools.
func (d NumDict) MaxMerge(other NumDict) {
	for k, v := range other.m {
		if cur, ok := d.m[k]; !ok || v > cur {
			d.m[k] = v
		}
	}
}

// Filter drops every explicit entry whose key fails pred.
func (d NumDict) Filter(pred func(sym.Symbol) bool) {
	for k := range d.m {
		if !pred(k) {
			delete(d.m, k)
		}
	}
}

// Squeeze drops explicit entries whose value is within tolerance of the
// default, normalizing outputs so emptiness checks are meaningful.
func (d NumDict) Squeeze() {
	for k, v := range d.m {
		if math.Abs(v-d.def) <= closeTol {
			delete(d.m, k)
		}
	}
}

// #endregion mutators

// #region functional-ops
// Max returns the elementwise maximum over the union of keys of ds. The
// result has default 0.
func Max(ds ...NumDict) NumDict {
	out := New()
	for _, d := range ds {
		out.MaxMerge(d)
	}
	return out
}

// Keep returns a copy of d restricted to keys satisfying pred.
func Keep(d NumDict, pred func(sym.Symbol) bool) NumDict {
	out := WithDefault(d.def)
	for k, v := range d.m {
		if pred(k) {
			out.m[k] = v
		}
	}
	return out
}

// Restrict returns a copy of d restricted to the given key set.
func Restrict(d NumDict, keys map[sym.Symbol]struct{}) NumDict {
	return Keep(d, func(k sym.Symbol) bool {
		_, ok := keys[k]
		return ok
	})
}

// TransformKeys returns a copy of d with every key mapped through fn. If fn
// is not one-to-one, colliding keys keep the maximum strength.
func TransformKeys(d NumDict, fn func(sym.Symbol) sym.Symbol) NumDict {
	out := WithDefault(d.def)
	for k, v := range d.m {
		nk := fn(k)
		if cur, ok := out.m[nk]; !ok || v > cur {
			out.m[nk] = v
		}
	}
	return out
}

// Threshold returns a copy of d keeping only entries with value strictly
// greater than th.
func Threshold(d NumDict, th float64) NumDict {
	out := WithDefault(d.def)
	for k, v := range d.m {
		if v > th {
			out.m[k] = v
		}
	}
	return out
}

// Scale returns a copy of d with every value multiplied by w.
func Scale(d NumDict, w float64) NumDict {
	out := WithDefault(d.def * w)
	for k, v := range d.m {
		out.m[k] = v * w
	}
	return out
}

// ValSum returns the sum of the explicit values of d.
func ValSum(d NumDict) float64 {
	var total float64
	for _, v := range d.m {
		total += v
	}
	return total
}

// MaxByDim returns the maximum strength in d per feature dimension.
// Non-feature keys are ignored.
func MaxByDim(d NumDict) map[sym.Dim]float64 {
	out := make(map[sym.Dim]float64)
	for k, v := range d.m {
		if k.Kind != sym.Feature {
			continue
		}
		dim := k.Dim()
		if cur, ok := out[dim]; !ok || v > cur {
			out[dim] = v
		}
	}
	return out
}

// IsClose reports whether d1 and d2 have identical explicit key sets with
// values equal within tolerance.
func IsClose(d1, d2 NumDict) bool {
	if len(d1.m) != len(d2.m) {
		return false
	}
	for k, v := range d1.m {
		w, ok := d2.m[k]
		if !ok || math.Abs(v-w) > closeTol {
			return false
		}
	}
	return true
}

// #endregion functional-ops
