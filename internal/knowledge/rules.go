package knowledge

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region rules
// Rule is one associative rule: condition chunks with weights supporting a
// conclusion chunk.
type Rule struct {
	Conclusion sym.Symbol
	Conditions map[sym.Symbol]float64
}

// strength evaluates the rule against chunk strengths.
func (r Rule) strength(chunks numdict.NumDict) float64 {
	var total float64
	for cond, w := range r.Conditions {
		total += w * chunks.Get(cond)
	}
	return total
}

// Rules is the associative rule database. The zero value is not usable;
// construct with NewRules.
type Rules struct {
	rules []Rule
}

// NewRules returns an empty rule database.
func NewRules() *Rules {
	return &Rules{}
}

// Define appends a rule concluding in conclusion from the weighted condition
// chunks.
func (r *Rules) Define(conclusion sym.Symbol, conditions map[sym.Symbol]float64) error {
	if conclusion.Kind != sym.Chunk {
		return fmt.Errorf("knowledge: rule conclusion %v is not a chunk", conclusion)
	}
	if len(conditions) == 0 {
		return fmt.Errorf("knowledge: rule for %v has no conditions", conclusion)
	}
	conds := make(map[sym.Symbol]float64, len(conditions))
	for cond, w := range conditions {
		if cond.Kind != sym.Chunk {
			return fmt.Errorf("knowledge: rule condition %v is not a chunk", cond)
		}
		conds[cond] = w
	}
	r.rules = append(r.rules, Rule{Conclusion: conclusion, Conditions: conds})
	return nil
}

// Len returns the number of rules.
func (r *Rules) Len() int { return len(r.rules) }

// Each calls fn for every rule in definition order.
func (r *Rules) Each(fn func(rule Rule)) {
	for _, rule := range r.rules {
		fn(rule)
	}
}

// conditionSymbols returns the sorted condition chunks of rule, for
// deterministic serialization.
func conditionSymbols(rule Rule) []sym.Symbol {
	out := make([]sym.Symbol, 0, len(rule.Conditions))
	for cond := range rule.Conditions {
		out = append(out, cond)
	}
	sort.Slice(out, func(i, j int) bool { return sym.Less(out[i], out[j]) })
	return out
}

// #endregion rules

// #region associative
// AssociativeRules applies the rule database to chunk strengths: each rule
// contributes its weighted condition sum to its conclusion, and conclusions
// backed by several rules keep the strongest contribution.
type AssociativeRules struct {
	Rules   *Rules
	Sources sym.Match
}

func (p AssociativeRules) Serves() sym.Kind   { return sym.FlowTT }
func (p AssociativeRules) Expects() sym.Match { return p.Sources }

func (p AssociativeRules) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	merged := numdict.New()
	for source := range inputs {
		merged.MaxMerge(inputs.Strengths(source))
	}
	out := numdict.New()
	p.Rules.Each(func(rule Rule) {
		s := rule.strength(merged)
		if !out.Contains(rule.Conclusion) || s > out.Get(rule.Conclusion) {
			out.Set(rule.Conclusion, s)
		}
	})
	return out, nil
}

// #endregion associative
