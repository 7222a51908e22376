package sym

// #region match
// Match is an acceptance predicate over candidate source symbols. It is a
// closed union of three clauses — a kind mask, an explicit symbol set, and a
// custom predicate — evaluated through one entry point. A symbol is accepted
// if any clause accepts it. The zero Match accepts nothing.
type Match struct {
	Kinds   Kind
	Symbols map[Symbol]struct{}
	Pred    func(Symbol) bool
}

// Accepts reports whether s satisfies any clause of m.
func (m Match) Accepts(s Symbol) bool {
	if s.Kind&m.Kinds != 0 {
		return true
	}
	if _, ok := m.Symbols[s]; ok {
		return true
	}
	if m.Pred != nil && m.Pred(s) {
		return true
	}
	return false
}

// IsEmpty reports whether m can never accept a symbol via its kind or symbol
// clauses. A non-nil Pred is treated as potentially accepting.
func (m Match) IsEmpty() bool {
	return m.Kinds == Nil && len(m.Symbols) == 0 && m.Pred == nil
}

// Or returns a match accepting anything accepted by m or other. Predicates
// are composed; symbol sets are merged.
func (m Match) Or(other Match) Match {
	out := Match{Kinds: m.Kinds | other.Kinds}
	if len(m.Symbols)+len(other.Symbols) > 0 {
		out.Symbols = make(map[Symbol]struct{}, len(m.Symbols)+len(other.Symbols))
		for s := range m.Symbols {
			out.Symbols[s] = struct{}{}
		}
		for s := range other.Symbols {
			out.Symbols[s] = struct{}{}
		}
	}
	switch {
	case m.Pred != nil && other.Pred != nil:
		mp, op := m.Pred, other.Pred
		out.Pred = func(s Symbol) bool { return mp(s) || op(s) }
	case m.Pred != nil:
		out.Pred = m.Pred
	case other.Pred != nil:
		out.Pred = other.Pred
	}
	return out
}

// #endregion match

// #region match-constructors
// MatchKinds returns a match accepting any symbol whose kind intersects mask.
func MatchKinds(mask Kind) Match {
	return Match{Kinds: mask}
}

// MatchSymbols returns a match accepting exactly the given symbols.
func MatchSymbols(symbols ...Symbol) Match {
	set := make(map[Symbol]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return Match{Symbols: set}
}

// MatchFunc returns a match delegating to pred.
func MatchFunc(pred func(Symbol) bool) Match {
	return Match{Pred: pred}
}

// #endregion match-constructors
