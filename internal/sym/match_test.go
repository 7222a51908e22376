package sym

import "testing"

func TestMatchKinds(t *testing.T) {
	m := MatchKinds(Nodes)
	if !m.Accepts(NewFeature("color", "red")) {
		t.Fatal("expected feature accepted by node mask")
	}
	if !m.Accepts(NewChunk("apple")) {
		t.Fatal("expected chunk accepted by node mask")
	}
	if m.Accepts(NewBuffer("stimulus")) {
		t.Fatal("buffer must not match node mask")
	}
}

func TestMatchSymbols(t *testing.T) {
	src := NewSubsystem("nacs")
	m := MatchSymbols(src)
	if !m.Accepts(src) {
		t.Fatal("expected listed symbol accepted")
	}
	if m.Accepts(NewSubsystem("acs")) {
		t.Fatal("unlisted symbol must be rejected")
	}
}

func TestMatchFunc(t *testing.T) {
	m := MatchFunc(func(s Symbol) bool { return s.Kind == Feature && s.Lag > 0 })
	if !m.Accepts(NewLagged("color", "red", 1)) {
		t.Fatal("expected lagged feature accepted")
	}
	if m.Accepts(NewFeature("color", "red")) {
		t.Fatal("unlagged feature must be rejected")
	}
}

func TestMatchZeroAcceptsNothing(t *testing.T) {
	var m Match
	if m.Accepts(NewChunk("apple")) || m.Accepts(NewAgent("a")) {
		t.Fatal("zero match must accept nothing")
	}
	if !m.IsEmpty() {
		t.Fatal("zero match must be empty")
	}
}

func TestMatchOr(t *testing.T) {
	gate := NewBuffer("gate")
	m := MatchKinds(Chunk).Or(MatchSymbols(gate))
	if !m.Accepts(NewChunk("apple")) {
		t.Fatal("kind clause lost in Or")
	}
	if !m.Accepts(gate) {
		t.Fatal("symbol clause lost in Or")
	}
	if m.Accepts(NewBuffer("other")) {
		t.Fatal("Or must not widen beyond its operands")
	}

	p1 := MatchFunc(func(s Symbol) bool { return s.Tag == "a" })
	p2 := MatchFunc(func(s Symbol) bool { return s.Tag == "b" })
	both := p1.Or(p2)
	if !both.Accepts(NewChunk("a")) || !both.Accepts(NewChunk("b")) {
		t.Fatal("predicates must compose in Or")
	}
}
