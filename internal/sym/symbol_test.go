package sym

import "testing"

func TestSymbolEquality(t *testing.T) {
	a := NewFeature("color", "red")
	b := NewFeature("color", "red")
	if a != b {
		t.Fatalf("expected equal symbols, got %v != %v", a, b)
	}

	lagged := NewLagged("color", "red", 1)
	if a == lagged {
		t.Fatal("lag must participate in equality")
	}
	if NewChunk("red") == NewTerminus("red") {
		t.Fatal("kind must participate in equality")
	}
}

func TestSymbolsAsMapKeys(t *testing.T) {
	m := map[Symbol]float64{
		NewFeature("shape", "round"): 0.5,
		NewChunk("apple"):            1.0,
	}
	if m[NewFeature("shape", "round")] != 0.5 {
		t.Fatal("feature key lookup failed")
	}
	if m[NewChunk("apple")] != 1.0 {
		t.Fatal("chunk key lookup failed")
	}
}

func TestDim(t *testing.T) {
	f := NewLagged("wm", "open", 2)
	if f.Dim() != (Dim{Tag: "wm", Lag: 2}) {
		t.Fatalf("unexpected dim: %v", f.Dim())
	}
}

func TestWithLag(t *testing.T) {
	f := NewFeature("color", "red")
	g := WithLag(f, 1)
	if g.Lag != 1 || g.Tag != "color" || g.Val != "red" {
		t.Fatalf("unexpected lagged symbol: %v", g)
	}
	if f.Lag != 0 {
		t.Fatal("WithLag must not mutate its argument")
	}
}

func TestKindMasks(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		mask Kind
		want bool
	}{
		{"feature is node", Feature, Nodes, true},
		{"chunk is node", Chunk, Nodes, true},
		{"flow_tt is horizontal", FlowTT, FlowH, true},
		{"flow_tb is not horizontal", FlowTB, FlowH, false},
		{"buffer is basic", Buffer, Basic, true},
		{"subsystem is container", Subsystem, Container, true},
		{"subsystem is not basic", Subsystem, Basic, false},
	}
	for _, tt := range tests {
		if got := tt.kind&tt.mask != 0; got != tt.want {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if Feature.String() != "feature" {
		t.Fatalf("got %q", Feature.String())
	}
	if s := (Feature | Chunk).String(); s != "feature+chunk" && s != "nodes" {
		// Nodes is a named mask only if registered; joined form is expected.
		if s != "feature+chunk" {
			t.Fatalf("got %q", s)
		}
	}
}

func TestGroupByDims(t *testing.T) {
	fs := []Symbol{
		NewFeature("color", "red"),
		NewFeature("color", "blue"),
		NewFeature("shape", "round"),
		NewLagged("color", "red", 1),
		NewChunk("ignored"),
	}
	groups := GroupByDims(fs)
	if len(groups) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(groups))
	}
	colors := groups[Dim{Tag: "color"}]
	if len(colors) != 2 {
		t.Fatalf("expected 2 color features, got %d", len(colors))
	}
	if colors[0].Val != "blue" || colors[1].Val != "red" {
		t.Fatalf("expected sorted values, got %v", colors)
	}
	if len(groups[Dim{Tag: "color", Lag: 1}]) != 1 {
		t.Fatal("lagged dim must group separately")
	}
}
