package numdict

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kibbyd/constructnet/internal/sym"
)

func TestGetDefault(t *testing.T) {
	d := New()
	if d.Get(sym.NewChunk("missing")) != 0 {
		t.Fatal("missing key must read as default 0")
	}
	if d.Contains(sym.NewChunk("missing")) {
		t.Fatal("reading a missing key must not add it")
	}

	w := WithDefault(0.5)
	if w.Get(sym.NewChunk("missing")) != 0.5 {
		t.Fatal("missing key must read as configured default")
	}
}

func TestMaxMerge(t *testing.T) {
	a := FromMap(map[sym.Symbol]float64{
		sym.NewChunk("x"): 0.3,
		sym.NewChunk("y"): 0.9,
	})
	b := FromMap(map[sym.Symbol]float64{
		sym.NewChunk("x"): 0.7,
		sym.NewChunk("z"): 0.2,
	})
	a.MaxMerge(b)

	if got := a.Get(sym.NewChunk("x")); got != 0.7 {
		t.Fatalf("x: got %g want 0.7", got)
	}
	if got := a.Get(sym.NewChunk("y")); got != 0.9 {
		t.Fatalf("y: got %g want 0.9", got)
	}
	if got := a.Get(sym.NewChunk("z")); got != 0.2 {
		t.Fatalf("z: got %g want 0.2", got)
	}
}

func TestMaxFunctional(t *testing.T) {
	a := FromMap(map[sym.Symbol]float64{sym.NewChunk("x"): 0.3})
	b := FromMap(map[sym.Symbol]float64{sym.NewChunk("x"): 0.1})
	out := Max(a, b)
	if got := out.Get(sym.NewChunk("x")); got != 0.3 {
		t.Fatalf("got %g want 0.3", got)
	}
	// Key present in only one operand keeps that operand's value.
	c := FromMap(map[sym.Symbol]float64{sym.NewChunk("solo"): 0.4})
	out = Max(a, c)
	if got := out.Get(sym.NewChunk("solo")); got != 0.4 {
		t.Fatalf("got %g want 0.4", got)
	}
}

func TestThresholdStrict(t *testing.T) {
	at := sym.NewChunk("at")
	above := sym.NewChunk("above")
	d := FromMap(map[sym.Symbol]float64{
		at:    0.85,
		above: 0.85 + 1e-6,
	})
	out := Threshold(d, 0.85)
	if out.Contains(at) {
		t.Fatal("value equal to threshold must be excluded")
	}
	if !out.Contains(above) {
		t.Fatal("value above threshold must be included")
	}
}

func TestTransformKeys(t *testing.T) {
	d := FromMap(map[sym.Symbol]float64{
		sym.NewFeature("color", "red"): 0.6,
	})
	out := TransformKeys(d, func(s sym.Symbol) sym.Symbol {
		return sym.WithLag(s, s.Lag+1)
	})
	if got := out.Get(sym.NewLagged("color", "red", 1)); got != 0.6 {
		t.Fatalf("got %g want 0.6", got)
	}
	if out.Contains(sym.NewFeature("color", "red")) {
		t.Fatal("original key must be gone after re-keying")
	}
}

func TestSqueeze(t *testing.T) {
	d := FromMap(map[sym.Symbol]float64{
		sym.NewChunk("zero"): 0.0,
		sym.NewChunk("live"): 0.4,
	})
	d.Squeeze()
	if d.Contains(sym.NewChunk("zero")) {
		t.Fatal("default-valued entry must be squeezed out")
	}
	if !d.Contains(sym.NewChunk("live")) {
		t.Fatal("non-default entry must survive squeeze")
	}
}

func TestMaxByDim(t *testing.T) {
	d := FromMap(map[sym.Symbol]float64{
		sym.NewFeature("color", "red"):  0.3,
		sym.NewFeature("color", "blue"): 0.8,
		sym.NewFeature("shape", "flat"): 0.5,
		sym.NewChunk("skip"):            1.0,
	})
	byDim := MaxByDim(d)
	if byDim[sym.Dim{Tag: "color"}] != 0.8 {
		t.Fatalf("color: got %g", byDim[sym.Dim{Tag: "color"}])
	}
	if byDim[sym.Dim{Tag: "shape"}] != 0.5 {
		t.Fatalf("shape: got %g", byDim[sym.Dim{Tag: "shape"}])
	}
	if len(byDim) != 2 {
		t.Fatalf("chunks must be ignored, got %d dims", len(byDim))
	}
}

func TestBoltzmannDistribution(t *testing.T) {
	d := FromMap(map[sym.Symbol]float64{
		sym.NewChunk("a"): 1.0,
		sym.NewChunk("b"): 1.0,
	})
	probs := Boltzmann(d, 0.5)
	sum := ValSum(probs)
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("probabilities must sum to 1, got %g", sum)
	}
	pa := probs.Get(sym.NewChunk("a"))
	pb := probs.Get(sym.NewChunk("b"))
	if math.Abs(pa-pb) > 1e-9 {
		t.Fatalf("equal strengths must get equal mass: %g vs %g", pa, pb)
	}
}

func TestBoltzmannEmpty(t *testing.T) {
	probs := Boltzmann(New(), 0.1)
	if probs.Len() != 0 {
		t.Fatal("boltzmann over zero candidates must be empty")
	}
}

func TestDrawSingleCandidate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := FromMap(map[sym.Symbol]float64{sym.NewChunk("only"): 0.4})
	for i := 0; i < 20; i++ {
		out := Draw(d, 1, rng)
		if out.Len() != 1 || out.Get(sym.NewChunk("only")) != 1.0 {
			t.Fatal("single candidate must always be drawn")
		}
	}
}

func TestDrawWithoutReplacement(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := FromMap(map[sym.Symbol]float64{
		sym.NewChunk("a"): 0.5,
		sym.NewChunk("b"): 0.5,
		sym.NewChunk("c"): 0.5,
	})
	out := Draw(d, 2, rng)
	if out.Len() != 2 {
		t.Fatalf("expected 2 drawn, got %d", out.Len())
	}
	out.Each(func(k sym.Symbol, v float64) {
		if v != 1.0 {
			t.Fatalf("drawn key %v must carry value 1.0, got %g", k, v)
		}
	})
}

func TestCopyIndependence(t *testing.T) {
	a := FromMap(map[sym.Symbol]float64{sym.NewChunk("x"): 1.0})
	b := a.Copy()
	b.Set(sym.NewChunk("x"), 0.0)
	if a.Get(sym.NewChunk("x")) != 1.0 {
		t.Fatal("copy must not alias the original")
	}
}
