package gating

import (
	"math"
	"testing"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

func init() {
	warnf = func(string, ...any) {}
}

// recorder max-merges its inputs and keeps what it saw, for both call and
// update, so decorator transparency can be checked.
type recorder struct {
	serves     sym.Kind
	expects    sym.Match
	callSeen   realizer.Inputs
	updateSeen realizer.Inputs
}

func (r *recorder) Serves() sym.Kind   { return r.serves }
func (r *recorder) Expects() sym.Match { return r.expects }

func (r *recorder) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	r.callSeen = inputs
	out := numdict.New()
	for source := range inputs {
		out.MaxMerge(inputs.Strengths(source))
	}
	return out, nil
}

func (r *recorder) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	r.updateSeen = inputs
}

func TestGatedScalesByOwnSymbol(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	gate := sym.NewBuffer("gate")
	client := sym.NewFlow(sym.FlowTT, "assoc")
	other := sym.NewFlow(sym.FlowTT, "other")

	base := &recorder{serves: sym.Flows, expects: sym.MatchSymbols(src)}
	g := Gated{Base: base, Gate: gate}

	key := sym.NewFeature("color", "red")
	inputs := realizer.Inputs{
		src: numdict.FromMap(map[sym.Symbol]float64{key: 0.8}),
		gate: numdict.FromMap(map[sym.Symbol]float64{
			client: 0.5,
			other:  0.0, // a different consumer's weight must not apply
		}),
	}
	out, err := g.Call(client, inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.Get(key); got != 0.4 {
		t.Fatalf("want 0.8*0.5=0.4, got %g", got)
	}
	if _, leaked := base.callSeen[gate]; leaked {
		t.Fatal("gate signal must be stripped before the base sees inputs")
	}
}

func TestGatedDropsNonPositive(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	gate := sym.NewBuffer("gate")
	client := sym.NewFlow(sym.FlowTT, "assoc")

	base := &recorder{serves: sym.Flows, expects: sym.MatchSymbols(src)}
	g := Gated{Base: base, Gate: gate}

	inputs := realizer.Inputs{
		src:  numdict.FromMap(map[sym.Symbol]float64{sym.NewFeature("x", "1"): 0.8}),
		gate: numdict.New(), // weight reads as default 0
	}
	out, err := g.Call(client, inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("zero gate must drop all entries: %v", out)
	}
}

func TestGatedInvTransform(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	gate := sym.NewBuffer("gate")
	client := sym.NewFlow(sym.FlowTT, "assoc")

	base := &recorder{serves: sym.Flows, expects: sym.MatchSymbols(src)}
	g := Gated{Base: base, Gate: gate, Transform: Inv}

	key := sym.NewFeature("x", "1")
	inputs := realizer.Inputs{
		src:  numdict.FromMap(map[sym.Symbol]float64{key: 1.0}),
		gate: numdict.FromMap(map[sym.Symbol]float64{client: 0.25}),
	}
	out, err := g.Call(client, inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.Get(key); got != 0.75 {
		t.Fatalf("inv transform: want 0.75, got %g", got)
	}
}

func TestGatedExpects(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	gate := sym.NewBuffer("gate")
	base := &recorder{serves: sym.Flows, expects: sym.MatchSymbols(src)}
	g := Gated{Base: base, Gate: gate}

	if !g.Expects().Accepts(src) || !g.Expects().Accepts(gate) {
		t.Fatal("decorator must accept both base sources and its gate")
	}
	if g.Serves() != base.Serves() {
		t.Fatal("serves must forward to the base unchanged")
	}
}

func TestFilteredRescalesInputs(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	filter := sym.NewBuffer("filter")
	client := sym.NewFeature("pool", "")

	base := &recorder{serves: sym.Nodes, expects: sym.MatchSymbols(src)}
	f := Filtered{Base: base, Filter: filter, DefaultWeight: 1}

	red := sym.NewFeature("color", "red")
	blue := sym.NewFeature("color", "blue")
	inputs := realizer.Inputs{
		src: numdict.FromMap(map[sym.Symbol]float64{red: 0.8, blue: 0.6}),
		filter: numdict.FromMap(map[sym.Symbol]float64{
			red: 0.5, // blue absent, reads as the default weight
		}),
	}
	out, err := f.Call(client, inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.Get(red); got != 0.4 {
		t.Fatalf("filtered key: want 0.4, got %g", got)
	}
	if got := out.Get(blue); got != 0.6 {
		t.Fatalf("absent key must use the default weight: got %g", got)
	}
}

func TestFilteredInvert(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	filter := sym.NewBuffer("filter")
	base := &recorder{serves: sym.Nodes, expects: sym.MatchSymbols(src)}
	f := Filtered{Base: base, Filter: filter, Invert: true, DefaultWeight: 1}

	red := sym.NewFeature("color", "red")
	inputs := realizer.Inputs{
		src:    numdict.FromMap(map[sym.Symbol]float64{red: 0.8}),
		filter: numdict.FromMap(map[sym.Symbol]float64{red: 0.25}),
	}
	out, err := f.Call(sym.NewFeature("pool", ""), inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.Get(red); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("inverted weight: want 0.8*0.75=0.6, got %g", got)
	}
}

func TestFilteredUpdateSeesFilteredInputs(t *testing.T) {
	src := sym.NewFlow(sym.FlowIn, "src")
	filter := sym.NewBuffer("filter")
	base := &recorder{serves: sym.Nodes, expects: sym.MatchSymbols(src)}
	f := Filtered{Base: base, Filter: filter, DefaultWeight: 1}

	red := sym.NewFeature("color", "red")
	inputs := realizer.Inputs{
		src:    numdict.FromMap(map[sym.Symbol]float64{red: 0.8}),
		filter: numdict.FromMap(map[sym.Symbol]float64{red: 0.5}),
	}
	client := sym.NewFeature("pool", "")
	if _, err := f.Call(client, inputs); err != nil {
		t.Fatalf("call: %v", err)
	}
	f.Update(client, inputs, numdict.New())

	call := realizer.AsStrengths(base.callSeen[src])
	upd := realizer.AsStrengths(base.updateSeen[src])
	if !numdict.IsClose(call, upd) {
		t.Fatalf("update phase must see identically filtered inputs: %v vs %v", call, upd)
	}
	if _, leaked := base.updateSeen[filter]; leaked {
		t.Fatal("filter signal must be stripped in update phase too")
	}
}

func relayFixture(t *testing.T) (*FilteringRelay, sym.Symbol, sym.Symbol, []sym.Symbol) {
	t.Helper()
	ctrl := sym.NewSubsystem("acs")
	term := sym.NewTerminus("gates")
	clients := []sym.Symbol{sym.NewFlow(sym.FlowTT, "assoc")}
	iface := control.Must(control.Config{
		Cmds: []sym.Symbol{
			sym.NewFeature("gate-assoc", "closed"),
			sym.NewFeature("gate-assoc", "half"),
			sym.NewFeature("gate-assoc", "open"),
		},
		Defaults: []sym.Symbol{sym.NewFeature("gate-assoc", "closed")},
	})
	relay, err := NewFilteringRelay(ctrl, term, iface, []RelayDim{{
		Dim:     sym.Dim{Tag: "gate-assoc"},
		Values:  []string{"closed", "half", "open"},
		Clients: clients,
	}})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	return relay, ctrl, term, clients
}

func TestFilteringRelayWeights(t *testing.T) {
	relay, ctrl, term, clients := relayFixture(t)
	decision := realizer.Decision{Strengths: numdict.FromMap(map[sym.Symbol]float64{
		sym.NewFeature("gate-assoc", "half"): 1.0,
	})}
	inputs := realizer.Inputs{ctrl: realizer.SiteMap{term: decision}}

	out, err := relay.Call(sym.NewBuffer("relay"), inputs)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.Get(clients[0]); got != 0.5 {
		t.Fatalf("value index 1 of 3 must emit 0.5, got %g", got)
	}
}

func TestFilteringRelayFirstCycleDefaults(t *testing.T) {
	relay, _, _, clients := relayFixture(t)

	// No controller output yet: parse against empty data, defaults apply.
	out, err := relay.Call(sym.NewBuffer("relay"), realizer.Inputs{})
	if err != nil {
		t.Fatalf("soft-missing controller output must not error: %v", err)
	}
	if got := out.Get(clients[0]); got != 0 {
		t.Fatalf("default value closed must emit weight 0, got %g", got)
	}
}

func TestFilteringRelayAmbiguous(t *testing.T) {
	relay, ctrl, term, _ := relayFixture(t)
	decision := realizer.Decision{Strengths: numdict.FromMap(map[sym.Symbol]float64{
		sym.NewFeature("gate-assoc", "half"): 1.0,
		sym.NewFeature("gate-assoc", "open"): 1.0,
	})}
	inputs := realizer.Inputs{ctrl: realizer.SiteMap{term: decision}}
	if _, err := relay.Call(sym.NewBuffer("relay"), inputs); err == nil {
		t.Fatal("ambiguous command must be a hard error")
	}
}

func TestNewFilteringRelayValidation(t *testing.T) {
	ctrl := sym.NewSubsystem("acs")
	term := sym.NewTerminus("gates")
	iface := control.Must(control.Config{
		Cmds: []sym.Symbol{
			sym.NewFeature("gate-assoc", "closed"),
			sym.NewFeature("gate-assoc", "open"),
		},
		Defaults: []sym.Symbol{sym.NewFeature("gate-assoc", "closed")},
	})

	_, err := NewFilteringRelay(ctrl, term, iface, []RelayDim{{
		Dim:     sym.Dim{Tag: "nope"},
		Values:  []string{"a", "b"},
		Clients: []sym.Symbol{sym.NewFlow(sym.FlowTT, "assoc")},
	}})
	if err == nil {
		t.Fatal("unknown dimension must be rejected")
	}

	_, err = NewFilteringRelay(ctrl, term, iface, []RelayDim{{
		Dim:     sym.Dim{Tag: "gate-assoc"},
		Values:  []string{"closed", "open"},
		Clients: nil,
	}})
	if err == nil {
		t.Fatal("dimension without clients must be rejected")
	}
}
