package replay

import (
	"testing"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/gating"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/propagator"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
	"github.com/kibbyd/constructnet/internal/wm"
)

// newControllerSubsystem builds a minimal command subsystem: a feature pool
// fed by agent buffers and a threshold terminus exposing the raised command
// features as this cycle's decision.
func newControllerSubsystem(t *testing.T, name, terminus string) *realizer.Structure {
	t.Helper()
	cycle := realizer.MustCycle(realizer.CycleConfig{
		Serves:   sym.Subsystem,
		Admits:   sym.Basic &^ sym.Buffer,
		Expects:  sym.MatchKinds(sym.Buffer),
		Sequence: []sym.Kind{sym.Feature, sym.Terminus},
		Output:   sym.Terminus,
	})
	sub := realizer.MustStructure(sym.NewSubsystem(name), cycle)
	pool := realizer.MustConstruct(
		sym.NewFeature("pool", ""),
		propagator.MaxNodes{Sources: sym.MatchKinds(sym.Buffer)},
	)
	term := realizer.MustConstruct(
		sym.NewTerminus(terminus),
		propagator.ThresholdSelector{
			Sources:   sym.MatchSymbols(pool.Construct()),
			Threshold: 0.5,
		},
	)
	if err := sub.Add(pool, term); err != nil {
		t.Fatalf("assemble %s: %v", name, err)
	}
	return sub
}

// newGatedFlowSubsystem builds a subsystem holding gated constant flows, one
// per (name, pattern) pair, all gated by the same control buffer.
func newGatedFlowSubsystem(t *testing.T, gate sym.Symbol, flows map[string]numdict.NumDict) *realizer.Structure {
	t.Helper()
	cycle := realizer.MustCycle(realizer.CycleConfig{
		Serves:   sym.Subsystem,
		Admits:   sym.Basic &^ sym.Buffer,
		Expects:  sym.MatchKinds(sym.Buffer),
		Sequence: []sym.Kind{sym.FlowTT},
		Output:   sym.FlowTT,
	})
	sub := realizer.MustStructure(sym.NewSubsystem("nacs"), cycle)
	for name, pattern := range flows {
		flow := realizer.MustConstruct(
			sym.NewFlow(sym.FlowTT, name),
			gating.Gated{Base: propagator.Constants{Pattern: pattern}, Gate: gate},
		)
		if err := sub.Add(flow); err != nil {
			t.Fatalf("add flow %s: %v", name, err)
		}
	}
	return sub
}

func flowOutput(t *testing.T, r StepResult, flow sym.Symbol) numdict.NumDict {
	t.Helper()
	site, ok := r.Output[sym.NewSubsystem("nacs")].(realizer.SiteMap)
	if !ok {
		t.Fatalf("step %d: no nacs output", r.Step)
	}
	return realizer.AsStrengths(site[flow])
}

// A stored gate weight must persist across cycles with no command traffic:
// after one update command sets the weight, standby cycles emit exactly the
// previous cycle's scaled output, not a reset.
func TestGateWeightPersistsUnderStandby(t *testing.T) {
	acs := sym.NewSubsystem("acs")
	decisions := sym.NewTerminus("decisions")
	gatesBuf := sym.NewBuffer("gates")
	weight := sym.NewFeature("gate-assoc", "")
	flow := sym.NewFlow(sym.FlowTT, "assoc")
	fact := sym.NewChunk("fact")

	gates, err := wm.NewParamSet(wm.ParamSetConfig{
		Name:       "gates",
		Controller: acs,
		Terminus:   decisions,
		Params:     []sym.Symbol{weight},
		Clients:    map[sym.Symbol]sym.Symbol{weight: flow},
	})
	if err != nil {
		t.Fatalf("param set: %v", err)
	}

	stim := propagator.NewStimulus()
	agent := realizer.MustStructure(sym.NewAgent("demo"), realizer.AgentCycle())
	err = agent.Add(
		realizer.MustConstruct(sym.NewBuffer("cmds"), stim),
		realizer.MustConstruct(gatesBuf, gates),
		newControllerSubsystem(t, "acs", "decisions"),
		newGatedFlowSubsystem(t, gatesBuf, map[string]numdict.NumDict{
			"assoc": numdict.FromMap(map[sym.Symbol]float64{fact: 1.0}),
		}),
	)
	if err != nil {
		t.Fatalf("assemble agent: %v", err)
	}
	if err := agent.ValidateOrder(); err != nil {
		t.Fatalf("validate order: %v", err)
	}

	h := NewHarness(agent, stim)
	results, err := h.Run([]FixtureFrame{
		{Label: "issue update", Stimulus: []FixtureFeature{
			{Tag: "gates-w", Val: "update", Strength: 1.0},
			{Tag: "gate-assoc", Val: "", Strength: 0.7},
		}},
		{Label: "command lands"},
		{Label: "standby"},
		{Label: "standby"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Step 0: the command is still in flight, the gate reads zero.
	if got := flowOutput(t, results[0], flow); got.Len() != 0 {
		t.Fatalf("gate must be closed before the command lands: %v", got)
	}
	// Step 1: the update command from step 0's decision sets the weight.
	if got := flowOutput(t, results[1], flow).Get(fact); got != 0.7 {
		t.Fatalf("gated flow must scale by the stored weight: %g", got)
	}
	// Steps 2 and 3: no command issued, the weight persists unchanged.
	for _, r := range results[2:] {
		if got := flowOutput(t, r, flow).Get(fact); got != 0.7 {
			t.Fatalf("step %d: standby must preserve the gate weight, got %g", r.Step, got)
		}
	}
}

// Two control dimensions bound to two distinct gates: opening only dimension
// A's gate must pass only A's flow, even though both base propagators
// compute nonzero raw output.
func TestTwoDimensionGatingIndependence(t *testing.T) {
	acs := sym.NewSubsystem("acs")
	decisions := sym.NewTerminus("decisions")
	relayBuf := sym.NewBuffer("relay")
	flowA := sym.NewFlow(sym.FlowTT, "a")
	flowB := sym.NewFlow(sym.FlowTT, "b")
	factA := sym.NewChunk("fact-a")
	factB := sym.NewChunk("fact-b")

	iface := control.Must(control.Config{
		Cmds: []sym.Symbol{
			sym.NewFeature("gate-a", "closed"),
			sym.NewFeature("gate-a", "open"),
			sym.NewFeature("gate-b", "closed"),
			sym.NewFeature("gate-b", "open"),
		},
		Defaults: []sym.Symbol{
			sym.NewFeature("gate-a", "closed"),
			sym.NewFeature("gate-b", "closed"),
		},
	})
	relay, err := gating.NewFilteringRelay(acs, decisions, iface, []gating.RelayDim{
		{Dim: sym.Dim{Tag: "gate-a"}, Values: []string{"closed", "open"}, Clients: []sym.Symbol{flowA}},
		{Dim: sym.Dim{Tag: "gate-b"}, Values: []string{"closed", "open"}, Clients: []sym.Symbol{flowB}},
	})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	stim := propagator.NewStimulus()
	agent := realizer.MustStructure(sym.NewAgent("demo"), realizer.AgentCycle())
	err = agent.Add(
		realizer.MustConstruct(sym.NewBuffer("cmds"), stim),
		realizer.MustConstruct(relayBuf, relay),
		newControllerSubsystem(t, "acs", "decisions"),
		newGatedFlowSubsystem(t, relayBuf, map[string]numdict.NumDict{
			"a": numdict.FromMap(map[sym.Symbol]float64{factA: 1.0}),
			"b": numdict.FromMap(map[sym.Symbol]float64{factB: 1.0}),
		}),
	)
	if err != nil {
		t.Fatalf("assemble agent: %v", err)
	}

	h := NewHarness(agent, stim)
	results, err := h.Run([]FixtureFrame{
		{Label: "open gate a", Stimulus: []FixtureFeature{
			{Tag: "gate-a", Val: "open", Strength: 1.0},
		}},
		{Label: "command lands"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := flowOutput(t, results[1], flowA).Get(factA); got != 1.0 {
		t.Fatalf("dimension A's client must pass at full weight: %g", got)
	}
	if got := flowOutput(t, results[1], flowB); got.Len() != 0 {
		t.Fatalf("dimension B's client must stay closed: %v", got)
	}
}
