// Command agentsim assembles a demo agent and steps it, either interactively
// from stdin or from a scripted frame file. The agent couples a single-shot
// stimulus buffer, a command subsystem, a retrieval subsystem backed by the
// knowledge database, a working-memory buffer, and a gate relay.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/gating"
	"github.com/kibbyd/constructnet/internal/knowledge"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/propagator"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/replay"
	"github.com/kibbyd/constructnet/internal/sym"
	"github.com/kibbyd/constructnet/internal/trace"
	"github.com/kibbyd/constructnet/internal/wm"
)

// #region main
func main() {
	knowledgePath := flag.String("knowledge", envOr("CONSTRUCTNET_DB", "knowledge.db"), "path to the knowledge database")
	tracePath := flag.String("trace", "", "record steps to a trace database")
	framesPath := flag.String("frames", "", "run scripted frames instead of interactive mode")
	seed := flag.Int64("seed", 0, "rng seed for retrieval selection (0 = nondeterministic)")
	threshold := flag.Float64("threshold", 0.5, "retrieval selection cutoff")
	temperature := flag.Float64("temperature", 0.1, "retrieval softmax temperature")
	flag.Parse()

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	}

	chunks, rules, err := loadKnowledge(*knowledgePath)
	if err != nil {
		log.Fatalf("load knowledge: %v", err)
	}

	agent, stim, err := buildAgent(chunks, rules, *threshold, *temperature, rng)
	if err != nil {
		log.Fatalf("assemble agent: %v", err)
	}
	if err := agent.ValidateOrder(); err != nil {
		log.Fatalf("validate order: %v", err)
	}

	h := replay.NewHarness(agent, stim)
	if *tracePath != "" {
		store, err := trace.Open(*tracePath)
		if err != nil {
			log.Fatalf("open trace db: %v", err)
		}
		defer store.Close()
		runID, err := store.BeginRun("demo", *framesPath)
		if err != nil {
			log.Fatalf("begin run: %v", err)
		}
		h.Record(store, runID)
		fmt.Printf("recording run %s\n", runID)
	}

	if *framesPath != "" {
		runScripted(h, *framesPath)
		return
	}
	runInteractive(h)
}

// #endregion main

// #region knowledge
// loadKnowledge reads the chunk and rule stores, falling back to a small
// built-in set when the database is empty.
func loadKnowledge(path string) (*knowledge.Chunks, *knowledge.Rules, error) {
	db, err := knowledge.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	chunks, err := db.LoadChunks()
	if err != nil {
		return nil, nil, err
	}
	rules, err := db.LoadRules()
	if err != nil {
		return nil, nil, err
	}
	if chunks.Len() > 0 {
		return chunks, rules, nil
	}

	log.Println("knowledge database is empty, using the built-in demo set")
	chunks = knowledge.NewChunks()
	seed := map[string][]sym.Symbol{
		"apple": {
			sym.NewFeature("color", "red"),
			sym.NewFeature("shape", "round"),
			sym.NewFeature("taste", "sweet"),
		},
		"lemon": {
			sym.NewFeature("color", "yellow"),
			sym.NewFeature("shape", "oblong"),
			sym.NewFeature("taste", "sour"),
		},
	}
	for name, features := range seed {
		if err := chunks.Link(sym.NewChunk(name), features, nil); err != nil {
			return nil, nil, err
		}
	}
	rules = knowledge.NewRules()
	err = rules.Define(sym.NewChunk("fruit"), map[sym.Symbol]float64{
		sym.NewChunk("apple"): 0.5,
		sym.NewChunk("lemon"): 0.5,
	})
	if err != nil {
		return nil, nil, err
	}
	return chunks, rules, nil
}

// #endregion knowledge

// #region assembly
// Construct symbols shared across the assembly.
var (
	acsSym       = sym.NewSubsystem("acs")
	nacsSym      = sym.NewSubsystem("nacs")
	decisionsSym = sym.NewTerminus("decisions")
	retrievalSym = sym.NewTerminus("retrieval")
	stimulusSym  = sym.NewBuffer("stimulus")
	wmSym        = sym.NewBuffer("wm")
	relaySym     = sym.NewBuffer("gates")
	assocSym     = sym.NewFlow(sym.FlowTT, "assoc")
)

// buildAgent wires the full demo agent.
func buildAgent(chunks *knowledge.Chunks, rules *knowledge.Rules, threshold, temperature float64, rng *rand.Rand) (*realizer.Structure, *propagator.Stimulus, error) {
	stim := propagator.NewStimulus()

	memory, err := wm.NewWorkingMemory(wm.WorkingMemoryConfig{
		Name:       "wm",
		Slots:      2,
		Controller: acsSym,
		Terminus:   decisionsSym,
		Channels:   map[string]wm.Source{"retrieval": {Subsystem: nacsSym, Terminus: retrievalSym}},
	})
	if err != nil {
		return nil, nil, err
	}

	gateIface := control.Must(control.Config{
		Cmds: []sym.Symbol{
			sym.NewFeature("gate-assoc", "closed"),
			sym.NewFeature("gate-assoc", "half"),
			sym.NewFeature("gate-assoc", "open"),
		},
		Defaults: []sym.Symbol{sym.NewFeature("gate-assoc", "open")},
	})
	relay, err := gating.NewFilteringRelay(acsSym, decisionsSym, gateIface, []gating.RelayDim{{
		Dim:     sym.Dim{Tag: "gate-assoc"},
		Values:  []string{"closed", "half", "open"},
		Clients: []sym.Symbol{assocSym},
	}})
	if err != nil {
		return nil, nil, err
	}

	acs, err := buildACS()
	if err != nil {
		return nil, nil, err
	}
	nacs, err := buildNACS(chunks, rules, threshold, temperature, rng)
	if err != nil {
		return nil, nil, err
	}

	agent := realizer.MustStructure(sym.NewAgent("demo"), realizer.AgentCycle())
	err = agent.Add(
		realizer.MustConstruct(stimulusSym, stim),
		realizer.MustConstruct(wmSym, memory),
		realizer.MustConstruct(relaySym, relay),
		acs, nacs,
	)
	if err != nil {
		return nil, nil, err
	}
	return agent, stim, nil
}

// buildACS builds the command subsystem: raised command features pass a
// threshold terminus and become the next cycle's parsed commands.
func buildACS() (*realizer.Structure, error) {
	sub, err := realizer.NewStructure(acsSym, realizer.MustCycle(realizer.CycleConfig{
		Serves:   sym.Subsystem,
		Admits:   sym.Basic &^ sym.Buffer,
		Expects:  sym.MatchKinds(sym.Buffer),
		Sequence: []sym.Kind{sym.Feature, sym.Terminus},
		Output:   sym.Terminus,
	}))
	if err != nil {
		return nil, err
	}
	pool := realizer.MustConstruct(
		sym.NewFeature("pool", ""),
		propagator.MaxNodes{Sources: sym.MatchKinds(sym.Buffer)},
	)
	term := realizer.MustConstruct(
		decisionsSym,
		propagator.ThresholdSelector{
			Sources:   sym.MatchSymbols(pool.Construct()),
			Threshold: 0.5,
		},
	)
	if err := sub.Add(pool, term); err != nil {
		return nil, err
	}
	return sub, nil
}

// buildNACS builds the retrieval subsystem over the knowledge stores.
func buildNACS(chunks *knowledge.Chunks, rules *knowledge.Rules, threshold, temperature float64, rng *rand.Rand) (*realizer.Structure, error) {
	sub, err := realizer.NewStructure(nacsSym, realizer.NACSCycle())
	if err != nil {
		return nil, err
	}

	senses := realizer.MustConstruct(
		sym.NewFlow(sym.FlowIn, "senses"),
		propagator.Repeater{Source: stimulusSym},
	)
	wmRelay := realizer.MustConstruct(
		sym.NewFlow(sym.FlowIn, "wm-relay"),
		propagator.Repeater{Source: wmSym},
	)
	features := realizer.MustConstruct(
		sym.NewFeature("pool", ""),
		propagator.MaxNodes{Sources: sym.MatchKinds(sym.FlowIn | sym.FlowTB)},
	)
	chunkPool := realizer.MustConstruct(
		sym.NewChunk("pool"),
		propagator.MaxNodes{Sources: sym.MatchKinds(sym.FlowIn | sym.FlowBT | sym.FlowTT)},
	)
	topDown := realizer.MustConstruct(
		sym.NewFlow(sym.FlowTB, "top-down"),
		knowledge.TopDown{Chunks: chunks, Sources: sym.MatchSymbols(chunkPool.Construct())},
	)
	bottomUp := realizer.MustConstruct(
		sym.NewFlow(sym.FlowBT, "bottom-up"),
		knowledge.BottomUp{Chunks: chunks, Sources: sym.MatchSymbols(features.Construct())},
	)
	assoc := realizer.MustConstruct(
		assocSym,
		gating.Gated{
			Base: knowledge.AssociativeRules{
				Rules:   rules,
				Sources: sym.MatchSymbols(chunkPool.Construct()),
			},
			Gate: relaySym,
		},
	)
	retrieval := realizer.MustConstruct(
		retrievalSym,
		propagator.NewBoltzmannSelector(
			sym.MatchSymbols(chunkPool.Construct()), threshold, temperature, rng,
		),
	)
	if err := sub.Add(senses, wmRelay, features, chunkPool, topDown, bottomUp, assoc, retrieval); err != nil {
		return nil, err
	}
	sub.SetAsset("chunks", chunks)
	sub.SetAsset("rules", rules)
	return sub, nil
}

// #endregion assembly

// #region scripted
func runScripted(h *replay.Harness, path string) {
	fixture, err := replay.LoadFixture(path)
	if err != nil {
		log.Fatalf("load frames: %v", err)
	}
	if fixture.Description != "" {
		fmt.Println(fixture.Description)
	}
	results, err := h.Run(fixture.Frames)
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	for _, r := range results {
		printStep(r)
	}
}

// #endregion scripted

// #region interactive
func runInteractive(h *replay.Harness) {
	fmt.Println("constructnet agent simulator")
	fmt.Println("enter stimulus as tag=val[:strength] pairs, an empty line to step, 'quit' to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			break
		}
		data, err := parseStimulus(line)
		if err != nil {
			fmt.Printf("bad stimulus: %v\n", err)
			continue
		}
		result, err := h.Step("interactive", data)
		if err != nil {
			log.Fatalf("step: %v", err)
		}
		printStep(result)
	}
}

// parseStimulus reads "tag=val" or "tag=val:strength" tokens.
func parseStimulus(line string) (numdict.NumDict, error) {
	out := numdict.New()
	if line == "" {
		return out, nil
	}
	for _, token := range strings.Fields(line) {
		strength := 1.0
		spec := token
		if i := strings.LastIndex(token, ":"); i >= 0 {
			var err error
			strength, err = strconv.ParseFloat(token[i+1:], 64)
			if err != nil {
				return out, fmt.Errorf("strength in %q: %w", token, err)
			}
			spec = token[:i]
		}
		tag, val, ok := strings.Cut(spec, "=")
		if !ok {
			return out, fmt.Errorf("token %q is not tag=val", token)
		}
		out.Set(sym.NewFeature(tag, val), strength)
	}
	return out, nil
}

func printStep(r replay.StepResult) {
	fmt.Printf("step %d (%s)\n", r.Step, r.Label)
	site, ok := r.Output[nacsSym].(realizer.SiteMap)
	if !ok {
		return
	}
	if dec, ok := site[retrievalSym].(realizer.Decision); ok {
		if len(dec.Selection) == 0 {
			fmt.Println("  retrieval: nothing selected")
		}
		for _, s := range dec.Selection {
			fmt.Printf("  retrieval: %v (%.3f)\n", s, dec.Strengths.Get(s))
		}
	}
	if held := realizer.AsStrengths(r.Output[wmSym]); held.Len() > 0 {
		keys := held.Keys()
		sort.Slice(keys, func(i, j int) bool { return sym.Less(keys[i], keys[j]) })
		for _, k := range keys {
			fmt.Printf("  wm: %v (%.3f)\n", k, held.Get(k))
		}
	}
}

// #endregion interactive

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
