package realizer

import (
	"fmt"

	"github.com/kibbyd/constructnet/internal/sym"
)

// #region cycle
// Cycle defines a composite construct's propagation schedule: the ordered
// kind groups to propagate, the kind mask forming the composite's visible
// output, and the admission/acceptance rules for members and external
// inputs. Cycles are plain validated configuration, not subclasses; agent
// and subsystem are cycle choices over one generic Structure type.
type Cycle struct {
	serves   sym.Kind
	admits   sym.Kind
	expects  sym.Match
	sequence []sym.Kind
	output   sym.Kind
	emit     func(SiteMap) Value
}

// CycleConfig specifies a Cycle. Sequence and Output are required and are
// validated on construction.
type CycleConfig struct {
	// Serves is the single container kind the cycle drives (agent or
	// subsystem).
	Serves sym.Kind

	// Admits is the mask of member kinds the structure may contain.
	Admits sym.Kind

	// Expects decides which external sources are injected into the
	// structure (and cascaded to accepting members).
	Expects sym.Match

	// Sequence is the ordered list of kind groups to propagate. A kind may
	// appear more than once (e.g. chunk pools re-propagated after rule
	// application).
	Sequence []sym.Kind

	// Output is the mask of member kinds collected into the composite's
	// visible output.
	Output sym.Kind

	// Emit optionally post-processes the collected output map. Defaults to
	// identity pass-through.
	Emit func(SiteMap) Value
}

// NewCycle validates cfg and returns the cycle.
func NewCycle(cfg CycleConfig) (Cycle, error) {
	if cfg.Serves != sym.Agent && cfg.Serves != sym.Subsystem {
		return Cycle{}, fmt.Errorf("cycle: serves must be a single container kind, got %v", cfg.Serves)
	}
	if cfg.Admits == sym.Nil {
		return Cycle{}, fmt.Errorf("cycle: admits mask is empty")
	}
	if len(cfg.Sequence) == 0 {
		return Cycle{}, fmt.Errorf("cycle: sequence is required")
	}
	var covered sym.Kind
	for i, group := range cfg.Sequence {
		if group == sym.Nil {
			return Cycle{}, fmt.Errorf("cycle: sequence group %d is empty", i)
		}
		if group&^cfg.Admits != 0 {
			return Cycle{}, fmt.Errorf(
				"cycle: sequence group %d (%v) not admitted (admits %v)",
				i, group, cfg.Admits,
			)
		}
		covered |= group
	}
	if cfg.Output == sym.Nil {
		return Cycle{}, fmt.Errorf("cycle: output mask is required")
	}
	if cfg.Output&^covered != 0 {
		return Cycle{}, fmt.Errorf(
			"cycle: output mask %v not reachable from sequence (covers %v)",
			cfg.Output, covered,
		)
	}
	emit := cfg.Emit
	if emit == nil {
		emit = func(site SiteMap) Value { return site }
	}
	seq := make([]sym.Kind, len(cfg.Sequence))
	copy(seq, cfg.Sequence)
	return Cycle{
		serves:   cfg.Serves,
		admits:   cfg.Admits,
		expects:  cfg.Expects,
		sequence: seq,
		output:   cfg.Output,
		emit:     emit,
	}, nil
}

// MustCycle is NewCycle that panics on configuration errors.
func MustCycle(cfg CycleConfig) Cycle {
	c, err := NewCycle(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Serves returns the container kind driven by the cycle.
func (c Cycle) Serves() sym.Kind { return c.serves }

// Admits returns the member kind mask.
func (c Cycle) Admits() sym.Kind { return c.admits }

// Sequence returns the ordered kind groups.
func (c Cycle) Sequence() []sym.Kind {
	out := make([]sym.Kind, len(c.sequence))
	copy(out, c.sequence)
	return out
}

// Output returns the output kind mask.
func (c Cycle) Output() sym.Kind { return c.output }

// Expects returns the structure-level acceptance predicate.
func (c Cycle) Expects() sym.Match { return c.expects }

// #endregion cycle

// #region presets
// AgentCycle propagates buffers first, then subsystems, and exposes both.
func AgentCycle() Cycle {
	return MustCycle(CycleConfig{
		Serves:   sym.Agent,
		Admits:   sym.Buffer | sym.Subsystem,
		Sequence: []sym.Kind{sym.Buffer, sym.Subsystem},
		Output:   sym.Buffer | sym.Subsystem,
	})
}

// NACSCycle is the standard top-first retrieval schedule: input flows, chunk
// pool, top-down, feature pool, horizontal flows, feature pool again,
// bottom-up, chunk pool again, then termini.
func NACSCycle() Cycle {
	return MustCycle(CycleConfig{
		Serves:  sym.Subsystem,
		Admits:  sym.Basic &^ sym.Buffer,
		Expects: sym.MatchKinds(sym.Buffer),
		Sequence: []sym.Kind{
			sym.FlowIn,
			sym.Chunk,
			sym.FlowTB,
			sym.Feature,
			sym.FlowH,
			sym.Feature,
			sym.FlowBT,
			sym.Chunk,
			sym.Terminus,
		},
		Output: sym.Nodes | sym.Terminus,
	})
}

// ACSCycle is the bottom-first action schedule.
func ACSCycle() Cycle {
	return MustCycle(CycleConfig{
		Serves:  sym.Subsystem,
		Admits:  sym.Basic &^ sym.Buffer,
		Expects: sym.MatchKinds(sym.Buffer),
		Sequence: []sym.Kind{
			sym.FlowIn,
			sym.Feature,
			sym.FlowBT,
			sym.Chunk,
			sym.FlowH,
			sym.Chunk,
			sym.FlowTB,
			sym.Feature,
			sym.Terminus,
		},
		Output: sym.Nodes | sym.Terminus,
	})
}

// #endregion presets
