// Package sym defines construct symbols: the immutable identities used to
// name, index, and wire simulated constructs.
package sym

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// #region kind
// Kind is a bitmask identifying the construct kind of a symbol. Single bits
// name concrete kinds; unions act as kind masks for wiring and sequencing.
type Kind uint16

const (
	Feature Kind = 1 << iota
	Chunk
	FlowIn
	FlowTT
	FlowBB
	FlowTB
	FlowBT
	Terminus
	Buffer
	Subsystem
	Agent

	Nil Kind = 0

	// Common masks.
	Nodes     = Feature | Chunk
	FlowH     = FlowTT | FlowBB
	FlowV     = FlowTB | FlowBT
	Flows     = FlowIn | FlowH | FlowV
	Basic     = Nodes | Flows | Terminus | Buffer
	Container = Subsystem | Agent
	Any       = Basic | Container
)

var kindNames = map[Kind]string{
	Feature:   "feature",
	Chunk:     "chunk",
	FlowIn:    "flow_in",
	FlowTT:    "flow_tt",
	FlowBB:    "flow_bb",
	FlowTB:    "flow_tb",
	FlowBT:    "flow_bt",
	Terminus:  "terminus",
	Buffer:    "buffer",
	Subsystem: "subsystem",
	Agent:     "agent",
}

// String returns the kind name for single kinds, or a +-joined list of the
// set bits for masks.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	var parts []string
	for bit := Feature; bit <= Agent; bit <<= 1 {
		if k&bit != 0 {
			parts = append(parts, kindNames[bit])
		}
	}
	if len(parts) == 0 {
		return "nil"
	}
	return strings.Join(parts, "+")
}

// IsBasic reports whether k names only leaf construct kinds.
func (k Kind) IsBasic() bool {
	return k != Nil && k&^Basic == 0
}

// IsContainer reports whether k names only composite construct kinds.
func (k Kind) IsContainer() bool {
	return k != Nil && k&^Container == 0
}

// #endregion kind

// #region symbol
// Symbol is the immutable identity of a construct. Two symbols are equal iff
// kind, tag, value, and lag all match; symbols are comparable and may be used
// as map keys.
//
// Features carry a tag (dimension label), a value, and a lag counter. All
// other kinds use Tag as their name and leave Val empty and Lag zero.
type Symbol struct {
	Kind Kind
	Tag  string
	Val  string
	Lag  int
}

// Dim identifies a feature dimension: a tag together with a lag.
type Dim struct {
	Tag string
	Lag int
}

func (d Dim) String() string {
	if d.Lag == 0 {
		return d.Tag
	}
	return d.Tag + "@" + strconv.Itoa(d.Lag)
}

// Dim returns the dimension of s. Meaningful for features; for other kinds it
// degenerates to {Tag, 0}.
func (s Symbol) Dim() Dim {
	return Dim{Tag: s.Tag, Lag: s.Lag}
}

func (s Symbol) String() string {
	switch {
	case s.Kind == Feature && s.Lag != 0:
		return fmt.Sprintf("feature(%s, %s, %d)", s.Tag, s.Val, s.Lag)
	case s.Kind == Feature:
		return fmt.Sprintf("feature(%s, %s)", s.Tag, s.Val)
	default:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Tag)
	}
}

// IsZero reports whether s is the zero symbol.
func (s Symbol) IsZero() bool {
	return s == Symbol{}
}

// #endregion symbol

// #region constructors
// NewFeature returns a feature symbol with lag zero.
func NewFeature(tag, val string) Symbol {
	return Symbol{Kind: Feature, Tag: tag, Val: val}
}

// NewLagged returns a feature symbol with an explicit lag.
func NewLagged(tag, val string, lag int) Symbol {
	return Symbol{Kind: Feature, Tag: tag, Val: val, Lag: lag}
}

// WithLag returns a copy of s with its lag set to lag.
func WithLag(s Symbol, lag int) Symbol {
	s.Lag = lag
	return s
}

// NewChunk returns a chunk symbol.
func NewChunk(name string) Symbol {
	return Symbol{Kind: Chunk, Tag: name}
}

// NewFlow returns a flow symbol of the given flow kind. Panics if kind is not
// a single flow kind; flows are declared statically at assembly time, so a
// bad kind is a programming error.
func NewFlow(kind Kind, name string) Symbol {
	if kind&Flows == 0 || kindNames[kind] == "" {
		panic(fmt.Sprintf("sym: %v is not a flow kind", kind))
	}
	return Symbol{Kind: kind, Tag: name}
}

// NewTerminus returns a terminus symbol.
func NewTerminus(name string) Symbol {
	return Symbol{Kind: Terminus, Tag: name}
}

// NewBuffer returns a buffer symbol.
func NewBuffer(name string) Symbol {
	return Symbol{Kind: Buffer, Tag: name}
}

// NewSubsystem returns a subsystem symbol.
func NewSubsystem(name string) Symbol {
	return Symbol{Kind: Subsystem, Tag: name}
}

// NewAgent returns an agent symbol.
func NewAgent(name string) Symbol {
	return Symbol{Kind: Agent, Tag: name}
}

// #endregion constructors

// #region ordering
// Less imposes a total order on symbols (kind, then tag, value, lag). Used
// wherever deterministic iteration over symbol-keyed maps is needed.
func Less(a, b Symbol) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	if a.Val != b.Val {
		return a.Val < b.Val
	}
	return a.Lag < b.Lag
}

// #endregion ordering

// #region group-by-dims
// GroupByDims groups feature symbols by their dimension. Non-feature symbols
// are skipped. Groups preserve a stable (sorted) order so callers iterate
// deterministically.
func GroupByDims(features []Symbol) map[Dim][]Symbol {
	groups := make(map[Dim][]Symbol)
	for _, f := range features {
		if f.Kind != Feature {
			continue
		}
		groups[f.Dim()] = append(groups[f.Dim()], f)
	}
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].Val < g[j].Val })
	}
	return groups
}

// #endregion group-by-dims
