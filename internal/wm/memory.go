package wm

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region config
// WorkingMemoryConfig specifies a slot-array buffer. Name prefixes the
// command vocabulary: write dimensions "<name>-w<i>", read dimensions
// "<name>-r<i>", and the global reset dimension "<name>-reset".
type WorkingMemoryConfig struct {
	Name       string
	Slots      int
	Controller sym.Symbol
	Terminus   sym.Symbol
	Channels   map[string]Source

	// ForwardCommands re-emits the parsed commands with incremented lag.
	ForwardCommands bool
}

// #endregion config

// #region memory
// WorkingMemory is a buffer propagator holding Slots independently
// addressable cells. Each cell has its own write dimension
// (standby/clear/channel) and read dimension (a pure visibility gate); one
// global reset dimension empties every cell. Reset applies before the
// per-slot writes of the same cycle, so reset+write nets to the fresh write.
type WorkingMemory struct {
	cfg   WorkingMemoryConfig
	iface control.Interface
	cells []cell
	flags numdict.NumDict
}

type cell struct {
	store   numdict.NumDict
	holding bool
}

// NewWorkingMemory validates cfg and returns a memory with all cells empty.
func NewWorkingMemory(cfg WorkingMemoryConfig) (*WorkingMemory, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("wm: working memory needs a name")
	}
	if cfg.Slots < 1 {
		return nil, fmt.Errorf("wm: working memory %q needs at least one slot", cfg.Name)
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("wm: working memory %q has no write channels", cfg.Name)
	}

	channelVals := make([]string, 0, len(cfg.Channels))
	for v := range cfg.Channels {
		if v == CmdStandby || v == CmdClear {
			return nil, fmt.Errorf("wm: channel name %q collides with a builtin command", v)
		}
		channelVals = append(channelVals, v)
	}
	sort.Strings(channelVals)

	var cmds, defaults []sym.Symbol
	for i := 0; i < cfg.Slots; i++ {
		w := cfg.slotWriteDim(i)
		cmds = append(cmds,
			sym.NewFeature(w, CmdStandby),
			sym.NewFeature(w, CmdClear),
		)
		for _, v := range channelVals {
			cmds = append(cmds, sym.NewFeature(w, v))
		}
		defaults = append(defaults, sym.NewFeature(w, CmdStandby))

		r := cfg.slotReadDim(i)
		cmds = append(cmds,
			sym.NewFeature(r, CmdStandby),
			sym.NewFeature(r, CmdRead),
		)
		defaults = append(defaults, sym.NewFeature(r, CmdStandby))
	}
	cmds = append(cmds,
		sym.NewFeature(cfg.resetDim(), CmdStandby),
		sym.NewFeature(cfg.resetDim(), CmdReset),
	)
	defaults = append(defaults, sym.NewFeature(cfg.resetDim(), CmdStandby))

	iface, err := control.New(control.Config{Cmds: cmds, Defaults: defaults})
	if err != nil {
		return nil, err
	}

	cells := make([]cell, cfg.Slots)
	for i := range cells {
		cells[i].store = numdict.New()
	}
	return &WorkingMemory{
		cfg:   cfg,
		iface: iface,
		cells: cells,
		flags: numdict.New(),
	}, nil
}

func (cfg WorkingMemoryConfig) slotWriteDim(i int) string {
	return fmt.Sprintf("%s-w%d", cfg.Name, i)
}

func (cfg WorkingMemoryConfig) slotReadDim(i int) string {
	return fmt.Sprintf("%s-r%d", cfg.Name, i)
}

func (cfg WorkingMemoryConfig) resetDim() string {
	return cfg.Name + "-reset"
}

// Interface returns the memory's control vocabulary.
func (w *WorkingMemory) Interface() control.Interface { return w.iface }

// Holding reports whether slot i has content.
func (w *WorkingMemory) Holding(i int) bool { return w.cells[i].holding }

// Contents returns a copy of slot i's content.
func (w *WorkingMemory) Contents(i int) numdict.NumDict { return w.cells[i].store.Copy() }

// SetFlag raises a transient flag emitted with the next output and cleared
// at the end of the cycle.
func (w *WorkingMemory) SetFlag(f sym.Symbol, v float64) { w.flags.Set(f, v) }

func (w *WorkingMemory) Serves() sym.Kind { return sym.Buffer }

func (w *WorkingMemory) Expects() sym.Match {
	sources := []sym.Symbol{w.cfg.Controller}
	for _, src := range w.cfg.Channels {
		sources = append(sources, src.Subsystem)
	}
	return sym.MatchSymbols(sources...)
}

func (w *WorkingMemory) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	cmds, err := parseCommands(w.iface, w.cfg.Controller, w.cfg.Terminus, inputs)
	if err != nil {
		return numdict.New(), fmt.Errorf("working memory %v: %w", client, err)
	}

	// Phase 1: global reset, unconditionally emptying every cell before any
	// write of the same cycle lands.
	if cmds[sym.Dim{Tag: w.cfg.resetDim()}] == CmdReset {
		for i := range w.cells {
			w.cells[i].store = numdict.New()
			w.cells[i].holding = false
		}
	}

	// Phase 2: per-slot writes.
	for i := range w.cells {
		switch val := cmds[sym.Dim{Tag: w.cfg.slotWriteDim(i)}]; val {
		case CmdStandby:
		case CmdClear:
			w.cells[i].store = numdict.New()
			w.cells[i].holding = false
		default:
			w.cells[i].store = pullChannel(inputs, w.cfg.Channels[val])
			w.cells[i].holding = true
		}
	}

	// Phase 3: visibility. Read gates never mutate cell state.
	out := numdict.New()
	for i := range w.cells {
		if w.cells[i].holding && cmds[sym.Dim{Tag: w.cfg.slotReadDim(i)}] == CmdRead {
			out.MaxMerge(w.cells[i].store)
		}
	}
	out.MaxMerge(w.flags)
	if w.cfg.ForwardCommands {
		forwardCommands(out, cmds)
	}
	return out, nil
}

// Update clears the transient flags.
func (w *WorkingMemory) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	w.flags = numdict.New()
}

// #endregion memory
