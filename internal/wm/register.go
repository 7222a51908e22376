package wm

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region register
// RegisterConfig specifies a single-slot register buffer. Name prefixes the
// command vocabulary (dimension "<name>-w"); Channels bind write command
// values to the sources they pull from.
type RegisterConfig struct {
	Name       string
	Controller sym.Symbol
	Terminus   sym.Symbol
	Channels   map[string]Source

	// ForwardCommands re-emits the parsed commands with incremented lag.
	ForwardCommands bool
}

// Register is a buffer propagator holding one slot. The slot changes only on
// clear and channel-write commands; standby preserves it indefinitely.
type Register struct {
	cfg     RegisterConfig
	iface   control.Interface
	store   numdict.NumDict
	holding bool
	flags   numdict.NumDict
}

// NewRegister validates cfg and returns an empty register.
func NewRegister(cfg RegisterConfig) (*Register, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("wm: register needs a name")
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("wm: register %q has no write channels", cfg.Name)
	}
	iface, err := registerInterface(writeDim(cfg.Name), cfg.Channels)
	if err != nil {
		return nil, err
	}
	return &Register{
		cfg:   cfg,
		iface: iface,
		store: numdict.New(),
		flags: numdict.New(),
	}, nil
}

// registerInterface builds the standby/clear/channel vocabulary for one
// write dimension.
func registerInterface(dim string, channels map[string]Source) (control.Interface, error) {
	vals := make([]string, 0, len(channels))
	for v := range channels {
		if v == CmdStandby || v == CmdClear {
			return control.Interface{}, fmt.Errorf("wm: channel name %q collides with a builtin command", v)
		}
		vals = append(vals, v)
	}
	sort.Strings(vals)
	cmds := []sym.Symbol{
		sym.NewFeature(dim, CmdStandby),
		sym.NewFeature(dim, CmdClear),
	}
	for _, v := range vals {
		cmds = append(cmds, sym.NewFeature(dim, v))
	}
	return control.New(control.Config{
		Cmds:     cmds,
		Defaults: []sym.Symbol{sym.NewFeature(dim, CmdStandby)},
	})
}

// Interface returns the register's control vocabulary.
func (r *Register) Interface() control.Interface { return r.iface }

// Holding reports whether the slot has content.
func (r *Register) Holding() bool { return r.holding }

// SetFlag raises a transient flag emitted with the next output and cleared
// at the end of the cycle.
func (r *Register) SetFlag(f sym.Symbol, v float64) { r.flags.Set(f, v) }

func (r *Register) Serves() sym.Kind { return sym.Buffer }

func (r *Register) Expects() sym.Match {
	sources := []sym.Symbol{r.cfg.Controller}
	for _, src := range r.cfg.Channels {
		sources = append(sources, src.Subsystem)
	}
	return sym.MatchSymbols(sources...)
}

func (r *Register) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	cmds, err := parseCommands(r.iface, r.cfg.Controller, r.cfg.Terminus, inputs)
	if err != nil {
		return numdict.New(), fmt.Errorf("register %v: %w", client, err)
	}

	switch val := cmds[sym.Dim{Tag: writeDim(r.cfg.Name)}]; val {
	case CmdStandby:
		// No state change.
	case CmdClear:
		r.store = numdict.New()
		r.holding = false
	default:
		// A channel write fully replaces the slot; prior content is
		// discarded, not merged.
		r.store = pullChannel(inputs, r.cfg.Channels[val])
		r.holding = true
	}

	out := r.store.Copy()
	out.MaxMerge(r.flags)
	if r.cfg.ForwardCommands {
		forwardCommands(out, cmds)
	}
	return out, nil
}

// Update clears the transient flags.
func (r *Register) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	r.flags = numdict.New()
}

func writeDim(name string) string { return name + "-w" }

// #endregion register
