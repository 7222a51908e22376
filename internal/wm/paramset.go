package wm

import (
	"fmt"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region paramset
// ParamSetConfig specifies a controlled parameter store. Params enumerates
// the parameter features held; values arrive through the controller's
// decision output alongside the commands, or from any extra source accepted
// by Sources. Clients optionally re-keys a stored parameter to the construct
// it steers, so gate weights land on the gated construct's own symbol.
type ParamSetConfig struct {
	Name       string
	Controller sym.Symbol
	Terminus   sym.Symbol
	Params     []sym.Symbol
	Sources    sym.Match
	Clients    map[sym.Symbol]sym.Symbol

	// ForwardCommands re-emits the parsed commands with incremented lag.
	ForwardCommands bool
}

// ParamSet is a buffer propagator holding named parameter strengths. The
// store changes only on clear/update/clear+update commands; standby
// preserves it indefinitely, which is what lets a gate weight persist
// across cycles with no command traffic.
type ParamSet struct {
	cfg   ParamSetConfig
	iface control.Interface
	store numdict.NumDict
	flags numdict.NumDict
}

// NewParamSet validates cfg and returns an empty store.
func NewParamSet(cfg ParamSetConfig) (*ParamSet, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("wm: param set needs a name")
	}
	if len(cfg.Params) == 0 {
		return nil, fmt.Errorf("wm: param set %q holds no parameters", cfg.Name)
	}
	dim := writeDim(cfg.Name)
	iface, err := control.New(control.Config{
		Cmds: []sym.Symbol{
			sym.NewFeature(dim, CmdStandby),
			sym.NewFeature(dim, CmdClear),
			sym.NewFeature(dim, CmdUpdate),
			sym.NewFeature(dim, CmdOverwrite),
		},
		Defaults: []sym.Symbol{sym.NewFeature(dim, CmdStandby)},
		Params:   cfg.Params,
	})
	if err != nil {
		return nil, err
	}
	return &ParamSet{
		cfg:   cfg,
		iface: iface,
		store: numdict.New(),
		flags: numdict.New(),
	}, nil
}

// Interface returns the store's control vocabulary.
func (p *ParamSet) Interface() control.Interface { return p.iface }

// Store returns a copy of the current parameter strengths.
func (p *ParamSet) Store() numdict.NumDict { return p.store.Copy() }

// SetFlag raises a transient flag emitted with the next output and cleared
// at the end of the cycle.
func (p *ParamSet) SetFlag(f sym.Symbol, v float64) { p.flags.Set(f, v) }

func (p *ParamSet) Serves() sym.Kind { return sym.Buffer }

func (p *ParamSet) Expects() sym.Match {
	return p.cfg.Sources.Or(sym.MatchSymbols(p.cfg.Controller))
}

func (p *ParamSet) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	cmds, err := parseCommands(p.iface, p.cfg.Controller, p.cfg.Terminus, inputs)
	if err != nil {
		return numdict.New(), fmt.Errorf("param set %v: %w", client, err)
	}

	switch cmds[sym.Dim{Tag: writeDim(p.cfg.Name)}] {
	case CmdStandby:
	case CmdClear:
		p.store = numdict.New()
	case CmdUpdate:
		p.store.MaxMerge(p.incoming(inputs))
	case CmdOverwrite:
		p.store = p.incoming(inputs)
	}

	out := p.store.Copy()
	if len(p.cfg.Clients) > 0 {
		out = numdict.TransformKeys(out, func(k sym.Symbol) sym.Symbol {
			if client, ok := p.cfg.Clients[k]; ok {
				return client
			}
			return k
		})
	}
	out.MaxMerge(p.flags)
	if p.cfg.ForwardCommands {
		forwardCommands(out, cmds)
	}
	return out, nil
}

// incoming pools the declared parameter features from the controller's
// decision data and every extra input.
func (p *ParamSet) incoming(inputs realizer.Inputs) numdict.NumDict {
	merged := numdict.New()
	if data, ok := inputs.Terminus(p.cfg.Controller, p.cfg.Terminus); ok {
		merged.MaxMerge(data)
	}
	for source := range inputs {
		if source == p.cfg.Controller {
			continue
		}
		merged.MaxMerge(inputs.Strengths(source))
	}
	declared := make(map[sym.Symbol]struct{}, len(p.cfg.Params))
	for _, f := range p.cfg.Params {
		declared[f] = struct{}{}
	}
	return numdict.Restrict(merged, declared)
}

// Update clears the transient flags.
func (p *ParamSet) Update(client sym.Symbol, inputs realizer.Inputs, output realizer.Value) {
	p.flags = numdict.New()
}

// #endregion paramset
