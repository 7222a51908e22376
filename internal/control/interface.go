// Package control defines feature interfaces: the declared command, flag,
// and parameter vocabularies through which one construct steers another, and
// the parsing of raised command features into dimension-wise directives.
package control

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region interface
// Interface is the validated control vocabulary of a controllable component.
// Cmds enumerate every command feature the component understands, Defaults
// pick the do-nothing value of each command dimension, Flags are transient
// per-cycle markers the component raises, and Params are numeric knobs read
// from parameter stores.
type Interface struct {
	cmds     []sym.Symbol
	defaults map[sym.Dim]sym.Symbol
	flags    []sym.Symbol
	params   []sym.Symbol
}

// Config specifies an Interface. Cmds and Defaults are required.
type Config struct {
	Cmds     []sym.Symbol
	Defaults []sym.Symbol
	Flags    []sym.Symbol
	Params   []sym.Symbol
}

// New validates cfg and returns the interface. Every default must be one of
// the declared commands, every command dimension must have exactly one
// default, and the command, flag, and parameter vocabularies must be disjoint
// feature sets with no duplicates.
func New(cfg Config) (Interface, error) {
	seen := make(map[sym.Symbol]struct{})
	for _, group := range [][]sym.Symbol{cfg.Cmds, cfg.Flags, cfg.Params} {
		for _, f := range group {
			if f.Kind != sym.Feature {
				return Interface{}, fmt.Errorf("control: %v is not a feature", f)
			}
			if _, dup := seen[f]; dup {
				return Interface{}, fmt.Errorf("control: duplicate vocabulary entry %v", f)
			}
			seen[f] = struct{}{}
		}
	}

	cmdSet := make(map[sym.Symbol]struct{}, len(cfg.Cmds))
	cmdDims := make(map[sym.Dim]struct{})
	for _, c := range cfg.Cmds {
		cmdSet[c] = struct{}{}
		cmdDims[c.Dim()] = struct{}{}
	}

	defaults := make(map[sym.Dim]sym.Symbol, len(cfg.Defaults))
	for _, d := range cfg.Defaults {
		if _, ok := cmdSet[d]; !ok {
			return Interface{}, fmt.Errorf("control: default %v is not a declared command", d)
		}
		if prior, dup := defaults[d.Dim()]; dup {
			return Interface{}, fmt.Errorf(
				"control: dimension %v has two defaults, %v and %v", d.Dim(), prior, d,
			)
		}
		defaults[d.Dim()] = d
	}
	for dim := range cmdDims {
		if _, ok := defaults[dim]; !ok {
			return Interface{}, fmt.Errorf("control: command dimension %v has no default", dim)
		}
	}

	iface := Interface{
		cmds:     sortedFeatures(cfg.Cmds),
		defaults: defaults,
		flags:    sortedFeatures(cfg.Flags),
		params:   sortedFeatures(cfg.Params),
	}
	return iface, nil
}

// Must is New that panics on configuration errors. Interfaces are declared
// statically at assembly time, so a bad vocabulary is a programming mistake.
func Must(cfg Config) Interface {
	iface, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return iface
}

func sortedFeatures(fs []sym.Symbol) []sym.Symbol {
	out := make([]sym.Symbol, len(fs))
	copy(out, fs)
	sort.Slice(out, func(i, j int) bool { return sym.Less(out[i], out[j]) })
	return out
}

// Cmds returns the declared command features, sorted.
func (i Interface) Cmds() []sym.Symbol {
	out := make([]sym.Symbol, len(i.cmds))
	copy(out, i.cmds)
	return out
}

// Flags returns the declared flag features, sorted.
func (i Interface) Flags() []sym.Symbol {
	out := make([]sym.Symbol, len(i.flags))
	copy(out, i.flags)
	return out
}

// Params returns the declared parameter features, sorted.
func (i Interface) Params() []sym.Symbol {
	out := make([]sym.Symbol, len(i.params))
	copy(out, i.params)
	return out
}

// CmdDims returns the command dimensions in sorted order.
func (i Interface) CmdDims() []sym.Dim {
	dims := make([]sym.Dim, 0, len(i.defaults))
	for dim := range i.defaults {
		dims = append(dims, dim)
	}
	sort.Slice(dims, func(a, b int) bool {
		if dims[a].Tag != dims[b].Tag {
			return dims[a].Tag < dims[b].Tag
		}
		return dims[a].Lag < dims[b].Lag
	})
	return dims
}

// Default returns the default command for dim. The boolean is false when dim
// is not a command dimension.
func (i Interface) Default(dim sym.Dim) (sym.Symbol, bool) {
	d, ok := i.defaults[dim]
	return d, ok
}

// Defaults returns the default command of every dimension, sorted.
func (i Interface) Defaults() []sym.Symbol {
	out := make([]sym.Symbol, 0, len(i.defaults))
	for _, d := range i.defaults {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return sym.Less(out[a], out[b]) })
	return out
}

// Features returns the full declared vocabulary (commands, flags, and
// parameters), sorted.
func (i Interface) Features() []sym.Symbol {
	out := make([]sym.Symbol, 0, len(i.cmds)+len(i.flags)+len(i.params))
	out = append(out, i.cmds...)
	out = append(out, i.flags...)
	out = append(out, i.params...)
	sort.Slice(out, func(a, b int) bool { return sym.Less(out[a], out[b]) })
	return out
}

// IsCmd reports whether f is a declared command feature.
func (i Interface) IsCmd(f sym.Symbol) bool {
	for _, c := range i.cmds {
		if c == f {
			return true
		}
	}
	return false
}

// #endregion interface

// #region parsing
// ParseCommands reads the raised commands out of data. For every command
// dimension the result holds exactly one directive: the single raised command
// value if one is present, or the dimension's default if none is. Two raised
// values on one dimension make the controller's intent undecidable, so that
// is a hard error rather than a silent pick.
func (i Interface) ParseCommands(data numdict.NumDict) (map[sym.Dim]string, error) {
	raised := make(map[sym.Dim]sym.Symbol)
	for _, c := range i.cmds {
		if !data.Contains(c) {
			continue
		}
		dim := c.Dim()
		if prior, dup := raised[dim]; dup {
			return nil, fmt.Errorf(
				"control: ambiguous commands on %v: %v and %v", dim, prior, c,
			)
		}
		raised[dim] = c
	}
	out := make(map[sym.Dim]string, len(i.defaults))
	for dim, def := range i.defaults {
		if cmd, ok := raised[dim]; ok {
			out[dim] = cmd.Val
		} else {
			out[dim] = def.Val
		}
	}
	return out, nil
}

// #endregion parsing
