// Package wm implements controllable buffers: stores whose contents persist
// across cycles and change only in response to commands parsed from a
// controller subsystem's decision output. Register holds one slot,
// WorkingMemory an addressable array of slots, ParamSet a bank of named
// parameters.
package wm

import (
	"log"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// warnf reports soft-missing-data conditions. Tests may silence it.
var warnf = log.Printf

// Command values shared by the buffer vocabularies.
const (
	CmdStandby   = "standby"
	CmdClear     = "clear"
	CmdUpdate    = "update"
	CmdOverwrite = "clear+update"
	CmdRead      = "read"
	CmdReset     = "reset"
)

// Source names a subsystem terminus to pull written content from.
type Source struct {
	Subsystem sym.Symbol
	Terminus  sym.Symbol
}

// parseCommands pulls the controller's decision at the given terminus and
// parses it against iface. A missing or empty terminus (e.g. the very first
// cycle) is a soft condition: it logs and parses against empty data, so every
// dimension falls back to its default.
func parseCommands(iface control.Interface, controller, terminus sym.Symbol, inputs realizer.Inputs) (map[sym.Dim]string, error) {
	data, ok := inputs.Terminus(controller, terminus)
	if !ok {
		warnf("wm: no controller output at %v/%v yet", controller, terminus)
		data = numdict.New()
	}
	return iface.ParseCommands(data)
}

// forwardCommands re-exposes the parsed commands as lag-1 features for
// downstream introspection.
func forwardCommands(out numdict.NumDict, cmds map[sym.Dim]string) {
	for dim, val := range cmds {
		out.Set(sym.NewLagged(dim.Tag, val, dim.Lag+1), 1.0)
	}
}

// pullChannel reads a channel source's terminus output, logging when the
// source has nothing to give.
func pullChannel(inputs realizer.Inputs, src Source) numdict.NumDict {
	data, ok := inputs.Terminus(src.Subsystem, src.Terminus)
	if !ok {
		warnf("wm: channel source %v/%v has no output", src.Subsystem, src.Terminus)
		return numdict.New()
	}
	return data.Copy()
}
