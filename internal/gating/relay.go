package gating

import (
	"fmt"
	"log"

	"github.com/kibbyd/constructnet/internal/control"
	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// warnf reports soft-missing-data conditions. Tests may silence it.
var warnf = log.Printf

// #region relay
// RelayDim binds one command dimension of the controller vocabulary to the
// constructs its decisions gate. The dimension's ordered values map to evenly
// spaced weights in [0, 1]: value i emits weight i/(n-1).
type RelayDim struct {
	Dim     sym.Dim
	Values  []string
	Clients []sym.Symbol
}

// FilteringRelay is a buffer propagator that reads a controller subsystem's
// decision at a named terminus, parses it against a control interface, and
// emits gate weights keyed by client construct symbols.
type FilteringRelay struct {
	controller sym.Symbol
	terminus   sym.Symbol
	iface      control.Interface
	dims       []RelayDim
}

// NewFilteringRelay validates the dimension bindings against iface and
// returns the relay. Every bound dimension must be a command dimension of
// iface with at least two values and at least one client.
func NewFilteringRelay(controller, terminus sym.Symbol, iface control.Interface, dims []RelayDim) (*FilteringRelay, error) {
	for _, d := range dims {
		if _, ok := iface.Default(d.Dim); !ok {
			return nil, fmt.Errorf("gating: %v is not a command dimension", d.Dim)
		}
		if len(d.Values) < 2 {
			return nil, fmt.Errorf("gating: dimension %v needs at least two values", d.Dim)
		}
		if len(d.Clients) == 0 {
			return nil, fmt.Errorf("gating: dimension %v has no clients", d.Dim)
		}
	}
	return &FilteringRelay{
		controller: controller,
		terminus:   terminus,
		iface:      iface,
		dims:       dims,
	}, nil
}

func (r *FilteringRelay) Serves() sym.Kind   { return sym.Buffer }
func (r *FilteringRelay) Expects() sym.Match { return sym.MatchSymbols(r.controller) }

func (r *FilteringRelay) Call(client sym.Symbol, inputs realizer.Inputs) (numdict.NumDict, error) {
	data, ok := inputs.Terminus(r.controller, r.terminus)
	if !ok {
		// Controller not wired or terminus empty, e.g. the very first
		// cycle. Substitute an empty decision; defaults apply.
		warnf("gating: %v has no output at %v yet", r.controller, r.terminus)
		data = numdict.New()
	}
	cmds, err := r.iface.ParseCommands(data)
	if err != nil {
		return numdict.New(), fmt.Errorf("relay %v: %w", client, err)
	}

	out := numdict.New()
	for _, d := range r.dims {
		val := cmds[d.Dim]
		idx := -1
		for i, v := range d.Values {
			if v == val {
				idx = i
				break
			}
		}
		if idx < 0 {
			return numdict.New(), fmt.Errorf(
				"relay %v: command value %q not bound on %v", client, val, d.Dim,
			)
		}
		w := float64(idx) / float64(len(d.Values)-1)
		for _, c := range d.Clients {
			out.Set(c, w)
		}
	}
	return out, nil
}

// #endregion relay
