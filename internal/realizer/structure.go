package realizer

import (
	"fmt"
	"sort"

	"github.com/kibbyd/constructnet/internal/sym"
)

// #region structure
// Structure is a composite realizer: it owns a nested collection of member
// realizers and drives them according to its Cycle. Structures nest (agent
// holds subsystems, subsystems hold basic constructs) and expose the same
// external contract as leaves.
type Structure struct {
	name    sym.Symbol
	cycle   Cycle
	members map[sym.Symbol]Realizer
	inputs  map[sym.Symbol]PullFunc
	assets  map[string]interface{}
	output  Value
	updater UpdaterFunc
}

// NewStructure returns a composite realizer for name driven by cycle. The
// construct kind must match the cycle's serves kind.
func NewStructure(name sym.Symbol, cycle Cycle, opts ...StructureOption) (*Structure, error) {
	if name.Kind != cycle.Serves() {
		return nil, fmt.Errorf(
			"realizer: cycle serves %v, cannot drive %v", cycle.Serves(), name,
		)
	}
	s := &Structure{
		name:    name,
		cycle:   cycle,
		members: make(map[sym.Symbol]Realizer),
		inputs:  make(map[sym.Symbol]PullFunc),
		assets:  make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustStructure is NewStructure that panics on structural errors.
func MustStructure(name sym.Symbol, cycle Cycle, opts ...StructureOption) *Structure {
	s, err := NewStructure(name, cycle, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// StructureOption configures a Structure at creation.
type StructureOption func(*Structure)

// WithStructureUpdater attaches a post-propagation updater hook.
func WithStructureUpdater(u UpdaterFunc) StructureOption {
	return func(s *Structure) { s.updater = u }
}

// Construct returns the composite's symbol.
func (s *Structure) Construct() sym.Symbol { return s.name }

// Cycle returns the composite's cycle.
func (s *Structure) Cycle() Cycle { return s.cycle }

// #endregion structure

// #region assets
// SetAsset registers a shared resource (a chunk database, a rule store)
// under key, owned at this structure's level. Propagators hold their own
// references; the namespace exists so tooling can reach the resources a
// subsystem was assembled with.
func (s *Structure) SetAsset(key string, v interface{}) {
	s.assets[key] = v
}

// Asset returns the shared resource registered under key.
func (s *Structure) Asset(key string) (interface{}, bool) {
	v, ok := s.assets[key]
	return v, ok
}

// #endregion assets

// #region membership
// Add inserts realizers into s, wiring each newcomer against every existing
// member (in both directions) and against the composite's registered
// external inputs. Add is atomic: if any realizer is of a kind the cycle
// does not admit, or duplicates an existing symbol, every insertion made by
// this call is rolled back before the error is returned.
func (s *Structure) Add(realizers ...Realizer) error {
	added := make([]sym.Symbol, 0, len(realizers))
	rollback := func() {
		for _, name := range added {
			s.dropLinks(name)
			delete(s.members, name)
		}
	}
	for _, r := range realizers {
		name := r.Construct()
		if name.Kind&s.cycle.Admits() == 0 {
			rollback()
			return fmt.Errorf(
				"%v cannot contain %v: kind %v not admitted (admits %v)",
				s.name, name, name.Kind, s.cycle.Admits(),
			)
		}
		if _, exists := s.members[name]; exists {
			rollback()
			return fmt.Errorf("%v already contains %v", s.name, name)
		}
		s.members[name] = r
		s.updateLinks(name)
		added = append(added, name)
	}
	return nil
}

// Remove severs every link any member holds to each named construct, then
// deletes it. Unknown symbols are ignored.
func (s *Structure) Remove(constructs ...sym.Symbol) {
	for _, name := range constructs {
		if _, ok := s.members[name]; !ok {
			continue
		}
		s.dropLinks(name)
		delete(s.members, name)
	}
}

// Member returns the realizer registered under name.
func (s *Structure) Member(name sym.Symbol) (Realizer, bool) {
	r, ok := s.members[name]
	return r, ok
}

// Resolve walks a path of nested structures to a realizer.
func (s *Structure) Resolve(path ...sym.Symbol) (Realizer, bool) {
	if len(path) == 0 {
		return nil, false
	}
	r, ok := s.members[path[0]]
	if !ok || len(path) == 1 {
		return r, ok
	}
	nested, ok := r.(*Structure)
	if !ok {
		return nil, false
	}
	return nested.Resolve(path[1:]...)
}

// Members returns the member realizers whose kind intersects mask, sorted by
// symbol for deterministic iteration.
func (s *Structure) Members(mask sym.Kind) []Realizer {
	var out []Realizer
	for name, r := range s.members {
		if name.Kind&mask != 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return sym.Less(out[i].Construct(), out[j].Construct())
	})
	return out
}

// Len returns the number of direct members.
func (s *Structure) Len() int { return len(s.members) }

// #endregion membership

// #region wiring
// Accepts delegates to the cycle's external acceptance predicate.
func (s *Structure) Accepts(source sym.Symbol) bool {
	return s.cycle.Expects().Accepts(source)
}

// Watch registers an external input on s and cascades it to every member
// that accepts the source.
func (s *Structure) Watch(source sym.Symbol, pull PullFunc) {
	s.inputs[source] = pull
	for _, r := range s.members {
		if r.Accepts(source) {
			r.Watch(source, pull)
		}
	}
}

// Drop unregisters an external input from s and all members.
func (s *Structure) Drop(source sym.Symbol) {
	delete(s.inputs, source)
	for _, r := range s.members {
		r.Drop(source)
	}
}

// ClearInputs drops all external inputs from s and its members.
func (s *Structure) ClearInputs() {
	for source := range s.inputs {
		for _, r := range s.members {
			r.Drop(source)
		}
	}
	s.inputs = make(map[sym.Symbol]PullFunc)
}

// updateLinks wires the named newcomer against all members (both directions)
// and against the composite's external inputs. Acceptance predicates are the
// sole source of truth here.
func (s *Structure) updateLinks(name sym.Symbol) {
	target := s.members[name]
	for other, r := range s.members {
		if other == name {
			continue
		}
		if r.Accepts(name) {
			r.Watch(name, target.View)
		}
		if target.Accepts(other) {
			target.Watch(other, r.View)
		}
	}
	for source, pull := range s.inputs {
		if target.Accepts(source) {
			target.Watch(source, pull)
		}
	}
}

// dropLinks severs every member's link to the named construct.
func (s *Structure) dropLinks(name sym.Symbol) {
	for _, r := range s.members {
		r.Drop(name)
	}
}

// clearLinks removes all links among and within members.
func (s *Structure) clearLinks() {
	for _, r := range s.members {
		r.ClearInputs()
		if nested, ok := r.(*Structure); ok {
			nested.clearLinks()
		}
	}
}

// Reweave discards and recomputes all links among current members, and
// within nested structures, from acceptance predicates alone. Idempotent;
// use after bulk structural edits to guarantee no stale edges remain.
func (s *Structure) Reweave() {
	s.clearLinks()
	for name, r := range s.members {
		if nested, ok := r.(*Structure); ok {
			nested.Reweave()
		}
		s.updateLinks(name)
	}
}

// ValidateOrder checks the acyclicity-by-construction discipline: no two
// members scheduled in the same sequence group may be linked by acceptance
// in either direction, since any such edge makes results depend on
// unspecified within-group member order.
func (s *Structure) ValidateOrder() error {
	for _, group := range s.cycle.Sequence() {
		members := s.Members(group)
		for i, a := range members {
			for _, b := range members[i+1:] {
				if a.Accepts(b.Construct()) || b.Accepts(a.Construct()) {
					return fmt.Errorf(
						"%v: same-group dependency between %v and %v (group %v)",
						s.name, a.Construct(), b.Construct(), group,
					)
				}
			}
		}
	}
	for _, r := range s.members {
		if nested, ok := r.(*Structure); ok {
			if err := nested.ValidateOrder(); err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion wiring

// #region propagation
// View returns the cached composite output, or an empty site map before the
// first propagation.
func (s *Structure) View() Value {
	if s.output == nil {
		return SiteMap{}
	}
	return s.output
}

// ClearOutput discards the cached output of s and every member.
func (s *Structure) ClearOutput() {
	s.output = nil
	for _, r := range s.members {
		r.ClearOutput()
	}
}

// Propagate iterates the cycle's kind groups in declared order, propagating
// every member of each group, then assembles the composite output from
// members matching the output mask.
func (s *Structure) Propagate() error {
	for _, group := range s.cycle.Sequence() {
		for _, r := range s.Members(group) {
			if err := r.Propagate(); err != nil {
				return fmt.Errorf("%v: %w", s.name, err)
			}
		}
	}
	site := make(SiteMap)
	for _, r := range s.Members(s.cycle.Output()) {
		site[r.Construct()] = r.View()
	}
	s.output = s.cycle.emit(site)
	return nil
}

// Update runs the composite's own updater, then every member's Update.
func (s *Structure) Update() {
	if s.updater != nil {
		s.updater(s)
	}
	for _, r := range s.Members(sym.Any) {
		r.Update()
	}
}

// #endregion propagation
