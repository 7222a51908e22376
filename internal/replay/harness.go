// Package replay drives an assembled agent through scripted stimulus frames
// and collects per-step outputs. It backs end-to-end tests and the scripted
// mode of cmd/agentsim.
package replay

import (
	"fmt"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/propagator"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/trace"
)

// #region types

// StepResult captures the agent's visible output after one step.
type StepResult struct {
	Step   int
	Label  string
	Output realizer.SiteMap
}

// Harness steps one agent: inject stimulus, propagate, update, collect. When
// a trace store is attached, every step is also persisted.
type Harness struct {
	agent *realizer.Structure
	stim  *propagator.Stimulus

	store *trace.Store
	runID string
	step  int
}

// NewHarness returns a harness over agent, injecting scripted stimuli
// through stim.
func NewHarness(agent *realizer.Structure, stim *propagator.Stimulus) *Harness {
	return &Harness{agent: agent, stim: stim}
}

// Record attaches a trace store; subsequent steps append to the given run.
func (h *Harness) Record(store *trace.Store, runID string) {
	h.store = store
	h.runID = runID
}

// #endregion types

// #region stepping

// Step runs one full agent step: stage the stimulus (if non-empty),
// propagate, run updaters, and return the agent's visible output.
func (h *Harness) Step(label string, stimulus numdict.NumDict) (StepResult, error) {
	if stimulus.Len() > 0 {
		h.stim.Input(stimulus)
	}
	if err := h.agent.Propagate(); err != nil {
		return StepResult{}, fmt.Errorf("step %d (%s): %w", h.step, label, err)
	}
	h.agent.Update()

	site, ok := h.agent.View().(realizer.SiteMap)
	if !ok {
		return StepResult{}, fmt.Errorf("step %d (%s): agent output is not a site map", h.step, label)
	}
	result := StepResult{Step: h.step, Label: label, Output: site}

	if h.store != nil {
		if err := h.store.RecordStep(h.runID, h.step, site); err != nil {
			return StepResult{}, fmt.Errorf("record step %d: %w", h.step, err)
		}
	}
	h.step++
	return result, nil
}

// Run steps the agent through every frame in order, stopping at the first
// error.
func (h *Harness) Run(frames []FixtureFrame) ([]StepResult, error) {
	results := make([]StepResult, 0, len(frames))
	for _, frame := range frames {
		r, err := h.Step(frame.Label, frame.Data())
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// #endregion stepping
