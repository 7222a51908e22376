package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a scripted run.
type Fixture struct {
	Description string         `json:"description"`
	Frames      []FixtureFrame `json:"frames"`
}

// FixtureFrame is one scripted step: the stimulus features injected before
// the step's propagation. An empty stimulus steps the agent with no cue.
type FixtureFrame struct {
	Label    string           `json:"label"`
	Stimulus []FixtureFeature `json:"stimulus,omitempty"`
}

// FixtureFeature is a JSON-serializable feature activation.
type FixtureFeature struct {
	Tag      string  `json:"tag"`
	Val      string  `json:"val"`
	Lag      int     `json:"lag,omitempty"`
	Strength float64 `json:"strength"`
}

// #endregion fixture-types

// #region fixture-load

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// Data converts the frame's stimulus to activation strengths.
func (f FixtureFrame) Data() numdict.NumDict {
	out := numdict.New()
	for _, feat := range f.Stimulus {
		out.Set(sym.NewLagged(feat.Tag, feat.Val, feat.Lag), feat.Strength)
	}
	return out
}

// #endregion fixture-load
