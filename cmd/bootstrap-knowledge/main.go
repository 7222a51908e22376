// Command bootstrap-knowledge seeds a knowledge database with chunk forms
// and associative rules, either from a JSON definition file or from a small
// built-in demo set. Saving replaces whatever the database held before.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kibbyd/constructnet/internal/knowledge"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("CONSTRUCTNET_DB", "knowledge.db"), "path to the knowledge database")
	fromPath := flag.String("from", "", "JSON definition file (omit to seed the built-in demo set)")
	flag.Parse()

	fmt.Println("=== Knowledge Bootstrap Tool ===")
	fmt.Printf("  DB: %s\n", *dbPath)

	var def definition
	if *fromPath != "" {
		raw, err := os.ReadFile(*fromPath)
		if err != nil {
			log.Fatalf("read definition: %v", err)
		}
		if err := json.Unmarshal(raw, &def); err != nil {
			log.Fatalf("parse definition: %v", err)
		}
		fmt.Printf("  Source: %s\n", *fromPath)
	} else {
		def = demoDefinition()
		fmt.Println("  Source: built-in demo set")
	}

	chunks, rules, err := def.build()
	if err != nil {
		log.Fatalf("build knowledge: %v", err)
	}

	db, err := knowledge.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := db.SaveChunks(chunks); err != nil {
		log.Fatalf("save chunks: %v", err)
	}
	if err := db.SaveRules(rules); err != nil {
		log.Fatalf("save rules: %v", err)
	}

	fmt.Printf("\n=== Bootstrap Complete ===\n")
	fmt.Printf("  Chunks: %d\n", chunks.Len())
	fmt.Printf("  Rules:  %d\n", rules.Len())
}

// #endregion main

// #region definition
// definition is the JSON shape of a seeding file. Weights are keyed by
// feature tag and apply at lag zero; omitted dimensions default to one.
type definition struct {
	Chunks []chunkDef `json:"chunks"`
	Rules  []ruleDef  `json:"rules"`
}

type chunkDef struct {
	Name     string             `json:"name"`
	Features []featureDef       `json:"features"`
	Weights  map[string]float64 `json:"weights,omitempty"`
}

type featureDef struct {
	Tag string `json:"tag"`
	Val string `json:"val"`
	Lag int    `json:"lag,omitempty"`
}

type ruleDef struct {
	Conclusion string             `json:"conclusion"`
	Conditions map[string]float64 `json:"conditions"`
}

func (d definition) build() (*knowledge.Chunks, *knowledge.Rules, error) {
	chunks := knowledge.NewChunks()
	for _, c := range d.Chunks {
		features := make([]sym.Symbol, 0, len(c.Features))
		for _, f := range c.Features {
			features = append(features, sym.NewLagged(f.Tag, f.Val, f.Lag))
		}
		var weights map[sym.Dim]float64
		if len(c.Weights) > 0 {
			weights = make(map[sym.Dim]float64, len(c.Weights))
			for tag, w := range c.Weights {
				weights[sym.Dim{Tag: tag}] = w
			}
		}
		if err := chunks.Link(sym.NewChunk(c.Name), features, weights); err != nil {
			return nil, nil, fmt.Errorf("chunk %q: %w", c.Name, err)
		}
	}

	rules := knowledge.NewRules()
	for _, r := range d.Rules {
		conditions := make(map[sym.Symbol]float64, len(r.Conditions))
		for name, w := range r.Conditions {
			conditions[sym.NewChunk(name)] = w
		}
		if err := rules.Define(sym.NewChunk(r.Conclusion), conditions); err != nil {
			return nil, nil, fmt.Errorf("rule %q: %w", r.Conclusion, err)
		}
	}
	return chunks, rules, nil
}

// demoDefinition matches the fallback set the simulator uses when it finds
// an empty database.
func demoDefinition() definition {
	return definition{
		Chunks: []chunkDef{
			{Name: "apple", Features: []featureDef{
				{Tag: "color", Val: "red"},
				{Tag: "shape", Val: "round"},
				{Tag: "taste", Val: "sweet"},
			}},
			{Name: "lemon", Features: []featureDef{
				{Tag: "color", Val: "yellow"},
				{Tag: "shape", Val: "oblong"},
				{Tag: "taste", Val: "sour"},
			}},
		},
		Rules: []ruleDef{
			{Conclusion: "fruit", Conditions: map[string]float64{
				"apple": 0.5,
				"lemon": 0.5,
			}},
		},
	}
}

// #endregion definition

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
