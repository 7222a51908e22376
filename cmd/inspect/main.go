// Command inspect dumps the contents of a knowledge database or a trace
// database: linked chunks and rules, recorded runs, and per-step construct
// outputs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/kibbyd/constructnet/internal/knowledge"
	"github.com/kibbyd/constructnet/internal/sym"
	"github.com/kibbyd/constructnet/internal/trace"
)

// #region main

func main() {
	knowledgePath := flag.String("knowledge", "", "path to a knowledge database")
	tracePath := flag.String("trace", "", "path to a trace database")
	run := flag.String("run", "", "show one run's step rows")
	last := flag.Int("last", 20, "show N most recent runs")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *knowledgePath == "" && *tracePath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --knowledge path/to/knowledge.db | --trace path/to/trace.db [--run id] [--last N] [--json]")
		os.Exit(2)
	}

	if *knowledgePath != "" {
		if err := runKnowledgeMode(*knowledgePath, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *tracePath != "" {
		if err := runTraceMode(*tracePath, *run, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region knowledge-mode

type chunkRow struct {
	Chunk    string             `json:"chunk"`
	Features []string           `json:"features"`
	Weights  map[string]float64 `json:"weights,omitempty"`
}

type ruleRow struct {
	Conclusion string             `json:"conclusion"`
	Conditions map[string]float64 `json:"conditions"`
}

func runKnowledgeMode(path string, jsonOut bool) error {
	db, err := knowledge.Open(path)
	if err != nil {
		return fmt.Errorf("open knowledge db: %w", err)
	}
	defer db.Close()

	chunks, err := db.LoadChunks()
	if err != nil {
		return err
	}
	rules, err := db.LoadRules()
	if err != nil {
		return err
	}

	var chunkRows []chunkRow
	chunks.Each(func(ch sym.Symbol, form knowledge.Form) {
		row := chunkRow{Chunk: ch.String()}
		for _, f := range form.Features {
			row.Features = append(row.Features, f.String())
		}
		if len(form.Weights) > 0 {
			row.Weights = make(map[string]float64, len(form.Weights))
			for d, w := range form.Weights {
				row.Weights[d.String()] = w
			}
		}
		chunkRows = append(chunkRows, row)
	})

	var ruleRows []ruleRow
	rules.Each(func(rule knowledge.Rule) {
		row := ruleRow{
			Conclusion: rule.Conclusion.String(),
			Conditions: make(map[string]float64, len(rule.Conditions)),
		}
		for cond, w := range rule.Conditions {
			row.Conditions[cond.String()] = w
		}
		ruleRows = append(ruleRows, row)
	})

	if jsonOut {
		return printJSON(map[string]interface{}{
			"chunks": chunkRows,
			"rules":  ruleRows,
		})
	}

	fmt.Printf("Chunks (%d):\n", len(chunkRows))
	for _, row := range chunkRows {
		fmt.Printf("  %s\n", row.Chunk)
		for _, f := range row.Features {
			fmt.Printf("    %s\n", f)
		}
		if len(row.Weights) > 0 {
			dims := make([]string, 0, len(row.Weights))
			for d := range row.Weights {
				dims = append(dims, d)
			}
			sort.Strings(dims)
			for _, d := range dims {
				fmt.Printf("    weight %s = %.4f\n", d, row.Weights[d])
			}
		}
	}

	fmt.Printf("\nRules (%d):\n", len(ruleRows))
	for _, row := range ruleRows {
		fmt.Printf("  %s <-\n", row.Conclusion)
		conds := make([]string, 0, len(row.Conditions))
		for c := range row.Conditions {
			conds = append(conds, c)
		}
		sort.Strings(conds)
		for _, c := range conds {
			fmt.Printf("    %s (%.4f)\n", c, row.Conditions[c])
		}
	}
	return nil
}

// #endregion knowledge-mode

// #region trace-mode

type runRow struct {
	RunID     string `json:"run_id"`
	Agent     string `json:"agent"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

type stepRow struct {
	Step      int          `json:"step"`
	Construct string       `json:"construct"`
	Output    trace.Output `json:"output"`
}

func runTraceMode(path, runID string, last int, jsonOut bool) error {
	store, err := trace.Open(path)
	if err != nil {
		return fmt.Errorf("open trace db: %w", err)
	}
	defer store.Close()

	if runID != "" {
		return printRunDetail(store, runID, jsonOut)
	}
	return printRunList(store, last, jsonOut)
}

func printRunList(store *trace.Store, last int, jsonOut bool) error {
	runs, err := store.Runs(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = runRow{
			RunID:     r.ID,
			Agent:     r.Agent,
			Note:      r.Note,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-10s  %-20s  %s\n", "Run", "Agent", "Time", "Note")
	fmt.Printf("%-12s+-%-10s+-%-20s+-%s\n",
		"------------", "----------", "--------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-10s  %-20s  %s\n", shortID(r.RunID), r.Agent, r.CreatedAt, r.Note)
	}
	return nil
}

func printRunDetail(store *trace.Store, runID string, jsonOut bool) error {
	steps, err := store.Steps(runID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("run %s has no recorded steps", runID)
	}

	rows := make([]stepRow, len(steps))
	for i, rec := range steps {
		rows[i] = stepRow{Step: rec.Step, Construct: rec.Construct, Output: rec.Output}
	}
	if jsonOut {
		return printJSON(rows)
	}

	current := -1
	for _, r := range rows {
		if r.Step != current {
			current = r.Step
			fmt.Printf("step %d\n", current)
		}
		fmt.Printf("  %s\n", r.Construct)
		keys := make([]string, 0, len(r.Output.Strengths))
		for k := range r.Output.Strengths {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s = %.4f\n", k, r.Output.Strengths[k])
		}
		for _, sel := range r.Output.Selection {
			fmt.Printf("    selected %s\n", sel)
		}
	}
	return nil
}

// #endregion trace-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
