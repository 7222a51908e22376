// Package trace persists per-step construct outputs to SQLite so a run can
// be inspected after the fact. Each run gets a uuid; each recorded step
// stores one row per construct site with the output serialized as JSON.
package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kibbyd/constructnet/internal/numdict"
	"github.com/kibbyd/constructnet/internal/realizer"
	"github.com/kibbyd/constructnet/internal/sym"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	agent      TEXT NOT NULL,
	note       TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	step       INTEGER NOT NULL,
	construct  TEXT NOT NULL,
	output     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, step);
`

// #endregion schema

// #region store
// Store manages trace runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite trace database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region records
// Run identifies one recorded run.
type Run struct {
	ID        string
	Agent     string
	Note      string
	CreatedAt time.Time
}

// StepRecord is one construct site's output at one step.
type StepRecord struct {
	RunID     string
	Step      int
	Construct string
	Output    Output
	CreatedAt time.Time
}

// Output is the serialized form of a pulled value.
type Output struct {
	Strengths map[string]float64 `json:"strengths,omitempty"`
	Selection []string           `json:"selection,omitempty"`
}

// #endregion records

// #region begin-run
// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(agent, note string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	var notePtr interface{}
	if note != "" {
		notePtr = note
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, agent, note, created_at) VALUES (?, ?, ?, ?)`,
		id, agent, notePtr, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// #endregion begin-run

// #region record-step
// RecordStep persists the agent's visible output for one step: the site map
// is flattened recursively, nested structures contributing slash-joined
// construct paths.
func (s *Store) RecordStep(runID string, step int, site realizer.SiteMap) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var walk func(prefix string, site realizer.SiteMap) error
	walk = func(prefix string, site realizer.SiteMap) error {
		for construct, v := range site {
			path := construct.String()
			if prefix != "" {
				path = prefix + "/" + path
			}
			if nested, ok := v.(realizer.SiteMap); ok {
				if err := walk(path, nested); err != nil {
					return err
				}
				continue
			}
			payload, err := json.Marshal(serialize(v))
			if err != nil {
				return fmt.Errorf("marshal %s: %w", path, err)
			}
			_, err = tx.Exec(
				`INSERT INTO steps (run_id, step, construct, output, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, step, path, string(payload), now,
			)
			if err != nil {
				return fmt.Errorf("insert step row %s: %w", path, err)
			}
		}
		return nil
	}
	if err := walk("", site); err != nil {
		return err
	}
	return tx.Commit()
}

func serialize(v realizer.Value) Output {
	var out Output
	fill := func(d numdict.NumDict) {
		if d.Len() == 0 {
			return
		}
		out.Strengths = make(map[string]float64, d.Len())
		d.Each(func(k sym.Symbol, val float64) {
			out.Strengths[k.String()] = val
		})
	}
	switch t := v.(type) {
	case realizer.Decision:
		fill(t.Strengths)
		for _, sel := range t.Selection {
			out.Selection = append(out.Selection, sel.String())
		}
	default:
		fill(realizer.AsStrengths(v))
	}
	return out
}

// #endregion record-step

// #region queries
// Runs returns the most recent runs.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, agent, note, created_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var note sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.Agent, &note, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if note.Valid {
			r.Note = note.String
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns every recorded row of a run in step order.
func (s *Store) Steps(runID string) ([]StepRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, step, construct, output, created_at
		 FROM steps WHERE run_id = ? ORDER BY step, construct`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var payload, created string
		if err := rows.Scan(&rec.RunID, &rec.Step, &rec.Construct, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Output); err != nil {
			return nil, fmt.Errorf("unmarshal step output: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion queries
