package knowledge

import (
	"database/sql"
	"fmt"

	"github.com/kibbyd/constructnet/internal/sym"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS chunk_features (
	chunk  TEXT NOT NULL,
	tag    TEXT NOT NULL,
	val    TEXT NOT NULL,
	lag    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (chunk, tag, val, lag)
);

CREATE TABLE IF NOT EXISTS chunk_weights (
	chunk  TEXT NOT NULL,
	tag    TEXT NOT NULL,
	lag    INTEGER NOT NULL DEFAULT 0,
	weight REAL NOT NULL,
	PRIMARY KEY (chunk, tag, lag)
);

CREATE TABLE IF NOT EXISTS rules (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	conclusion TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_conditions (
	rule_id   INTEGER NOT NULL,
	condition TEXT NOT NULL,
	weight    REAL NOT NULL,
	PRIMARY KEY (rule_id, condition),
	FOREIGN KEY (rule_id) REFERENCES rules(id)
);
`

// #endregion schema

// #region database
// Database persists chunk and rule stores in SQLite.
type Database struct {
	db *sql.DB
}

// Open opens a SQLite database at path and runs migrations.
func Open(path string) (*Database, error) {
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
	return &Database{db: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (d *Database) DB() *sql.DB {
	return d.db
}

// #endregion database

// #region save
// SaveChunks replaces the persisted chunk store with c, atomically.
func (d *Database) SaveChunks(c *Chunks) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunk_features`); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunk_weights`); err != nil {
		return fmt.Errorf("clear weights: %w", err)
	}

	var insertErr error
	c.Each(func(ch sym.Symbol, form Form) {
		if insertErr != nil {
			return
		}
		for _, f := range form.Features {
			_, err := tx.Exec(
				`INSERT INTO chunk_features (chunk, tag, val, lag) VALUES (?, ?, ?, ?)`,
				ch.Tag, f.Tag, f.Val, f.Lag,
			)
			if err != nil {
				insertErr = fmt.Errorf("insert feature %v of %v: %w", f, ch, err)
				return
			}
		}
		for _, dim := range form.dims() {
			_, err := tx.Exec(
				`INSERT INTO chunk_weights (chunk, tag, lag, weight) VALUES (?, ?, ?, ?)`,
				ch.Tag, dim.Tag, dim.Lag, form.Weights[dim],
			)
			if err != nil {
				insertErr = fmt.Errorf("insert weight %v of %v: %w", dim, ch, err)
				return
			}
		}
	})
	if insertErr != nil {
		return insertErr
	}
	return tx.Commit()
}

// SaveRules replaces the persisted rule store with r, atomically.
func (d *Database) SaveRules(r *Rules) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rule_conditions`); err != nil {
		return fmt.Errorf("clear conditions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	var insertErr error
	r.Each(func(rule Rule) {
		if insertErr != nil {
			return
		}
		res, err := tx.Exec(`INSERT INTO rules (conclusion) VALUES (?)`, rule.Conclusion.Tag)
		if err != nil {
			insertErr = fmt.Errorf("insert rule for %v: %w", rule.Conclusion, err)
			return
		}
		id, err := res.LastInsertId()
		if err != nil {
			insertErr = fmt.Errorf("rule id: %w", err)
			return
		}
		for _, cond := range conditionSymbols(rule) {
			_, err := tx.Exec(
				`INSERT INTO rule_conditions (rule_id, condition, weight) VALUES (?, ?, ?)`,
				id, cond.Tag, rule.Conditions[cond],
			)
			if err != nil {
				insertErr = fmt.Errorf("insert condition %v: %w", cond, err)
				return
			}
		}
	})
	if insertErr != nil {
		return insertErr
	}
	return tx.Commit()
}

// #endregion save

// #region load
// LoadChunks reads the persisted chunk store.
func (d *Database) LoadChunks() (*Chunks, error) {
	features := make(map[string][]sym.Symbol)
	rows, err := d.db.Query(`SELECT chunk, tag, val, lag FROM chunk_features ORDER BY chunk, tag, val, lag`)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var chunk, tag, val string
		var lag int
		if err := rows.Scan(&chunk, &tag, &val, &lag); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features[chunk] = append(features[chunk], sym.NewLagged(tag, val, lag))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weights := make(map[string]map[sym.Dim]float64)
	wrows, err := d.db.Query(`SELECT chunk, tag, lag, weight FROM chunk_weights`)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var chunk, tag string
		var lag int
		var w float64
		if err := wrows.Scan(&chunk, &tag, &lag, &w); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		if weights[chunk] == nil {
			weights[chunk] = make(map[sym.Dim]float64)
		}
		weights[chunk][sym.Dim{Tag: tag, Lag: lag}] = w
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}

	out := NewChunks()
	for chunk, fs := range features {
		if err := out.Link(sym.NewChunk(chunk), fs, weights[chunk]); err != nil {
			return nil, fmt.Errorf("relink %s: %w", chunk, err)
		}
	}
	return out, nil
}

// LoadRules reads the persisted rule store.
func (d *Database) LoadRules() (*Rules, error) {
	rows, err := d.db.Query(
		`SELECT r.id, r.conclusion, c.condition, c.weight
		 FROM rules r JOIN rule_conditions c ON c.rule_id = r.id
		 ORDER BY r.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	type pending struct {
		conclusion string
		conditions map[sym.Symbol]float64
	}
	var order []int64
	byID := make(map[int64]*pending)
	for rows.Next() {
		var id int64
		var conclusion, condition string
		var w float64
		if err := rows.Scan(&id, &conclusion, &condition, &w); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		p, ok := byID[id]
		if !ok {
			p = &pending{conclusion: conclusion, conditions: make(map[sym.Symbol]float64)}
			byID[id] = p
			order = append(order, id)
		}
		p.conditions[sym.NewChunk(condition)] = w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := NewRules()
	for _, id := range order {
		p := byID[id]
		if err := out.Define(sym.NewChunk(p.conclusion), p.conditions); err != nil {
			return nil, fmt.Errorf("redefine rule for %s: %w", p.conclusion, err)
		}
	}
	return out, nil
}

// #endregion load
