// Package usage provides the durable token/cost ledger: cumulative counters
// across all sessions, globally and per model.
package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/theirongolddev/cchat/internal/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ledger_totals (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    input_tokens  INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    total_cost    REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_models (
    model         TEXT PRIMARY KEY,
    input_tokens  INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    cost          REAL NOT NULL
);
`

// ModelUsage holds the cumulative counters for one model.
type ModelUsage struct {
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Snapshot is an independent copy of the ledger state. Mutating it never
// affects ledger internals.
type Snapshot struct {
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
	ByModel      map[string]ModelUsage
}

// Ledger tracks cumulative usage. The in-memory counters are authoritative;
// every record writes the full state in one transaction, so a failed persist
// is healed by the next successful one rather than losing the event.
type Ledger struct {
	mu sync.Mutex

	db *sql.DB

	inputTokens  int64
	outputTokens int64
	totalCost    float64
	byModel      map[string]ModelUsage
}

// Open opens or creates the ledger database and loads its counters.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("usage: creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("usage: opening ledger db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("usage: creating schema: %w", err)
	}

	l := &Ledger{db: db, byModel: make(map[string]ModelUsage)}
	if err := l.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) load() error {
	row := l.db.QueryRow("SELECT input_tokens, output_tokens, total_cost FROM ledger_totals WHERE id = 1")
	if err := row.Scan(&l.inputTokens, &l.outputTokens, &l.totalCost); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("usage: reading totals: %w", err)
	}

	rows, err := l.db.Query("SELECT model, input_tokens, output_tokens, cost FROM ledger_models")
	if err != nil {
		return fmt.Errorf("usage: reading model rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var model string
		var mu ModelUsage
		if err := rows.Scan(&model, &mu.InputTokens, &mu.OutputTokens, &mu.Cost); err != nil {
			return fmt.Errorf("usage: scanning model row: %w", err)
		}
		l.byModel[model] = mu
	}
	return rows.Err()
}

// RecordUsage adds one call's token counts to the running totals and returns
// the cost of this call (not the running total). Counters update atomically:
// a snapshot taken after RecordUsage returns sees either none or all of the
// increments.
func (l *Ledger) RecordUsage(inputTokens, outputTokens int64, model string) (float64, error) {
	cost := config.CalculateCost(model, inputTokens, outputTokens)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.inputTokens += inputTokens
	l.outputTokens += outputTokens
	l.totalCost += cost

	mu := l.byModel[model]
	mu.InputTokens += inputTokens
	mu.OutputTokens += outputTokens
	mu.Cost += cost
	l.byModel[model] = mu

	if err := l.persistLocked(); err != nil {
		// In-memory counters stay updated; the next successful persist
		// writes the full state.
		return cost, err
	}
	return cost, nil
}

// persistLocked writes the complete ledger state in one transaction.
// Caller holds l.mu.
func (l *Ledger) persistLocked() error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("usage: beginning persist: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT OR REPLACE INTO ledger_totals (id, input_tokens, output_tokens, total_cost)
		VALUES (1, ?, ?, ?)`, l.inputTokens, l.outputTokens, l.totalCost)
	if err != nil {
		return fmt.Errorf("usage: writing totals: %w", err)
	}

	for model, mu := range l.byModel {
		_, err = tx.Exec(`INSERT OR REPLACE INTO ledger_models (model, input_tokens, output_tokens, cost)
			VALUES (?, ?, ?, ?)`, model, mu.InputTokens, mu.OutputTokens, mu.Cost)
		if err != nil {
			return fmt.Errorf("usage: writing model row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("usage: committing persist: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current ledger state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	byModel := make(map[string]ModelUsage, len(l.byModel))
	for m, mu := range l.byModel {
		byModel[m] = mu
	}
	return Snapshot{
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		TotalCost:    l.totalCost,
		ByModel:      byModel,
	}
}
