/*
Package sqlite provides a SQLite-backed budget archive and save-slot store.

PURPOSE:
  Keeps closed budget years and named save files across server restarts.

INTERFACES IMPLEMENTED:
  budget.Archive:  closed budget years
  savefile.Store:  save slots

KEY TABLES:
  budgets:       one row per archived year (flags, closing balance)
  budget_lines:  one row per (year, line), amount and control as decimal text
  saves:         save files as blobs, keyed by UUID

AMOUNTS:
  Money is stored as decimal TEXT produced by shopspring/decimal so that
  archived ledgers read back exactly as they were written and stay
  queryable with SQL. Non-finite values never reach the database.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, with WAL mode so readers do not
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/treasury.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  sink := &budget.ArchivingSink{Archive: store}

SEE ALSO:
  - budget/store.go: Archive interface and ArchivingSink
  - budget/store/memory.go: in-memory archive for testing
  - savefile/slots.go: save slot interface and memory store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/savefile"
)

// Store implements budget.Archive and savefile.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ budget.Archive = (*Store)(nil)
	_ savefile.Store = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Closed budget years
	CREATE TABLE IF NOT EXISTS budgets (
		year INTEGER PRIMARY KEY,
		flags INTEGER NOT NULL,
		balance TEXT NOT NULL,
		archived_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS budget_lines (
		year INTEGER NOT NULL REFERENCES budgets(year) ON DELETE CASCADE,
		line TEXT NOT NULL,
		amount TEXT NOT NULL,
		control TEXT NOT NULL,
		PRIMARY KEY (year, line)
	);

	-- Save slots
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		balance TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saves_created_at
		ON saves(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BUDGET ARCHIVE (budget.Archive interface)
// =============================================================================

// SaveBudget stores b, replacing any budget already archived for its year.
func (s *Store) SaveBudget(ctx context.Context, b budget.Budget) error {
	balance, err := toDecimal(b.Line[budget.BudgetBalance])
	if err != nil {
		return fmt.Errorf("budget %d balance: %w", b.Year, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM budgets WHERE year = ?", b.Year); err != nil {
		return fmt.Errorf("failed to replace budget: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx,
		"INSERT INTO budgets (year, flags, balance, archived_at) VALUES (?, ?, ?, ?)",
		b.Year, int32(b.Flags), balance.String(), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to insert budget: %w", err)
	}

	stmt, err := sqlTx.PrepareContext(ctx,
		"INSERT INTO budget_lines (year, line, amount, control) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare budget lines: %w", err)
	}
	defer stmt.Close()

	for i := range b.Line {
		l := budget.Line(i)
		amount, err := toDecimal(b.Line[i])
		if err != nil {
			return fmt.Errorf("budget %d %s: %w", b.Year, l, err)
		}
		control, err := toDecimal(b.Control[i])
		if err != nil {
			return fmt.Errorf("budget %d %s control: %w", b.Year, l, err)
		}
		if _, err := stmt.ExecContext(ctx, b.Year, l.Code(), amount.String(), control.String()); err != nil {
			return fmt.Errorf("failed to insert budget line: %w", err)
		}
	}

	return sqlTx.Commit()
}

// Budget returns the archived budget for year.
func (s *Store) Budget(ctx context.Context, year int) (budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flags int32
	err := s.db.QueryRowContext(ctx, "SELECT flags FROM budgets WHERE year = ?", year).Scan(&flags)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.Budget{}, budget.ErrBudgetNotFound
	}
	if err != nil {
		return budget.Budget{}, fmt.Errorf("failed to get budget: %w", err)
	}

	b := budget.NewBudget(year, budget.BudgetFlags(flags))
	if err := s.loadLines(ctx, &b); err != nil {
		return budget.Budget{}, err
	}
	return b, nil
}

// Budgets returns every archived budget, oldest first.
func (s *Store) Budgets(ctx context.Context) ([]budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT year, flags FROM budgets ORDER BY year ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	var result []budget.Budget
	for rows.Next() {
		var (
			year  int
			flags int32
		)
		if err := rows.Scan(&year, &flags); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		result = append(result, budget.NewBudget(year, budget.BudgetFlags(flags)))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range result {
		if err := s.loadLines(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) loadLines(ctx context.Context, b *budget.Budget) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT line, amount, control FROM budget_lines WHERE year = ?", b.Year)
	if err != nil {
		return fmt.Errorf("failed to query budget lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, amount, control string
		if err := rows.Scan(&code, &amount, &control); err != nil {
			return fmt.Errorf("failed to scan budget line: %w", err)
		}
		l, ok := budget.LineByCode(code)
		if !ok {
			// Lines removed from the chart of accounts are skipped.
			continue
		}
		if b.Line[l], err = fromDecimal(amount); err != nil {
			return fmt.Errorf("budget %d %s: %w", b.Year, code, err)
		}
		if b.Control[l], err = fromDecimal(control); err != nil {
			return fmt.Errorf("budget %d %s control: %w", b.Year, code, err)
		}
	}
	return rows.Err()
}

// =============================================================================
// SAVE SLOTS (savefile.Store interface)
// =============================================================================

func (s *Store) PutSave(ctx context.Context, rec savefile.Record) (savefile.Record, error) {
	rec = savefile.NewRecord(rec)
	balance, err := toDecimal(rec.Balance)
	if err != nil {
		balance = decimal.Zero
	}
	if rec.Data == nil {
		rec.Data = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO saves (id, name, version, balance, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Name, rec.Version, balance.String(), rec.Data,
		rec.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return savefile.Record{}, fmt.Errorf("failed to insert save: %w", err)
	}
	return rec, nil
}

func (s *Store) GetSave(ctx context.Context, id string) (savefile.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, version, balance, created_at, data FROM saves WHERE id = ?", id)
	return scanSave(row, true)
}

func (s *Store) LatestSave(ctx context.Context) (savefile.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, version, balance, created_at, data FROM saves ORDER BY created_at DESC LIMIT 1")
	return scanSave(row, true)
}

func (s *Store) ListSaves(ctx context.Context) ([]savefile.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, version, balance, created_at FROM saves ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query saves: %w", err)
	}
	defer rows.Close()

	var result []savefile.Record
	for rows.Next() {
		rec, err := scanSave(rows, false)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// createdAtLayout is fixed width so that saves sort by their text column.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

func scanSave(row scanner, withData bool) (savefile.Record, error) {
	var (
		rec       savefile.Record
		balance   string
		createdAt string
	)
	dest := []any{&rec.ID, &rec.Name, &rec.Version, &balance, &createdAt}
	if withData {
		dest = append(dest, &rec.Data)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return savefile.Record{}, savefile.ErrSaveNotFound
	}
	if err != nil {
		return savefile.Record{}, fmt.Errorf("failed to scan save: %w", err)
	}
	rec.Balance, _ = fromDecimal(balance)
	rec.CreatedAt, _ = time.Parse(createdAtLayout, createdAt)
	return rec, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"budget_lines", "budgets", "saves"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func toDecimal(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, budget.ErrNonFinite
	}
	return decimal.NewFromFloat(v), nil
}

func fromDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}
