// Package store archives insider filings in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bighogz/insider-vibes/internal/models"
)

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS filings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker           TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	filing_date      TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	owner            TEXT NOT NULL,
	role             TEXT NOT NULL,
	source           TEXT NOT NULL DEFAULT '',
	items            TEXT NOT NULL,
	archived_at      TEXT NOT NULL,
	UNIQUE (ticker, filing_date, owner, items)
);
CREATE INDEX IF NOT EXISTS idx_filings_ticker_date ON filings (ticker, filing_date DESC);
`

// Archive is a FilingSource backed by SQLite.
type Archive struct {
	db *sql.DB
}

// Open creates the database file and its parent directory if needed.
func Open(ctx context.Context, path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Save inserts filings, ignoring ones already archived. It returns the
// number of new rows.
func (a *Archive) Save(ctx context.Context, filings []models.Filing) (int, error) {
	if len(filings) == 0 {
		return 0, nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO filings
		(ticker, company, filing_date, transaction_date, owner, role, source, items, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, f := range filings {
		items, err := json.Marshal(f.NonDerivativeTransactions)
		if err != nil {
			return 0, fmt.Errorf("encode line items: %w", err)
		}
		txDate := f.TransactionDate
		if txDate.IsZero() {
			txDate = f.FilingDate
		}
		res, err := stmt.ExecContext(ctx,
			strings.ToUpper(strings.TrimSpace(f.Ticker)),
			f.CompanyName,
			f.FilingDate.Format(dateLayout),
			txDate.Format(dateLayout),
			f.ReportingOwner.Name,
			f.ReportingOwner.Classification,
			f.Source,
			string(items),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert filing: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Filings returns archived filings for ticker, newest first. Zero from/to
// leave that side of the range open.
func (a *Archive) Filings(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error) {
	q := `SELECT ticker, company, filing_date, transaction_date, owner, role, source, items
		FROM filings WHERE ticker = ?`
	args := []interface{}{strings.ToUpper(strings.TrimSpace(ticker))}
	if !from.IsZero() {
		q += " AND filing_date >= ?"
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		q += " AND filing_date <= ?"
		args = append(args, to.Format(dateLayout))
	}
	q += " ORDER BY filing_date DESC, id ASC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query filings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Filing, 0)
	for rows.Next() {
		var f models.Filing
		var filed, transacted, items string
		if err := rows.Scan(&f.Ticker, &f.CompanyName, &filed, &transacted,
			&f.ReportingOwner.Name, &f.ReportingOwner.Classification, &f.Source, &items); err != nil {
			return nil, err
		}
		if f.FilingDate, err = time.Parse(dateLayout, filed); err != nil {
			return nil, fmt.Errorf("parse filing_date %q: %w", filed, err)
		}
		if f.TransactionDate, err = time.Parse(dateLayout, transacted); err != nil {
			return nil, fmt.Errorf("parse transaction_date %q: %w", transacted, err)
		}
		if err := json.Unmarshal([]byte(items), &f.NonDerivativeTransactions); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Tickers lists archived tickers alphabetically.
func (a *Archive) Tickers(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT DISTINCT ticker FROM filings ORDER BY ticker")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *Archive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
