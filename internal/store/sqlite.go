package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"algotemplate/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT    NOT NULL,
	market TEXT    NOT NULL,
	ts     INTEGER NOT NULL,
	open   REAL    NOT NULL,
	high   REAL    NOT NULL,
	low    REAL    NOT NULL,
	close  REAL    NOT NULL,
	volume REAL    NOT NULL,
	PRIMARY KEY (symbol, market, ts)
);`

// SQLiteStore implements BarStore backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	Market string // market used by WriteBars; defaults to "us"
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, ensures the
// schema exists and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, Market: "us"}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteBars upserts bars under the store's market.
func (s *SQLiteStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	market := s.Market
	if market == "" {
		market = "us"
	}
	return s.WriteBarsForMarket(ctx, bars, market)
}

// WriteBarsForMarket upserts bars under the given market in one transaction.
func (s *SQLiteStore) WriteBarsForMarket(ctx context.Context, bars []domain.Bar, market string) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(symbol, market, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			strings.ToUpper(b.Symbol), market, b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			return fmt.Errorf("inserting bar %s@%s: %w", b.Symbol, b.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns bars for symbol in [start, end] ordered by time. A zero
// end is unbounded.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	endMs := int64(1<<63 - 1)
	if !end.IsZero() {
		endMs = end.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, ts, open, high, low, close, volume
		FROM bars WHERE symbol = ? AND market = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`,
		strings.ToUpper(symbol), market, start.UnixMilli(), endMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b  domain.Bar
			ts int64
		)
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns the distinct symbols stored for market.
func (s *SQLiteStore) ListSymbols(ctx context.Context, market string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE market = ? ORDER BY symbol`, market)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
