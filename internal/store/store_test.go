package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"algotemplate/internal/domain"
)

func sampleBars() []domain.Bar {
	return []domain.Bar{
		{
			Symbol:    "AAPL",
			Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:      185.0, High: 186.5, Low: 184.0, Close: 185.5,
			Volume: 50000000,
		},
		{
			Symbol:    "AAPL",
			Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:      185.5, High: 187.0, Low: 185.0, Close: 186.0,
			Volume: 45000000,
		},
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	ts := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	bp := ps.barPath("aapl", "us", ts)

	wantBarPath := filepath.Join("/data", "us", "daily", "AAPL", "2024.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	if err := ps.WriteBars(ctx, sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "AAPL", "us", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}

	// Unbounded range reads everything on disk.
	all, err := ps.ReadBars(ctx, "AAPL", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars (unbounded): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ReadBars (unbounded) returned %d bars, want 2", len(all))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars1 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:      400.0, High: 405.0, Low: 399.0, Close: 403.0, Volume: 30000000,
		},
	}
	if err := ps.WriteBars(ctx, bars1); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Write another bar for same symbol+year: should merge, not overwrite.
	bars2 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:      403.0, High: 410.0, Low: 402.0, Close: 408.0, Volume: 35000000,
		},
	}
	if err := ps.WriteBars(ctx, bars2); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "MSFT", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "GOOGL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols returned %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func TestSQLiteStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	ctx := context.Background()
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}

	bars := sampleBars()
	if err := store.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	// Re-writing the same bars is an upsert.
	if err := store.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars (again): %v", err)
	}

	got, err := store.ReadBars(ctx, "aapl", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(bars[0].Timestamp) || got[1].Close != 186.0 {
		t.Errorf("ReadBars = %+v, want the written bars in order", got)
	}

	narrow, err := store.ReadBars(ctx, "AAPL", "us", bars[1].Timestamp, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars (narrow): %v", err)
	}
	if len(narrow) != 1 {
		t.Errorf("ReadBars (narrow) returned %d bars, want 1", len(narrow))
	}

	symbols, err := store.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("ListSymbols = %v, want [AAPL]", symbols)
	}
}

func TestReadCSVPositional(t *testing.T) {
	in := "2017-08-09,AAPL,1,2,0.5,1.5,100\n2017-08-10,AAPL,1.5,2.5,1,2,200\n"
	bars, err := ReadCSV(strings.NewReader(in), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("ReadCSV returned %d bars, want 2", len(bars))
	}
	b := bars[1]
	if b.Symbol != "AAPL" || b.Open != 1.5 || b.High != 2.5 || b.Low != 1 || b.Close != 2 || b.Volume != 200 {
		t.Errorf("bars[1] = %+v, unexpected fields", b)
	}
}

func TestReadCSVHeader(t *testing.T) {
	in := "dt,close\n2017-08-09,10\n2017-08-10,11\n"
	bars, err := ReadCSV(strings.NewReader(in), "SIM")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("ReadCSV returned %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "SIM" || bars[0].Open != 10 || bars[0].High != 10 {
		t.Errorf("bars[0] = %+v, want flat SIM bar at 10", bars[0])
	}
	if got := Closes(bars); got[0] != 10 || got[1] != 11 {
		t.Errorf("Closes = %v, want [10 11]", got)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]string{
		"bad header": "foo,bar\n2017-08-09,1\n",
		"bad close":  "2017-08-09,AAPL,1,1,1,abc,0\n",
		"bad date":   "dt,close\nyesterday,1\n",
	}
	for name, in := range tests {
		if _, err := ReadCSV(strings.NewReader(in), ""); err == nil {
			t.Errorf("%s: ReadCSV returned nil error", name)
		}
	}
}

func TestFilterRange(t *testing.T) {
	bars := sampleBars()
	if got := FilterRange(bars, time.Time{}, time.Time{}); len(got) != 2 {
		t.Errorf("unbounded FilterRange returned %d bars, want 2", len(got))
	}
	got := FilterRange(bars, time.Time{}, bars[0].Timestamp)
	if len(got) != 1 || !got[0].Timestamp.Equal(bars[0].Timestamp) {
		t.Errorf("FilterRange up to first bar = %+v, want only the first bar", got)
	}
}
