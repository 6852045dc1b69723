package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"algotemplate/internal/domain"
)

var csvDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// csvColumns maps a logical field to its column index; -1 means absent.
type csvColumns struct {
	date, symbol, open, high, low, close, volume int
}

var positionalColumns = csvColumns{date: 0, symbol: 1, open: 2, high: 3, low: 4, close: 5, volume: 6}

// ReadCSVFile reads bars from a CSV file. See ReadCSV.
func ReadCSVFile(path, defaultSymbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f, defaultSymbol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses rows of date,symbol,open,high,low,close,volume. A header
// row is optional; when present, columns are matched by name (dt/date,
// sym/symbol, open, high, low, close, vol/volume) so a two-column dt,close
// file also works. Missing open/high/low default to close. Rows keep file
// order.
func ReadCSV(r io.Reader, defaultSymbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := positionalColumns
	var bars []domain.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}

		if line == 1 {
			if _, err := parseCSVDate(rec[0]); err != nil {
				hdr, herr := headerColumns(rec)
				if herr != nil {
					return nil, herr
				}
				cols = hdr
				continue
			}
		}

		bar, err := parseCSVRow(rec, cols, defaultSymbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func headerColumns(rec []string) (csvColumns, error) {
	cols := csvColumns{date: -1, symbol: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "dt", "date", "timestamp":
			cols.date = i
		case "sym", "symbol":
			cols.symbol = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close":
			cols.close = i
		case "vol", "volume":
			cols.volume = i
		}
	}
	if cols.date < 0 || cols.close < 0 {
		return cols, fmt.Errorf("csv header %v needs date and close columns", rec)
	}
	return cols, nil
}

func parseCSVRow(rec []string, cols csvColumns, defaultSymbol string) (domain.Bar, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(i int) (float64, bool, error) {
		s := field(i)
		if s == "" {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("parsing %q: %w", s, err)
		}
		return v, true, nil
	}

	ts, err := parseCSVDate(field(cols.date))
	if err != nil {
		return domain.Bar{}, err
	}
	closePx, ok, err := num(cols.close)
	if err != nil {
		return domain.Bar{}, err
	}
	if !ok {
		return domain.Bar{}, errors.New("missing close")
	}

	bar := domain.FlatBar(defaultSymbol, ts, closePx)
	if sym := field(cols.symbol); sym != "" {
		bar.Symbol = sym
	}
	for _, f := range []struct {
		idx int
		dst *float64
	}{
		{cols.open, &bar.Open},
		{cols.high, &bar.High},
		{cols.low, &bar.Low},
		{cols.volume, &bar.Volume},
	} {
		v, ok, err := num(f.idx)
		if err != nil {
			return domain.Bar{}, err
		}
		if ok {
			*f.dst = v
		}
	}
	return bar, nil
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
