package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// CSV serves bars from <dir>/<SYMBOL>.csv files with the columns
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339 or a plain 2006-01-02 date. A header row is allowed
// and empty rows are skipped. Symbols containing "/" use "-" in the file name.
type CSV struct {
	dir    string
	assets map[string]market.Asset
}

func NewCSV(dir string) (*CSV, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("csv source %s: not a directory", dir)
	}

	assets, err := loadAssets(dir, market.DefaultAsset)
	if err != nil {
		return nil, err
	}
	return &CSV{dir: dir, assets: assets}, nil
}

func (p *CSV) path(symbol string) string {
	return filepath.Join(p.dir, fileSymbol(symbol)+".csv")
}

func (p *CSV) ResolveAsset(ctx context.Context, symbol string) (market.Asset, error) {
	symbol = market.NormalizeSymbol(symbol)
	if a, ok := p.assets[symbol]; ok {
		return a, nil
	}
	if _, err := os.Stat(p.path(symbol)); err != nil {
		return market.Asset{}, symbolNotFound(symbol)
	}
	return market.DefaultAsset(symbol), nil
}

func (p *CSV) LoadHistory(ctx context.Context, symbol string, start, end time.Time, res market.Resolution) (*market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = market.NormalizeSymbol(symbol)

	f, err := os.Open(p.path(symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, symbolNotFound(symbol)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := readBars(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.path(symbol), err)
	}
	return market.NewSeries(symbol, res, market.Resample(bars, res)).Between(start, end), nil
}

func (p *CSV) Close() error { return nil }

func readBars(r io.Reader, symbol string) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		bars     []market.Bar
		sawFirst bool
		line     int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b.Symbol = symbol
		bars = append(bars, b)
	}
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 5 {
		return market.Bar{}, fmt.Errorf("want at least 5 columns, got %d", len(row))
	}

	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Bar{}, err
	}

	var vals [5]decimal.Decimal
	n := 5
	if len(row) < 6 {
		n = 4
	}
	for i := 0; i < n; i++ {
		v, err := decimal.NewFromString(strings.TrimSpace(row[i+1]))
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q: %w", barColumns[i], row[i+1], err)
		}
		vals[i] = v
	}

	return market.Bar{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

var barColumns = [...]string{"open", "high", "low", "close", "volume"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}
