package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rustyeddy/papertrader/market"
)

// DuckDB serves bars from a DuckDB database holding
//
//	bars(symbol, ts, open, high, low, close, volume)
//
// and, optionally, an assets table with the market.Asset columns. Prices are
// read as text so any numeric column type keeps its exact value.
type DuckDB struct {
	db *sql.DB
}

func NewDuckDB(dataSourceName string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", dataSourceName, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb %s: %w", dataSourceName, err)
	}
	return &DuckDB{db: db}, nil
}

func (p *DuckDB) Close() error {
	return p.db.Close()
}

func (p *DuckDB) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

func (p *DuckDB) ResolveAsset(ctx context.Context, symbol string) (market.Asset, error) {
	symbol = market.NormalizeSymbol(symbol)

	ok, err := p.hasTable(ctx, "assets")
	if err != nil {
		return market.Asset{}, err
	}
	if ok {
		a := market.DefaultAsset(symbol)
		err := p.db.QueryRowContext(ctx, `
			SELECT name, class, exchange, status, tradable, marginable, shortable, fractionable,
			       CAST(min_order_size AS VARCHAR), CAST(min_price_increment AS VARCHAR)
			FROM assets WHERE symbol = ?`, symbol).Scan(
			&a.Name,
			&a.Class,
			&a.Exchange,
			&a.Status,
			&a.Tradable,
			&a.Marginable,
			&a.Shortable,
			&a.Fractionable,
			&a.MinOrderSize,
			&a.MinPriceIncrement,
		)
		switch {
		case err == nil:
			return a, nil
		case err != sql.ErrNoRows:
			return market.Asset{}, fmt.Errorf("query asset %s: %w", symbol, err)
		}
	}

	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM bars WHERE symbol = ?`, symbol).Scan(&n); err != nil {
		return market.Asset{}, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	if n == 0 {
		return market.Asset{}, symbolNotFound(symbol)
	}
	return market.DefaultAsset(symbol), nil
}

func (p *DuckDB) LoadHistory(ctx context.Context, symbol string, start, end time.Time, res market.Resolution) (*market.Series, error) {
	symbol = market.NormalizeSymbol(symbol)

	rows, err := p.db.QueryContext(ctx, `
		SELECT ts,
		       CAST(open AS VARCHAR), CAST(high AS VARCHAR), CAST(low AS VARCHAR),
		       CAST(close AS VARCHAR), CAST(volume AS VARCHAR)
		FROM bars
		WHERE symbol = ? AND ts >= ? AND ts < ?
		ORDER BY ts`,
		symbol, res.Truncate(start), end.Add(res.Duration()))
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		b := market.Bar{Symbol: symbol}
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		b.Time = b.Time.UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	if len(bars) == 0 {
		if _, err := p.ResolveAsset(ctx, symbol); err != nil {
			return nil, err
		}
	}
	return market.NewSeries(symbol, res, market.Resample(bars, res)).Between(start, end), nil
}
