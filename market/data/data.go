// Package data holds the historical market data providers a backtest reads
// from: a directory of CSV files, a DuckDB database and a local Dukascopy
// tick cache.
package data

import (
	"strings"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
)

// Source is a provider that holds resources until closed.
type Source interface {
	market.Provider
	Close() error
}

const (
	FeedCSV       = "csv"
	FeedDuckDB    = "duckdb"
	FeedDukascopy = "dukascopy"
)

// Open returns the provider for feed reading from source.
func Open(feed, source string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(feed)) {
	case FeedCSV:
		return NewCSV(source)
	case FeedDuckDB:
		return NewDuckDB(source)
	case FeedDukascopy:
		return NewDukascopy(source)
	default:
		return nil, broker.NewError(broker.CodeUnsupportedDataFeed, "feed", feed)
	}
}

func symbolNotFound(symbol string) error {
	return broker.NewError(broker.CodeSymbolNotFound, "symbol", symbol)
}

// fileSymbol maps "BTC/USD" to the "BTC-USD" form used in file names.
func fileSymbol(symbol string) string {
	return strings.ReplaceAll(market.NormalizeSymbol(symbol), "/", "-")
}
