package market

import (
	"context"
	"time"
)

// AssetResolver resolves a symbol to its static metadata. Implementations
// return a broker.ErrSymbolNotFound coded error for unknown symbols.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, symbol string) (Asset, error)
}

// HistoryLoader loads an ordered bar series for symbol covering [start, end]
// at the requested resolution.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, symbol string, start, end time.Time, res Resolution) (*Series, error)
}

// Provider is the narrow read interface the simulator consumes market data
// through.
type Provider interface {
	AssetResolver
	HistoryLoader
}
