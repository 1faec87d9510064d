// Package sim is a paper brokerage for backtests. An Engine owns one account,
// its orders and positions, and the simulated clock. Two loops drive it: the
// market data driver (StreamMarketData) and the matching engine
// (StartTradeStream). They take turns once per tick through a lockstep
// barrier, which is also what makes the ledgers safe without locks: broker
// methods may be called from inside the bar and trade update callbacks, or
// while neither loop is running, but not from other goroutines.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/lockstep"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/pkg/id"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ broker.Broker = (*Engine)(nil)

type Engine struct {
	cfg      Config
	log      *zap.Logger
	provider market.Provider
	journal  journal.Journal
	ids      *id.Generator
	barrier  *lockstep.Barrier

	book    *orderBook
	ledger  *ledger
	assets  map[string]market.Asset
	history map[string]*market.Series
	subs    []broker.Subscription

	// now is the simulated clock. Only the driver advances it.
	now   time.Time
	stats Stats

	// ctl guards the stream cancel funcs, which Stop* may call from any
	// goroutine.
	ctl        sync.Mutex
	stopTrade  context.CancelCauseFunc
	stopMarket context.CancelCauseFunc
}

// Stats describes a session so far.
type Stats struct {
	Ticks          int
	Updates        int
	PeakEquity     decimal.Decimal
	MaxDrawdownPct decimal.Decimal
}

func NewEngine(cfg Config, provider market.Provider, opts ...Option) (*Engine, error) {
	requested := cfg.Start
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("new engine: %w", broker.NewError(broker.CodeUnsupportedDataFeed, "reason", "no market data provider"))
	}

	e := &Engine{
		cfg:      cfg,
		log:      zap.NewNop(),
		provider: provider,
		journal:  journal.Discard{},
		barrier:  lockstep.New(),
		book:     newOrderBook(),
		ledger: newLedger(broker.Account{
			ID:              cfg.AccountID,
			Cash:            cfg.Cash,
			Currency:        cfg.Currency,
			BuyingPower:     cfg.Cash.Mul(cfg.Leverage),
			Leverage:        cfg.Leverage,
			ShortingEnabled: cfg.AllowShort,
		}),
		assets:  make(map[string]market.Asset),
		history: make(map[string]*market.Series),
		now:     cfg.Start,
		stats:   Stats{PeakEquity: cfg.Cash},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = id.NewRandomGenerator()
	}
	if !cfg.Start.Equal(requested) {
		e.log.Info("start moved to the next bar boundary",
			zap.Time("requested", requested),
			zap.Time("start", cfg.Start),
			zap.String("resolution", cfg.Resolution.String()),
		)
	}
	return e, nil
}

// Now returns the simulated clock.
func (e *Engine) Now() time.Time { return e.now }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Stats() Stats { return e.stats }

// Run drives both loops until the clock passes End, either loop fails, or
// ctx is canceled.
func (e *Engine) Run(ctx context.Context, onBar broker.BarHandler, onUpdate broker.TradeUpdateHandler, subs []broker.Subscription) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.StartTradeStream(ctx, onUpdate) })
	g.Go(func() error { return e.StreamMarketData(ctx, onBar, subs) })
	return g.Wait()
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	return e.ledger.account, nil
}

func (e *Engine) GetPosition(ctx context.Context, symbol string) (broker.Position, bool) {
	p, ok := e.ledger.positions[market.NormalizeSymbol(symbol)]
	if !ok {
		return broker.Position{}, false
	}
	return p.snapshot(), true
}

// GetPositions returns every position ever opened, flat ones included.
func (e *Engine) GetPositions(ctx context.Context) map[string]broker.Position {
	out := make(map[string]broker.Position, len(e.ledger.positions))
	for sym, p := range e.ledger.positions {
		out[sym] = p.snapshot()
	}
	return out
}

func (e *Engine) GetOrder(ctx context.Context, orderID string) (broker.Order, bool) {
	en, ok := e.book.get(orderID)
	if !ok {
		return broker.Order{}, false
	}
	return en.order.Clone(), true
}

// GetOrders returns all orders in submission order.
func (e *Engine) GetOrders(ctx context.Context) []broker.Order {
	out := make([]broker.Order, 0, len(e.book.order))
	for _, en := range e.book.order {
		out = append(out, en.order.Clone())
	}
	return out
}

// GetAsset resolves symbol once per session and serves it from cache after.
func (e *Engine) GetAsset(ctx context.Context, symbol string) (market.Asset, error) {
	symbol = market.NormalizeSymbol(symbol)
	if a, ok := e.assets[symbol]; ok {
		return a, nil
	}
	a, err := e.provider.ResolveAsset(ctx, symbol)
	if err != nil {
		return market.Asset{}, err
	}
	e.assets[symbol] = a
	return a, nil
}

// GetHistory loads bars for asset. end is clamped to the simulated clock so
// a strategy never sees a bar that has not happened yet.
func (e *Engine) GetHistory(ctx context.Context, asset market.Asset, start, end time.Time, res market.Resolution) (*market.Series, error) {
	if res.IsZero() {
		res = e.cfg.Resolution
	}
	if end.After(e.now) {
		end = e.now
	}
	if end.Before(start) {
		return market.NewSeries(asset.Symbol, res, nil), nil
	}
	s, err := e.provider.LoadHistory(ctx, asset.Symbol, start, end, res)
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", asset.Symbol, err)
	}
	return s, nil
}

// bar returns symbol's bar opening exactly at t.
func (e *Engine) bar(symbol string, t time.Time) (market.Bar, bool) {
	return e.history[symbol].At(t)
}

// lastPrice is the close of the latest bar at or before the clock.
func (e *Engine) lastPrice(symbol string) (decimal.Decimal, bool) {
	b, ok := e.history[symbol].Latest(e.now)
	if !ok {
		return decimal.Zero, false
	}
	return b.Close, true
}

// symbols returns the symbols with positions, sorted.
func (e *Engine) symbols() []string {
	out := make([]string, 0, len(e.ledger.positions))
	for sym := range e.ledger.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
