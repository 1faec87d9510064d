package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func px(s string) *decimal.Decimal { return broker.Price(d(s)) }

// at returns the i-th daily tick time.
func at(i int) time.Time { return t0.AddDate(0, 0, i) }

// ohlc builds a daily bar for tick i.
func ohlc(i int, o, h, l, c string) market.Bar {
	return market.Bar{Time: at(i), Open: d(o), High: d(h), Low: d(l), Close: d(c), Volume: d("1000")}
}

// flat builds a bar where every price is c.
func flat(i int, c string) market.Bar {
	return ohlc(i, c, c, c, c)
}

type memProvider struct {
	mu       sync.Mutex
	bars     map[string][]market.Bar
	assets   map[string]market.Asset
	resolves int
}

func newMemProvider(bars map[string][]market.Bar) *memProvider {
	return &memProvider{bars: bars, assets: map[string]market.Asset{}}
}

func (p *memProvider) ResolveAsset(ctx context.Context, symbol string) (market.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves++

	if a, ok := p.assets[symbol]; ok {
		return a, nil
	}
	if _, ok := p.bars[symbol]; !ok {
		return market.Asset{}, broker.NewError(broker.CodeSymbolNotFound, "symbol", symbol)
	}
	return market.DefaultAsset(symbol), nil
}

func (p *memProvider) LoadHistory(ctx context.Context, symbol string, start, end time.Time, res market.Resolution) (*market.Series, error) {
	bars, ok := p.bars[symbol]
	if !ok {
		return nil, broker.NewError(broker.CodeSymbolNotFound, "symbol", symbol)
	}
	return market.NewSeries(symbol, res, bars).Between(start, end), nil
}

func testConfig(days int) Config {
	return Config{
		Cash:        d("100000"),
		Leverage:    d("4"),
		AllowShort:  true,
		Start:       t0,
		End:         at(days - 1),
		Resolution:  market.OneDay,
		TickRetries: 0,
	}
}

func newTestEngine(t *testing.T, cfg Config, bars map[string][]market.Bar, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, newMemProvider(bars), append([]Option{WithSeed(1)}, opts...)...)
	require.NoError(t, err)
	return e
}

func subs(symbols ...string) []broker.Subscription {
	out := make([]broker.Subscription, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, broker.Subscription{Symbol: s, Type: broker.StreamBar})
	}
	return out
}

// recorder collects trade updates and checks the queue invariant after
// every matching pass.
type recorder struct {
	t       *testing.T
	e       *Engine
	updates []broker.TradeUpdate
}

func (r *recorder) handle(ctx context.Context, u broker.TradeUpdate) error {
	require.NoError(r.t, r.e.book.verify())
	r.updates = append(r.updates, u)
	return nil
}

func (r *recorder) events(orderID string) []broker.TradeEvent {
	var out []broker.TradeEvent
	for _, u := range r.updates {
		if u.Order.ID == orderID {
			out = append(out, u.Event)
		}
	}
	return out
}

// script runs fn for each bar with its tick index.
type script func(ctx context.Context, i int, bar market.Bar) error

func run(t *testing.T, e *Engine, symbols []string, fn script) *recorder {
	t.Helper()
	rec := &recorder{t: t, e: e}
	onBar := func(ctx context.Context, bar market.Bar) error {
		if fn == nil {
			return nil
		}
		i := int(bar.Time.Sub(e.cfg.Start) / e.cfg.Resolution.Duration())
		return fn(ctx, i, bar)
	}
	require.NoError(t, e.Run(context.Background(), onBar, rec.handle, subs(symbols...)))
	return rec
}

// memJournal keeps everything in memory.
type memJournal struct {
	updates  []journal.UpdateRecord
	accounts []journal.AccountSnapshot
	failures int
}

func (j *memJournal) RecordUpdate(u journal.UpdateRecord) error {
	j.updates = append(j.updates, u)
	return nil
}

func (j *memJournal) RecordAccount(a journal.AccountSnapshot) error {
	if j.failures > 0 {
		j.failures--
		return errJournal
	}
	j.accounts = append(j.accounts, a)
	return nil
}

func (j *memJournal) Close() error { return nil }
