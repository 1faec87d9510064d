package sim

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineErrors(t *testing.T) {
	p := newMemProvider(nil)

	cfg := testConfig(2)
	cfg.Mode = "live"
	_, err := NewEngine(cfg, p)
	assert.ErrorIs(t, err, broker.ErrUnsupportedMode)

	_, err = NewEngine(testConfig(2), nil)
	assert.ErrorIs(t, err, broker.ErrUnsupportedDataFeed)

	cfg = testConfig(2)
	cfg.End = cfg.Start.AddDate(0, 0, -1)
	_, err = NewEngine(cfg, p)
	assert.Error(t, err)

	cfg = testConfig(2)
	cfg.Leverage = d("0.5")
	_, err = NewEngine(cfg, p)
	assert.Error(t, err)

	cfg = testConfig(2)
	cfg.OnTickFailure = "ignore"
	_, err = NewEngine(cfg, p)
	assert.Error(t, err)

	for _, res := range []market.Resolution{{Amount: 1, Unit: "x"}, {Amount: -1, Unit: market.Hour}} {
		cfg = testConfig(2)
		cfg.Resolution = res
		_, err = NewEngine(cfg, p)
		assert.Error(t, err, res.String())
	}

	// no hourly bar opens inside 13:30..13:45
	cfg = testConfig(2)
	cfg.Resolution = market.OneHour
	cfg.Start = t0.Add(13*time.Hour + 30*time.Minute)
	cfg.End = t0.Add(13*time.Hour + 45*time.Minute)
	_, err = NewEngine(cfg, p)
	assert.Error(t, err)
}

func TestStartAlignsToBarBoundary(t *testing.T) {
	var hourly []market.Bar
	for h := 9; h <= 13; h++ {
		ts := t0.Add(time.Duration(h) * time.Hour)
		hourly = append(hourly, market.Bar{Time: ts, Open: d("50"), High: d("50"), Low: d("50"), Close: d("50"), Volume: d("1")})
	}

	cfg := testConfig(1)
	cfg.Resolution = market.OneHour
	cfg.Start = t0.Add(9*time.Hour + 30*time.Minute)
	cfg.End = t0.Add(13 * time.Hour)
	e := newTestEngine(t, cfg, map[string][]market.Bar{"AAPL": hourly})
	assert.True(t, e.Config().Start.Equal(t0.Add(10*time.Hour)), e.Config().Start.String())

	var seen []time.Time
	onBar := func(ctx context.Context, bar market.Bar) error {
		seen = append(seen, bar.Time)
		return nil
	}
	require.NoError(t, e.Run(context.Background(), onBar, nil, subs("AAPL")))

	require.Len(t, seen, 4)
	assert.True(t, seen[0].Equal(t0.Add(10*time.Hour)))
	assert.True(t, seen[3].Equal(t0.Add(13*time.Hour)))
	assert.Equal(t, 4, e.Stats().Ticks)
}

func TestNewEngineAccount(t *testing.T) {
	e := newTestEngine(t, testConfig(1), nil)

	acct, err := e.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "paper", acct.ID)
	assert.Equal(t, "USD", acct.Currency)
	assert.True(t, acct.Cash.Equal(d("100000")))
	assert.True(t, acct.BuyingPower.Equal(d("400000")))
	assert.True(t, acct.ShortingEnabled)
	assert.Equal(t, ModeBacktest, e.Config().Mode)
}

// Cash 100,000 at leverage 4; buy 10 at close 50, then close 55.
func TestLeverageScenario(t *testing.T) {
	bars := map[string][]market.Bar{"AAPL": {flat(0, "50"), flat(1, "55")}}
	e := newTestEngine(t, testConfig(2), bars)
	ctx := context.Background()

	var orderID string
	rec := run(t, e, []string{"AAPL"}, func(ctx context.Context, i int, bar market.Bar) error {
		switch i {
		case 0:
			o, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "AAPL", Qty: d("10"), Side: broker.Buy, Type: broker.Market})
			require.NoError(t, err)
			orderID = o.ID
			assert.Equal(t, broker.StatusNew, o.Status)

			acct, _ := e.GetAccount(ctx)
			assert.Equal(t, "399500", acct.BuyingPower.String())
		case 1:
			acct, _ := e.GetAccount(ctx)
			assert.Equal(t, "399500", acct.BuyingPower.String())

			pos, ok := e.GetPosition(ctx, "AAPL")
			require.True(t, ok)
			assert.Equal(t, "10", pos.Qty.String())
			assert.Equal(t, "500", pos.CostBasis.String())
			assert.Equal(t, broker.PositionLong, pos.Side)

			o, _ := e.GetOrder(ctx, orderID)
			assert.Equal(t, broker.StatusFilled, o.Status)
			assert.True(t, o.FilledAt.Equal(at(0)))
		}
		return nil
	})

	assert.Equal(t, []broker.TradeEvent{broker.EventNew, broker.EventFilled}, rec.events(orderID))

	acct, _ := e.GetAccount(ctx)
	assert.Equal(t, "399550", acct.BuyingPower.String())
	assert.Equal(t, "100050", acct.Cash.String())

	pos, _ := e.GetPosition(ctx, "AAPL")
	assert.Equal(t, "50", pos.UnrealizedPL.String())
	assert.Equal(t, "550", pos.MarketValue.String())
	assert.Equal(t, "55", pos.CurrentPrice.String())
	assert.True(t, pos.MarketValue.Equal(pos.CurrentPrice.Mul(pos.Qty.Abs())))
	assert.True(t, pos.UnrealizedPL.Equal(pos.MarketValue.Sub(pos.CostBasis)))

	assert.Equal(t, 2, e.Stats().Ticks)
}

func TestSubmitValidation(t *testing.T) {
	bars := map[string][]market.Bar{"AAPL": {flat(0, "50")}}
	ctx := context.Background()

	tests := []struct {
		name string
		req  broker.OrderRequest
		want error
	}{
		{"zero qty", broker.OrderRequest{Symbol: "AAPL", Qty: d("0"), Side: broker.Buy, Type: broker.Market}, broker.ErrInvalidOrder},
		{"negative qty", broker.OrderRequest{Symbol: "AAPL", Qty: d("-1"), Side: broker.Buy, Type: broker.Market}, broker.ErrInvalidOrder},
		{"limit without price", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.Limit}, broker.ErrInvalidOrder},
		{"stop limit without limit", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.StopLimit, StopPrice: px("40")}, broker.ErrInvalidOrder},
		{"stop without stop", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.Stop}, broker.ErrInvalidOrder},
		{"bad side", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: "hold", Type: broker.Market}, broker.ErrInvalidOrder},
		{"bracket missing leg", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("50"), Class: broker.Bracket, TakeProfit: px("60")}, broker.ErrInvalidOrder},
		{"negative stop loss", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("50"), StopLoss: px("-1")}, broker.ErrInvalidOrder},
		{"below min size", broker.OrderRequest{Symbol: "AAPL", Qty: d("0.0001"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("50")}, broker.ErrInvalidOrder},
		{"no price", broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Buy, Type: broker.Market}, broker.ErrInvalidOrder},
		{"unknown symbol", broker.OrderRequest{Symbol: "NOPE", Qty: d("1"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("1")}, broker.ErrSymbolNotFound},
		{"insufficient", broker.OrderRequest{Symbol: "AAPL", Qty: d("10000"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("50")}, broker.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// history is not loaded before streaming, so market orders have no price
			e := newTestEngine(t, testConfig(1), bars)
			before, _ := e.GetAccount(ctx)

			_, err := e.SubmitOrder(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			after, _ := e.GetAccount(ctx)
			assert.Equal(t, before, after)
			assert.Empty(t, e.GetOrders(ctx))
			assert.Empty(t, e.GetPositions(ctx))
		})
	}
}

func TestSubmitLimitReservesAtLimit(t *testing.T) {
	e := newTestEngine(t, testConfig(1), map[string][]market.Bar{"AAPL": {flat(0, "50")}})
	ctx := context.Background()

	o, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "aapl", Qty: d("10"), Side: broker.Buy, Type: broker.Limit, LimitPrice: px("40")})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", o.Asset.Symbol)
	assert.Equal(t, broker.GTC, o.TimeInForce)
	assert.Equal(t, broker.Simple, o.Class)
	assert.Len(t, o.ID, 26)

	acct, _ := e.GetAccount(ctx)
	assert.Equal(t, "399600", acct.BuyingPower.String())
	assert.Equal(t, "100000", acct.Cash.String())
}

func TestSubmitShortingRules(t *testing.T) {
	bars := map[string][]market.Bar{"AAPL": {flat(0, "50")}}
	ctx := context.Background()
	req := broker.OrderRequest{Symbol: "AAPL", Qty: d("1"), Side: broker.Sell, Type: broker.Limit, LimitPrice: px("50")}

	cfg := testConfig(1)
	cfg.AllowShort = false
	e := newTestEngine(t, cfg, bars)
	_, err := e.SubmitOrder(ctx, req)
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)

	p := newMemProvider(bars)
	a := market.DefaultAsset("AAPL")
	a.Shortable = false
	p.assets["AAPL"] = a
	e, err = NewEngine(testConfig(1), p)
	require.NoError(t, err)
	_, err = e.SubmitOrder(ctx, req)
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)
}

func TestAssetCachedForSession(t *testing.T) {
	p := newMemProvider(map[string][]market.Bar{"AAPL": {flat(0, "50")}})
	e, err := NewEngine(testConfig(1), p)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a, err := e.GetAsset(ctx, "aapl")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", a.Symbol)
	}
	assert.Equal(t, 1, p.resolves)

	_, err = e.GetAsset(ctx, "NOPE")
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)
}

func TestGetHistoryClampsToClock(t *testing.T) {
	bars := map[string][]market.Bar{"AAPL": {flat(0, "50"), flat(1, "51"), flat(2, "52"), flat(3, "53")}}
	e := newTestEngine(t, testConfig(4), bars)

	var lens []int
	run(t, e, []string{"AAPL"}, func(ctx context.Context, i int, bar market.Bar) error {
		asset, err := e.GetAsset(ctx, "AAPL")
		require.NoError(t, err)
		s, err := e.GetHistory(ctx, asset, at(0), at(10), market.OneDay)
		require.NoError(t, err)
		lens = append(lens, s.Len())

		last := s.Bars()[s.Len()-1]
		assert.True(t, last.Time.Equal(bar.Time))
		return nil
	})
	assert.Equal(t, []int{1, 2, 3, 4}, lens)

	asset, _ := e.GetAsset(context.Background(), "AAPL")
	s, err := e.GetHistory(context.Background(), asset, at(10), at(20), market.OneDay)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestMissingBarIsSkipped(t *testing.T) {
	// no bar on day 1
	bars := map[string][]market.Bar{"AAPL": {flat(0, "50"), flat(2, "52")}}
	e := newTestEngine(t, testConfig(3), bars)

	var seen []int
	run(t, e, []string{"AAPL"}, func(ctx context.Context, i int, bar market.Bar) error {
		seen = append(seen, i)
		return nil
	})
	assert.Equal(t, []int{0, 2}, seen)
	assert.Equal(t, 3, e.Stats().Ticks)
}

func TestUnsupportedStreamType(t *testing.T) {
	e := newTestEngine(t, testConfig(1), map[string][]market.Bar{"AAPL": {flat(0, "50")}})

	err := e.Run(context.Background(), nil, nil, []broker.Subscription{{Symbol: "AAPL", Type: broker.StreamQuote}})
	assert.ErrorIs(t, err, broker.ErrUnsupportedDataFeed)
}

func TestUnknownSubscription(t *testing.T) {
	e := newTestEngine(t, testConfig(1), map[string][]market.Bar{"AAPL": {flat(0, "50")}})

	err := e.Run(context.Background(), nil, nil, subs("NOPE"))
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)
}
