package strategies

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(symbol string, i int, c string) market.Bar {
	p := d(c)
	return market.Bar{Symbol: symbol, Time: t0.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
}

// mockBroker records requests and serves canned state.
type mockBroker struct {
	account   broker.Account
	positions map[string]broker.Position
	submitErr error
	closeErr  error

	submitted []broker.OrderRequest
	closed    []string
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		account:   broker.Account{Cash: d("10000"), BuyingPower: d("40000")},
		positions: map[string]broker.Position{},
	}
}

func (m *mockBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	if m.submitErr != nil {
		return broker.Order{}, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return broker.Order{
		ID:     fmt.Sprintf("order-%d", len(m.submitted)),
		Asset:  market.DefaultAsset(req.Symbol),
		Side:   req.Side,
		Type:   req.Type,
		Qty:    req.Qty,
		Status: broker.StatusNew,
	}, nil
}

func (m *mockBroker) CancelOrder(ctx context.Context, orderID string) (broker.Order, error) {
	return broker.Order{}, broker.NewError(broker.CodeOrderNotFound, "order_id", orderID)
}

func (m *mockBroker) CloseOrder(ctx context.Context, orderID string) (broker.Order, error) {
	return broker.Order{}, broker.NewError(broker.CodeOrderNotFound, "order_id", orderID)
}

func (m *mockBroker) ClosePosition(ctx context.Context, symbol string, opts broker.ClosePositionOptions) (broker.Order, error) {
	if m.closeErr != nil {
		return broker.Order{}, m.closeErr
	}
	p, ok := m.positions[symbol]
	if !ok || p.Qty.IsZero() {
		return broker.Order{}, broker.NewError(broker.CodeNoPosition, "symbol", symbol)
	}
	m.closed = append(m.closed, symbol)
	return broker.Order{ID: "close-" + symbol, Side: broker.Sell, Qty: p.Qty}, nil
}

func (m *mockBroker) CloseAllPositions(ctx context.Context) ([]broker.Order, error) {
	return nil, nil
}

func (m *mockBroker) GetAccount(ctx context.Context) (broker.Account, error) {
	return m.account, nil
}

func (m *mockBroker) GetPosition(ctx context.Context, symbol string) (broker.Position, bool) {
	p, ok := m.positions[symbol]
	return p, ok
}

func (m *mockBroker) GetPositions(ctx context.Context) map[string]broker.Position {
	return m.positions
}

func (m *mockBroker) GetOrder(ctx context.Context, orderID string) (broker.Order, bool) {
	return broker.Order{}, false
}

func (m *mockBroker) GetOrders(ctx context.Context) []broker.Order { return nil }

func (m *mockBroker) GetAsset(ctx context.Context, symbol string) (market.Asset, error) {
	return market.DefaultAsset(symbol), nil
}

func (m *mockBroker) GetHistory(ctx context.Context, asset market.Asset, start, end time.Time, res market.Resolution) (*market.Series, error) {
	return market.NewSeries(asset.Symbol, res, nil), nil
}

var _ broker.Broker = (*mockBroker)(nil)
