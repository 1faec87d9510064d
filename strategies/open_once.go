package strategies

import (
	"context"
	"fmt"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
)

// OpenOnce buys Qty of Symbol at market on the first bar it sees, with
// take profit and stop loss legs when their percentages are set. If that
// order is canceled it tries again on the next bar.
type OpenOnce struct {
	Params

	orderID string
}

func NewOpenOnce(p Params) (*OpenOnce, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("open-once: symbol is required")
	}
	if !p.Qty.IsPositive() {
		return nil, fmt.Errorf("open-once: qty must be positive")
	}
	p.Symbol = market.NormalizeSymbol(p.Symbol)
	return &OpenOnce{Params: p}, nil
}

func (s *OpenOnce) Name() string { return "open-once" }

func (s *OpenOnce) OnBar(ctx context.Context, b broker.Broker, bar market.Bar) error {
	if bar.Symbol != s.Symbol || s.orderID != "" {
		return nil
	}

	asset, err := b.GetAsset(ctx, s.Symbol)
	if err != nil {
		return fmt.Errorf("open-once: %w", err)
	}
	req := broker.OrderRequest{
		Symbol: s.Symbol,
		Qty:    s.Qty,
		Side:   broker.Buy,
		Type:   broker.Market,
	}
	req.TakeProfit, req.StopLoss = legs(asset, bar.Close, s.TakeProfitPct, s.StopLossPct)

	o, err := b.SubmitOrder(ctx, req)
	if err != nil {
		return fmt.Errorf("open-once: submit: %w", err)
	}
	s.orderID = o.ID
	return nil
}

func (s *OpenOnce) OnTradeUpdate(ctx context.Context, b broker.Broker, u broker.TradeUpdate) error {
	if u.Order.ID == s.orderID && u.Event == broker.EventCanceled {
		s.orderID = ""
	}
	return nil
}
