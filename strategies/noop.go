package strategies

import (
	"context"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
)

// Noop does nothing. It is handy for checking that data loads and the clock
// walks the whole window.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(ctx context.Context, b broker.Broker, bar market.Bar) error { return nil }

func (Noop) OnTradeUpdate(ctx context.Context, b broker.Broker, u broker.TradeUpdate) error {
	return nil
}
