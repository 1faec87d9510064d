package broker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesOnCode(t *testing.T) {
	t.Parallel()

	err := NewError(CodeInsufficientBalance, "symbol", "AAPL", "requires", "500")
	wrapped := fmt.Errorf("submit order: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInsufficientBalance))
	assert.False(t, errors.Is(wrapped, ErrInvalidOrder))
	assert.Equal(t, CodeInsufficientBalance, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))

	assert.Equal(t, "insufficient_balance: requires=500 symbol=AAPL", err.Error())
	assert.Equal(t, "no_position", ErrNoPosition.Error())
}

func TestOrderCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	limit := decimal.NewFromInt(50)
	o := Order{
		ID:         "o1",
		LimitPrice: &limit,
		Legs: Legs{
			TakeProfit: &Leg{LimitPrice: decimal.NewFromInt(60), Status: StatusNew},
		},
		CreatedAt: time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC),
	}

	c := o.Clone()
	require.NotNil(t, c.LimitPrice)
	require.NotNil(t, c.Legs.TakeProfit)

	*o.LimitPrice = decimal.NewFromInt(1)
	o.Legs.TakeProfit.Status = StatusClosed

	assert.True(t, c.LimitPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, StatusNew, c.Legs.TakeProfit.Status)
	assert.Nil(t, c.Legs.StopLoss)
}

func TestOrderSideAndStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())

	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusFilled.Terminal())
	assert.True(t, StatusClosed.Terminal())
	assert.True(t, StatusCanceled.Terminal())

	assert.True(t, Legs{}.Empty())
	assert.False(t, Legs{StopLoss: &Leg{}}.Empty())
}
