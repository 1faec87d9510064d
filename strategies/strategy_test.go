package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	p := Params{Symbol: "aapl", Qty: d("1"), Fast: 3, Slow: 5}

	tests := []struct {
		name string
		want string
	}{
		{"noop", "noop"},
		{"", "noop"},
		{"None", "noop"},
		{"open-once", "open-once"},
		{" EMA-Cross ", "ema-cross"},
		{"emacross", "ema-cross"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ByName(tt.name, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}

	_, err := ByName("martingale", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ema-cross, noop, open-once")
}

func TestNoop(t *testing.T) {
	b := newMockBroker()
	s := Noop{}
	require.NoError(t, s.OnBar(context.Background(), b, bar("AAPL", 0, "10")))
	assert.Empty(t, b.submitted)
}
