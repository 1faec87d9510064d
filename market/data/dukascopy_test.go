package data

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var point = decimal.New(1, -5)

func tick(hour time.Time, offset time.Duration, bid, ask string) Tick {
	return Tick{
		Time:      hour.Add(offset),
		Bid:       dec(bid),
		Ask:       dec(ask),
		AskVolume: dec("1.5"),
		BidVolume: dec("0.5"),
	}
}

func TestBI5RoundTrip(t *testing.T) {
	t.Parallel()

	hour := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	in := []Tick{
		tick(hour, 1500*time.Millisecond, "1.08500", "1.08502"),
		tick(hour, 59*time.Minute, "1.08600", "1.08604"),
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeBI5(&buf, hour, point, in))

	out, err := DecodeBI5(&buf, hour, point)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.True(t, out[0].Time.Equal(in[0].Time))
	assert.True(t, out[0].Bid.Equal(dec("1.085")))
	assert.True(t, out[1].Ask.Equal(dec("1.08604")))
	assert.True(t, out[1].Mid().Equal(dec("1.08602")))
	assert.True(t, out[1].AskVolume.Equal(dec("1.5")))
}

func TestEncodeBI5OutsideHour(t *testing.T) {
	t.Parallel()

	hour := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	err := EncodeBI5(&bytes.Buffer{}, hour, point, []Tick{tick(hour, time.Hour, "1", "1")})
	assert.Error(t, err)
}

func writeHour(t *testing.T, p *Dukascopy, symbol string, hour time.Time, ticks []Tick) {
	t.Helper()

	path := p.HourPath(symbol, hour)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, EncodeBI5(f, hour, point, ticks))
	require.NoError(t, f.Close())
}

func TestDukascopyLoadHistory(t *testing.T) {
	t.Parallel()

	p, err := NewDukascopy(t.TempDir())
	require.NoError(t, err)

	h0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	h1 := h0.Add(time.Hour)
	writeHour(t, p, "EUR/USD", h0, []Tick{
		tick(h0, time.Second, "1.00000", "1.00002"),
		tick(h0, 30*time.Second, "1.00010", "1.00012"),
		tick(h0, 2*time.Minute, "0.99990", "0.99992"),
	})
	// h0+2h has no file: closed market.
	writeHour(t, p, "EUR/USD", h1, []Tick{
		tick(h1, 0, "1.00100", "1.00102"),
	})

	assert.Equal(t, filepath.Join(p.dir, "EURUSD", "2024", "03", "04", "10h_ticks.bi5"), p.HourPath("EUR/USD", h0))

	ctx := context.Background()
	s, err := p.LoadHistory(ctx, "eur-usd", h0, h0.Add(3*time.Hour), market.OneMinute)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	bars := s.Bars()
	assert.True(t, bars[0].Open.Equal(dec("1.00001")))
	assert.True(t, bars[0].High.Equal(dec("1.00011")))
	assert.True(t, bars[0].Close.Equal(dec("1.00011")))
	assert.True(t, bars[0].Volume.Equal(dec("4")))
	assert.True(t, bars[1].Time.Equal(h0.Add(2*time.Minute)))
	assert.True(t, bars[2].Time.Equal(h1))

	hourly, err := p.LoadHistory(ctx, "EUR/USD", h0, h1, market.OneHour)
	require.NoError(t, err)
	require.Equal(t, 2, hourly.Len())
	assert.True(t, hourly.Bars()[0].Low.Equal(dec("0.99991")))
}

func TestDukascopyResolveAsset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "USDJPY"), 0o755))
	writeFile(t, filepath.Join(dir, AssetsFile), "assets:\n  - symbol: usd/jpy\n    min_price_increment: \"0.001\"\n")

	p, err := NewDukascopy(dir)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.ResolveAsset(ctx, "USD/JPY")
	require.NoError(t, err)
	assert.Equal(t, "forex", a.Class)
	assert.True(t, a.MinPriceIncrement.Equal(dec("0.001")))

	_, err = p.ResolveAsset(ctx, "GBP/USD")
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)
}
