package data

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz/lzma"
)

// tickRecordSize is the width of one decompressed bi5 record: ms offset into
// the hour, ask, bid (integer points) and ask/bid volume (float32), big endian.
const tickRecordSize = 20

// Dukascopy builds bars from a local cache of Dukascopy hourly tick files laid
// out as
//
//	<dir>/<CODE>/<YYYY>/<MM>/<DD>/<HH>h_ticks.bi5
//
// where CODE is the symbol without separators (EUR/USD -> EURUSD) and MM is
// the 1-based month. Hours without a file are treated as closed market. Bars
// are built from the bid/ask mid; prices are scaled by the asset's
// MinPriceIncrement.
type Dukascopy struct {
	dir    string
	assets map[string]market.Asset
}

func NewDukascopy(dir string) (*Dukascopy, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dukascopy source: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("dukascopy source %s: not a directory", dir)
	}

	assets, err := loadAssets(dir, fxAsset)
	if err != nil {
		return nil, err
	}
	return &Dukascopy{dir: dir, assets: assets}, nil
}

// fxAsset is the default metadata for a currency pair: five decimal points,
// no fractional units.
func fxAsset(symbol string) market.Asset {
	a := market.DefaultAsset(symbol)
	a.Class = "forex"
	a.Fractionable = false
	a.MinOrderSize = decimal.NewFromInt(1)
	a.MinPriceIncrement = decimal.New(1, -5)
	return a
}

func dukasCode(symbol string) string {
	return strings.ReplaceAll(market.NormalizeSymbol(symbol), "/", "")
}

// HourPath returns the cache path of the tick file covering hour t.
func (p *Dukascopy) HourPath(symbol string, t time.Time) string {
	t = t.UTC()
	return filepath.Join(p.dir, dukasCode(symbol),
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02dh_ticks.bi5", t.Hour()))
}

func (p *Dukascopy) ResolveAsset(ctx context.Context, symbol string) (market.Asset, error) {
	symbol = market.NormalizeSymbol(symbol)
	if a, ok := p.assets[symbol]; ok {
		return a, nil
	}
	if st, err := os.Stat(filepath.Join(p.dir, dukasCode(symbol))); err != nil || !st.IsDir() {
		return market.Asset{}, symbolNotFound(symbol)
	}
	return fxAsset(symbol), nil
}

func (p *Dukascopy) LoadHistory(ctx context.Context, symbol string, start, end time.Time, res market.Resolution) (*market.Series, error) {
	asset, err := p.ResolveAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	point := asset.MinPriceIncrement
	if point.IsZero() {
		point = decimal.New(1, -5)
	}

	agg := newTickAggregator(asset.Symbol, res)
	last := end.Add(res.Duration())
	for hour := res.Truncate(start).Truncate(time.Hour); hour.Before(last); hour = hour.Add(time.Hour) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ticks, err := readHour(p.HourPath(asset.Symbol, hour), hour, point)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, t := range ticks {
			agg.add(t)
		}
	}
	return market.NewSeries(asset.Symbol, res, agg.bars()).Between(start, end), nil
}

func (p *Dukascopy) Close() error { return nil }

// Tick is one decoded quote.
type Tick struct {
	Time      time.Time
	Ask       decimal.Decimal
	Bid       decimal.Decimal
	AskVolume decimal.Decimal
	BidVolume decimal.Decimal
}

func (t Tick) Mid() decimal.Decimal {
	return t.Ask.Add(t.Bid).Div(decimal.NewFromInt(2))
}

func readHour(path string, hour time.Time, point decimal.Decimal) ([]Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Dukascopy serves empty files for hours with no quotes.
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, nil
	}

	ticks, err := DecodeBI5(f, hour, point)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ticks, nil
}

// DecodeBI5 decompresses one hourly bi5 stream starting at hour.
func DecodeBI5(r io.Reader, hour time.Time, point decimal.Decimal) ([]Tick, error) {
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(raw)%tickRecordSize != 0 {
		return nil, fmt.Errorf("truncated tick data: %d bytes", len(raw))
	}

	ticks := make([]Tick, 0, len(raw)/tickRecordSize)
	for off := 0; off < len(raw); off += tickRecordSize {
		rec := raw[off : off+tickRecordSize]
		ms := binary.BigEndian.Uint32(rec[0:4])
		ask := binary.BigEndian.Uint32(rec[4:8])
		bid := binary.BigEndian.Uint32(rec[8:12])
		askVol := math.Float32frombits(binary.BigEndian.Uint32(rec[12:16]))
		bidVol := math.Float32frombits(binary.BigEndian.Uint32(rec[16:20]))

		ticks = append(ticks, Tick{
			Time:      hour.Add(time.Duration(ms) * time.Millisecond),
			Ask:       decimal.NewFromInt(int64(ask)).Mul(point),
			Bid:       decimal.NewFromInt(int64(bid)).Mul(point),
			AskVolume: decimal.NewFromFloat32(askVol),
			BidVolume: decimal.NewFromFloat32(bidVol),
		})
	}
	return ticks, nil
}

// EncodeBI5 is the inverse of DecodeBI5. Tick times must fall inside hour.
func EncodeBI5(w io.Writer, hour time.Time, point decimal.Decimal, ticks []Tick) error {
	var buf bytes.Buffer
	rec := make([]byte, tickRecordSize)
	for _, t := range ticks {
		ms := t.Time.Sub(hour).Milliseconds()
		if ms < 0 || ms >= time.Hour.Milliseconds() {
			return fmt.Errorf("tick %s outside hour %s", t.Time, hour)
		}
		askVol, _ := t.AskVolume.Float64()
		bidVol, _ := t.BidVolume.Float64()

		binary.BigEndian.PutUint32(rec[0:4], uint32(ms))
		binary.BigEndian.PutUint32(rec[4:8], uint32(t.Ask.Div(point).Round(0).IntPart()))
		binary.BigEndian.PutUint32(rec[8:12], uint32(t.Bid.Div(point).Round(0).IntPart()))
		binary.BigEndian.PutUint32(rec[12:16], math.Float32bits(float32(askVol)))
		binary.BigEndian.PutUint32(rec[16:20], math.Float32bits(float32(bidVol)))
		buf.Write(rec)
	}

	lw, err := lzma.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := lw.Write(buf.Bytes()); err != nil {
		_ = lw.Close()
		return err
	}
	return lw.Close()
}

// tickAggregator folds ticks into bars of one resolution.
type tickAggregator struct {
	symbol string
	res    market.Resolution
	out    []market.Bar
	cur    *market.Bar
}

func newTickAggregator(symbol string, res market.Resolution) *tickAggregator {
	return &tickAggregator{symbol: symbol, res: res}
}

func (a *tickAggregator) add(t Tick) {
	px := t.Mid()
	vol := t.AskVolume.Add(t.BidVolume)
	bucket := a.res.Truncate(t.Time)

	if a.cur == nil || !a.cur.Time.Equal(bucket) {
		if a.cur != nil {
			a.out = append(a.out, *a.cur)
		}
		a.cur = &market.Bar{Symbol: a.symbol, Time: bucket, Open: px, High: px, Low: px, Close: px, Volume: vol}
		return
	}

	if px.GreaterThan(a.cur.High) {
		a.cur.High = px
	}
	if px.LessThan(a.cur.Low) {
		a.cur.Low = px
	}
	a.cur.Close = px
	a.cur.Volume = a.cur.Volume.Add(vol)
}

func (a *tickAggregator) bars() []market.Bar {
	out := a.out
	if a.cur != nil {
		out = append(out, *a.cur)
	}
	return out
}
