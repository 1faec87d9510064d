package market

import (
	"sort"
	"time"
)

// Series is an ordered bar series for one symbol, indexed by bar time.
type Series struct {
	Symbol     string
	Resolution Resolution

	bars  []Bar
	index map[int64]int
}

// NewSeries sorts bars by time and indexes them. Later duplicates of a
// timestamp are dropped (keep-first).
func NewSeries(symbol string, res Resolution, bars []Bar) *Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	s := &Series{
		Symbol:     symbol,
		Resolution: res,
		bars:       make([]Bar, 0, len(sorted)),
		index:      make(map[int64]int, len(sorted)),
	}
	for _, b := range sorted {
		key := b.Time.UnixNano()
		if _, dup := s.index[key]; dup {
			continue
		}
		b.Symbol = symbol
		s.index[key] = len(s.bars)
		s.bars = append(s.bars, b)
	}
	return s
}

func (s *Series) Len() int { return len(s.bars) }

// Bars returns a copy of the bars in time order.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// At returns the bar that opens exactly at t.
func (s *Series) At(t time.Time) (Bar, bool) {
	if s == nil {
		return Bar{}, false
	}
	i, ok := s.index[t.UnixNano()]
	if !ok {
		return Bar{}, false
	}
	return s.bars[i], true
}

// Latest returns the last bar opening at or before t.
func (s *Series) Latest(t time.Time) (Bar, bool) {
	if s == nil || len(s.bars) == 0 {
		return Bar{}, false
	}
	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Time.After(t) })
	if i == 0 {
		return Bar{}, false
	}
	return s.bars[i-1], true
}

// Between returns the bars with start <= time <= end.
func (s *Series) Between(start, end time.Time) *Series {
	var out []Bar
	for _, b := range s.bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return NewSeries(s.Symbol, s.Resolution, out)
}
