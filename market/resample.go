package market

import (
	"time"
)

// Resample aggregates bars (any finer, evenly spaced resolution) into res
// buckets: first open, max high, min low, last close, summed volume. Bars must
// belong to one symbol. Buckets with no input bars are not produced.
func Resample(bars []Bar, res Resolution) []Bar {
	if len(bars) == 0 {
		return nil
	}

	s := NewSeries(bars[0].Symbol, res, bars)
	in := s.bars

	var (
		out     []Bar
		current *Bar
		bucket  time.Time
	)
	for _, b := range in {
		start := res.Truncate(b.Time)
		if current == nil || !start.Equal(bucket) {
			if current != nil {
				out = append(out, *current)
			}
			bucket = start
			nb := b
			nb.Time = start
			current = &nb
			continue
		}

		if b.High.GreaterThan(current.High) {
			current.High = b.High
		}
		if b.Low.LessThan(current.Low) {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.Volume = current.Volume.Add(b.Volume)
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}
