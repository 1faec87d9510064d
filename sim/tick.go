package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/internal/lockstep"
	"go.uber.org/zap"
)

// Tick stages.
const (
	StageDeliver = "deliver" // trade updates to the strategy
	StageJournal = "journal"
	StageBar     = "bar" // bars to the strategy
)

// TickError is a failure inside one tick's work. The loop that hit it retries
// the tick from the failed stage.
type TickError struct {
	Seq     uint64
	Time    time.Time
	Stage   string
	Symbol  string
	Attempt int
	Err     error
}

func (e *TickError) Error() string {
	s := fmt.Sprintf("tick %d (%s) %s", e.Seq, e.Time.Format(time.RFC3339), e.Stage)
	if e.Symbol != "" {
		s += " " + e.Symbol
	}
	return s + ": " + e.Err.Error()
}

func (e *TickError) Unwrap() error { return e.Err }

// runTick calls step until it succeeds, the retry budget is spent, or ctx
// ends. step must resume where the previous attempt failed. With the budget
// spent, SkipOnFailure drops the rest of the tick and returns nil.
func (e *Engine) runTick(ctx context.Context, loop string, t lockstep.Tick, step func() error) error {
	for attempt := 1; ; attempt++ {
		err := step()
		if err == nil {
			return nil
		}

		var te *TickError
		if !errors.As(err, &te) {
			te = &TickError{Seq: t.Seq, Time: t.Time, Err: err}
		}
		te.Attempt = attempt

		if cerr := context.Cause(ctx); cerr != nil {
			return cerr
		}

		fields := []zap.Field{
			zap.String("loop", loop),
			zap.Uint64("tick", t.Seq),
			zap.Time("time", t.Time),
			zap.String("stage", te.Stage),
			zap.Int("attempt", attempt),
			zap.Error(te.Err),
		}
		if te.Symbol != "" {
			fields = append(fields, zap.String("symbol", te.Symbol))
		}

		if e.cfg.TickRetries >= 0 && attempt > e.cfg.TickRetries {
			if e.cfg.OnTickFailure == SkipOnFailure {
				e.log.Warn("tick skipped", fields...)
				return nil
			}
			e.log.Error("tick failed", fields...)
			return te
		}
		e.log.Warn("tick retry", fields...)
	}
}
