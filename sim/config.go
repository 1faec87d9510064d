package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/pkg/id"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ModeBacktest is the only supported mode.
const ModeBacktest = "backtest"

// TickFailure is what a loop does once a tick has failed more often than
// Config.TickRetries allows.
type TickFailure string

const (
	// AbortOnFailure ends the session with the tick's error.
	AbortOnFailure TickFailure = "abort"
	// SkipOnFailure forfeits the rest of the failed tick and moves on.
	SkipOnFailure TickFailure = "skip"
)

func ParseTickFailure(s string) (TickFailure, error) {
	switch TickFailure(strings.ToLower(strings.TrimSpace(s))) {
	case "", AbortOnFailure:
		return AbortOnFailure, nil
	case SkipOnFailure:
		return SkipOnFailure, nil
	default:
		return "", fmt.Errorf("invalid tick failure policy %q (want abort or skip)", s)
	}
}

type Config struct {
	AccountID  string
	Currency   string
	Cash       decimal.Decimal
	Leverage   decimal.Decimal
	AllowShort bool

	Mode       string
	Start      time.Time
	End        time.Time
	Resolution market.Resolution

	// TickRetries is how many times a failed tick is retried before
	// OnTickFailure applies. Negative retries forever.
	TickRetries   int
	OnTickFailure TickFailure
}

func (c *Config) normalize() error {
	if c.Mode == "" {
		c.Mode = ModeBacktest
	}
	if !strings.EqualFold(c.Mode, ModeBacktest) {
		return broker.NewError(broker.CodeUnsupportedMode, "mode", c.Mode)
	}
	if c.AccountID == "" {
		c.AccountID = "paper"
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.Cash.IsNegative() {
		return fmt.Errorf("cash must not be negative, got %s", c.Cash)
	}
	if c.Leverage.IsZero() {
		c.Leverage = decimal.NewFromInt(1)
	}
	if c.Leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("leverage must be >= 1, got %s", c.Leverage)
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("end %s is before start %s", c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	c.Start, c.End = c.Start.UTC(), c.End.UTC()
	if c.Resolution.IsZero() {
		c.Resolution = market.OneMinute
	}
	if c.Resolution.Duration() <= 0 {
		return fmt.Errorf("invalid resolution %s", c.Resolution)
	}
	// Bars open on resolution boundaries, so the clock must too.
	if aligned := c.Resolution.Truncate(c.Start); aligned.Before(c.Start) {
		c.Start = aligned.Add(c.Resolution.Duration())
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("no %s bar opens between start and end %s", c.Resolution, c.End.Format(time.RFC3339))
	}

	policy, err := ParseTickFailure(string(c.OnTickFailure))
	if err != nil {
		return err
	}
	c.OnTickFailure = policy
	return nil
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithJournal(j journal.Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

// WithSeed makes order ids reproducible across runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.ids = id.NewGenerator(seed)
	}
}

func WithIDGenerator(g *id.Generator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}
