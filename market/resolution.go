package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Unit string

const (
	Minute Unit = "m"
	Hour   Unit = "h"
	Day    Unit = "d"
	Week   Unit = "w"
)

// Resolution is the bar interval, e.g. 15 minutes or 1 day.
type Resolution struct {
	Amount int
	Unit   Unit
}

var (
	OneMinute = Resolution{Amount: 1, Unit: Minute}
	OneHour   = Resolution{Amount: 1, Unit: Hour}
	OneDay    = Resolution{Amount: 1, Unit: Day}
)

// ParseResolution parses strings such as "1m", "15m", "4h", "1d" or "1w".
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Resolution{}, fmt.Errorf("invalid resolution %q", s)
	}

	unit := Unit(s[len(s)-1:])
	switch unit {
	case Minute, Hour, Day, Week:
	default:
		return Resolution{}, fmt.Errorf("invalid resolution %q: unknown unit %q", s, unit)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %q: amount must be a positive integer", s)
	}
	return Resolution{Amount: n, Unit: unit}, nil
}

// MustParseResolution is ParseResolution that panics on error.
func MustParseResolution(s string) Resolution {
	r, err := ParseResolution(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Resolution) String() string {
	return fmt.Sprintf("%d%s", r.Amount, r.Unit)
}

func (r Resolution) IsZero() bool {
	return r.Amount == 0
}

// Duration returns the length of one interval.
func (r Resolution) Duration() time.Duration {
	var unit time.Duration
	switch r.Unit {
	case Minute:
		unit = time.Minute
	case Hour:
		unit = time.Hour
	case Day:
		unit = 24 * time.Hour
	case Week:
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(r.Amount) * unit
}

// Truncate aligns t down to the start of its interval (UTC, epoch aligned).
func (r Resolution) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(r.Duration())
}
