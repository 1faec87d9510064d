package broker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Code string

const (
	CodeInvalidOrder        Code = "invalid_order"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeOrderNotFound       Code = "order_not_found"
	CodeAlreadyFilled       Code = "already_filled"
	CodeAlreadyCanceled     Code = "already_canceled"
	CodeNoPosition          Code = "no_position"
	CodeInvalidQty          Code = "invalid_qty"
	CodeInvalidPercent      Code = "invalid_percent"
	CodeSymbolNotFound      Code = "symbol_not_found"
	CodeUnsupportedMode     Code = "unsupported_mode"
	CodeUnsupportedDataFeed Code = "unsupported_data_feed"
)

// Error is the broker error payload: a taxonomy code plus context data.
// errors.Is matches on Code, so callers compare against the sentinels below.
type Error struct {
	Code Code
	Data map[string]any
}

var (
	ErrInvalidOrder        = &Error{Code: CodeInvalidOrder}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance}
	ErrOrderNotFound       = &Error{Code: CodeOrderNotFound}
	ErrAlreadyFilled       = &Error{Code: CodeAlreadyFilled}
	ErrAlreadyCanceled     = &Error{Code: CodeAlreadyCanceled}
	ErrNoPosition          = &Error{Code: CodeNoPosition}
	ErrInvalidQty          = &Error{Code: CodeInvalidQty}
	ErrInvalidPercent      = &Error{Code: CodeInvalidPercent}
	ErrSymbolNotFound      = &Error{Code: CodeSymbolNotFound}
	ErrUnsupportedMode     = &Error{Code: CodeUnsupportedMode}
	ErrUnsupportedDataFeed = &Error{Code: CodeUnsupportedDataFeed}
)

// NewError builds an error from alternating key/value pairs, e.g.
// NewError(CodeNoPosition, "symbol", "AAPL").
func NewError(code Code, kv ...any) *Error {
	e := &Error{Code: code, Data: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Data[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return e
}

func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return string(e.Code)
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Data[k]))
	}
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(parts, " "))
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf extracts the taxonomy code from err, or "" if err is not a broker
// error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
