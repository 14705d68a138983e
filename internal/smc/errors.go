package smc

import (
	"errors"
	"fmt"
)

var (
	ErrNoCandles      = errors.New("no candles supplied")
	ErrSymbolRequired = errors.New("symbol is required")
	ErrUnknownSymbol  = errors.New("symbol has not been analyzed")
)

// ValidationError reports the first malformed element of an input series
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candle at index %d: %s %s", e.Index, e.Field, e.Reason)
}

// IsValidationError reports whether err wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
