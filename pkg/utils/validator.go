package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel validation errors. Wrap these with fmt.Errorf("%w: ...") where a
// caller needs more context.
var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrInvalidSpread = errors.New("invalid spread")
	ErrInvalidVolume = errors.New("invalid volume")
)

// symbolSeparators are stripped by NormalizeSymbol and tolerated (but not
// required) by ValidateSymbol.
const symbolSeparators = "-_/"

// ValidateSymbol reports whether symbol is a plausible exchange symbol:
// 2-30 characters, letters/digits only once separators are stripped.
func ValidateSymbol(symbol string) error {
	stripped := stripSeparators(symbol)
	if len(stripped) < 2 || len(stripped) > 30 {
		return fmt.Errorf("%w: %q must be 2-30 characters", ErrInvalidSymbol, symbol)
	}
	for _, r := range stripped {
		if !isAlnum(r) {
			return fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidSymbol, symbol, r)
		}
	}
	return nil
}

// IsValidSymbol is a boolean convenience wrapper around ValidateSymbol.
func IsValidSymbol(symbol string) bool { return ValidateSymbol(symbol) == nil }

// NormalizeSymbol uppercases symbol and strips any -, _, / separators.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(stripSeparators(symbol))
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(symbolSeparators, r) {
			return -1
		}
		return r
	}, s)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// knownQuoteAssets is checked in list order; no entry is a suffix of
// another, so the order does not change which one matches.
var knownQuoteAssets = []string{"USDT", "USDC", "BUSD", "FDUSD", "TUSD", "BTC", "ETH", "BNB"}

// ExtractBaseCurrency returns the base asset of a normalized symbol, e.g.
// BTC for BTCUSDT. Falls back to the whole symbol if no known quote asset
// suffix matches.
func ExtractBaseCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, quote := range knownQuoteAssets {
		if strings.HasSuffix(norm, quote) && len(norm) > len(quote) {
			return norm[:len(norm)-len(quote)]
		}
	}
	return norm
}

// ExtractQuoteCurrency returns the quote asset of a normalized symbol, e.g.
// USDT for BTCUSDT. Returns "" if no known quote asset suffix matches.
func ExtractQuoteCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, quote := range knownQuoteAssets {
		if strings.HasSuffix(norm, quote) && len(norm) > len(quote) {
			return quote
		}
	}
	return ""
}

// ValidateSpread reports whether a spread/profit percentage lies in the
// plausible (0, 100] range.
func ValidateSpread(spreadPct float64) error {
	if spreadPct <= 0 || spreadPct > 100 {
		return fmt.Errorf("%w: %v must be in (0, 100]", ErrInvalidSpread, spreadPct)
	}
	return nil
}

// ValidateVolume reports whether a quantity is a plausible positive amount.
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume > 1e9 {
		return fmt.Errorf("%w: %v must be in (0, 1e9]", ErrInvalidVolume, volume)
	}
	return nil
}

// ValidationErrors accumulates field-scoped validation failures so a
// caller can report every problem with a request at once instead of
// failing on the first one.
type ValidationErrors []ValidationError

// ValidationError is a single field-scoped validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Add appends a new field/message validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// AddError appends err under field if err is non-nil; a nil err is a no-op.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	e.Add(field, err.Error())
}

// HasErrors reports whether any errors have been accumulated.
func (e ValidationErrors) HasErrors() bool { return len(e) > 0 }

// Error implements the error interface, joining all accumulated field
// errors into one message.
func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return strings.Join(parts, "; ")
}
