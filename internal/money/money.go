// Package money normalizes catalog prices into a fixed two-digit decimal amount.
package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept by Money.
const Scale = 2

// CurrencySymbol prefixes amounts rendered by FormatCurrency.
const CurrencySymbol = "R$"

var currencyPrefixes = []string{CurrencySymbol, "$"}

// Money is a non-negative amount with exactly two fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// Parse normalizes a raw price. Accepted inputs are numbers, decimal values and
// strings that may use a comma as decimal separator and carry a currency prefix.
// Malformed, non-finite or negative input yields Zero; Parse never fails.
func Parse(raw any) Money {
	switch v := raw.(type) {
	case nil:
		return Zero
	case Money:
		return v
	case decimal.Decimal:
		return fromDecimal(v)
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return fromDecimal(decimal.NewFromInt(int64(v)))
	case int32:
		return fromDecimal(decimal.NewFromInt(int64(v)))
	case int64:
		return fromDecimal(decimal.NewFromInt(v))
	case bool:
		return Zero
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	case json.Number:
		return parseString(v.String())
	case fmt.Stringer:
		return parseString(v.String())
	default:
		return parseString(fmt.Sprint(v))
	}
}

// MustParse is Parse for constants; it exists for readability at call sites.
func MustParse(raw string) Money { return Parse(raw) }

// FromCents builds a Money from an integer amount of cents.
func FromCents(cents int64) Money {
	return fromDecimal(decimal.New(cents, -Scale))
}

func parseString(s string) Money {
	s = strings.TrimSpace(s)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	if s == "" {
		return Zero
	}
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return fromDecimal(d)
}

func fromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

func fromDecimal(d decimal.Decimal) Money {
	if d.IsNegative() {
		return Zero
	}
	return Money{d: d.Round(Scale)}
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Mul returns m multiplied by a quantity. Negative quantities yield Zero.
func (m Money) Mul(qty int) Money {
	if qty <= 0 {
		return Zero
	}
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Cents returns the amount in cents.
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the canonical form, e.g. "9.90".
func (m Money) String() string { return m.d.StringFixed(Scale) }

// Format renders the display form with a comma separator, e.g. "9,90".
func (m Money) Format() string { return strings.Replace(m.String(), ".", ",", 1) }

// FormatCurrency renders the display form with the currency prefix, e.g. "R$ 9,90".
func (m Money) FormatCurrency() string { return CurrencySymbol + " " + m.Format() }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Parse(raw)
	return nil
}
