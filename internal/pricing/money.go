package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary amount in minor units (cents). It marshals to JSON as a
// two-decimal dollar amount so API payloads read naturally ("total": 98.99)
// while all arithmetic stays integral.
type Money int64

// FromDollars converts a dollar amount into cents, rounding half away from
// zero at the cent.
func FromDollars(v float64) Money {
	return Money(math.Round(v * 100))
}

// Dollars returns the amount as a float for display purposes only.
func (m Money) Dollars() float64 {
	return float64(m) / 100
}

// String formats the amount as a dollar string, e.g. "98.99".
func (m Money) String() string {
	return strconv.FormatFloat(m.Dollars(), 'f', 2, 64)
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (dollars) or its string form.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("pricing: parse money %q: %w", raw, err)
	}
	*m = FromDollars(f)
	return nil
}

// mulBps multiplies an amount by a basis-point rate, rounding half away from
// zero at the cent.
func mulBps(amount Money, bps int) Money {
	product := int64(amount) * int64(bps)
	half := int64(5000)
	if product < 0 {
		return Money((product - half) / 10000)
	}
	return Money((product + half) / 10000)
}
