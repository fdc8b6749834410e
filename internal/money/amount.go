package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Amount is a fixed-point monetary value carrying six fractional digits,
// stored as an integer count of micro-units. Six decimals is the native
// precision of both USDT (TRC20) and TRX, so every on-chain amount is
// representable exactly.
type Amount int64

// Precision is the number of fractional digits an Amount carries.
const Precision = 6

const scale = 1_000_000

// ErrInvalid indicates a string that is not a valid positive amount at
// six-decimal precision.
var ErrInvalid = errors.New("invalid amount")

// Parse converts a decimal string such as "50.123456" into an Amount.
// More than six fractional digits, a non-numeric value, or a negative
// value is rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalid)
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if len(fracPart) > Precision {
		return 0, fmt.Errorf("%w: %q exceeds %d decimal places", ErrInvalid, s, Precision)
	}

	var micros int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		micros = micros*10 + int64(r-'0')
		if micros > math.MaxInt64/scale {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalid, s)
		}
	}
	micros *= scale

	mult := int64(scale / 10)
	for _, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		micros += int64(r-'0') * mult
		mult /= 10
	}

	return Amount(micros), nil
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMicros wraps a raw micro-unit count.
func FromMicros(micros int64) Amount { return Amount(micros) }

// Micros returns the raw micro-unit count.
func (a Amount) Micros() int64 { return int64(a) }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// Float64 returns the amount as a floating-point number of whole units.
// Only for display and outbound API payloads; arithmetic stays integral.
func (a Amount) Float64() float64 { return float64(a) / scale }

// String renders the amount with six fractional digits, e.g. "5.000000".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/scale, v%scale)
}

// Mul multiplies two amounts (e.g. a token amount by a unit price) and
// rounds the result to six decimals, half away from zero.
func (a Amount) Mul(b Amount) Amount {
	return roundHalfAway(a.Float64() * b.Float64())
}

// Div divides one amount by another (e.g. a fiat amount by a unit
// price) and rounds the result to six decimals, half away from zero.
// Dividing by zero returns zero.
func (a Amount) Div(b Amount) Amount {
	if b == 0 {
		return 0
	}
	return roundHalfAway(a.Float64() / b.Float64())
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// DailyInterest computes simple daily interest for a principal over a
// fractional number of days at a rate given in basis points per day,
// rounded to six decimals half away from zero. The rate applies to the
// fixed principal, never to the accrued balance.
func DailyInterest(principal Amount, rateBp int, days float64) Amount {
	if days <= 0 || rateBp <= 0 || principal <= 0 {
		return 0
	}
	return roundHalfAway(principal.Float64() * float64(rateBp) / 10000 * days)
}

func roundHalfAway(units float64) Amount {
	micros := units * scale
	if micros >= 0 {
		return Amount(math.Floor(micros + 0.5))
	}
	return Amount(math.Ceil(micros - 0.5))
}
