package money

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in     string
		micros int64
	}{
		{"50.123456", 50_123_456},
		{"1000", 1_000_000_000},
		{"0.000001", 1},
		{"5.5", 5_500_000},
		{".25", 250_000},
		{"36.50", 36_500_000},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got.Micros() != tc.micros {
			t.Fatalf("Parse(%q) = %d micros, want %d", tc.in, got.Micros(), tc.micros)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "-5", "+5", "abc", "1.2345678", "1,5", "1.2.3", "."} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q): expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestString(t *testing.T) {
	if s := MustParse("5").String(); s != "5.000000" {
		t.Fatalf("unexpected rendering: %s", s)
	}
	if s := MustParse("50.123456").String(); s != "50.123456" {
		t.Fatalf("unexpected rendering: %s", s)
	}
}

func TestDailyInterest(t *testing.T) {
	// 1000 USDT at 10 bp/day over exactly 5 days earns 5 USDT.
	principal := MustParse("1000")
	got := DailyInterest(principal, 10, 5.0)
	if got != MustParse("5") {
		t.Fatalf("expected 5.000000, got %s", got)
	}

	if DailyInterest(principal, 10, 0) != 0 {
		t.Fatalf("zero elapsed time must accrue nothing")
	}
	if DailyInterest(0, 10, 5) != 0 {
		t.Fatalf("zero principal must accrue nothing")
	}
}

func TestDailyInterestRounding(t *testing.T) {
	// 1 USDT at 1 bp over a third of a day: 1 * 0.0001 * (1/3) =
	// 0.0000333... rounds half away from zero at the sixth decimal.
	got := DailyInterest(MustParse("1"), 1, 1.0/3.0)
	if got.Micros() != 33 {
		t.Fatalf("expected 33 micros, got %d", got.Micros())
	}
}

func TestMul(t *testing.T) {
	// 10 USDT at 36.63 fiat per unit.
	got := MustParse("10").Mul(MustParse("36.63"))
	if got != MustParse("366.30") {
		t.Fatalf("expected 366.300000, got %s", got)
	}
}

func TestDiv(t *testing.T) {
	// 366.30 fiat at 36.63 fiat per unit buys 10 tokens.
	got := MustParse("366.30").Div(MustParse("36.63"))
	if got != MustParse("10") {
		t.Fatalf("expected 10.000000, got %s", got)
	}
	if got := MustParse("5").Div(0); got != 0 {
		t.Fatalf("division by zero must yield 0, got %s", got)
	}
}
