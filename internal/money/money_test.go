package money_test

import (
	"errors"
	"testing"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want money.Amount
	}{
		{"100.50", 10050},
		{"200.75", 20075},
		{"0.01", 1},
		{"7", 700},
		{"7.5", 750},
		{" 12.00 ", 1200},
		{"-3.25", -325},
	}
	for _, tc := range cases {
		got, err := money.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsLossyValues(t *testing.T) {
	for _, in := range []string{"", "abc", "1.005", "10.123", "1,50"} {
		if _, err := money.Parse(in); !errors.Is(err, money.ErrInvalidAmount) {
			t.Fatalf("Parse(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   money.Amount
		want string
	}{
		{10050, "100.50"},
		{1, "0.01"},
		{700, "7.00"},
		{-325, "-3.25"},
	}
	for _, tc := range cases {
		if got := money.Format(tc.in); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, in := range []string{"100.50", "0.99", "1000.00"} {
		parsed, err := money.Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := money.Format(parsed); got != in {
			t.Fatalf("round trip %q -> %q", in, got)
		}
	}
}
