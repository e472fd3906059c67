package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount represents a monetary value stored in minor units (kopecks).
type Amount = int64

// ErrInvalidAmount is returned when a decimal value cannot be represented
// exactly in minor units.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Parse converts a decimal string such as "100.50" into minor units. At most
// two fraction digits are accepted; anything that would lose precision fails.
func Parse(value string) (Amount, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}
	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two fraction digits in %q", ErrInvalidAmount, value)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

// Format renders minor units as a decimal string with two fraction digits.
func Format(a Amount) string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}
