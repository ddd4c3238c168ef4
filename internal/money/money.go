package money

import (
	"errors"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// Scale is the number of decimal places stored for every amount.
const Scale = 2

// ParseAmount accepts plain decimal text such as "1000", "12.5" or "-3.25".
func ParseAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(input, ",", ""))
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.Exponent() < -Scale && !value.Equal(value.Round(Scale)) {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value.Round(Scale), nil
}

// ParsePositive is ParseAmount restricted to values greater than zero.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := ParseAmount(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

// ToMinor converts to integer minor units, rounding half to even.
func ToMinor(value decimal.Decimal) int64 {
	return value.Shift(Scale).RoundBank(0).IntPart()
}

// Display renders an amount with the currency's symbol and grouping, e.g. "₹1,000.00".
// Minor units follow the currency's own fraction. Unknown codes fall back to Format.
func Display(value decimal.Decimal, currency string) string {
	cur := gomoney.GetCurrency(strings.ToUpper(strings.TrimSpace(currency)))
	if cur == nil {
		return Format(value)
	}
	minor := value.Shift(int32(cur.Fraction)).RoundBank(0).IntPart()
	return gomoney.New(minor, cur.Code).Display()
}
