package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MoneyPlaces is the number of fractional digits kept for computed amounts.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ClampMoney bounds d to [lo, hi]. hi below lo yields lo.
func ClampMoney(d, lo, hi decimal.Decimal) decimal.Decimal {
	if hi.LessThan(lo) {
		return lo
	}
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Percent returns base * pct / 100.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

func ParseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("currency[%s] is not valid: %w", code, err)
	}

	return unit, nil
}
