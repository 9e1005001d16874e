package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
)

// plain formats amounts with a thousands separator and two decimals and no
// currency symbol: 1234567.5 -> "1,234,567.50".
var plain = money.NewFormatter(domain.CurrencyPlaces, ".", ",", "", "1")

// Amount formats d rounded to cents.
func Amount(d decimal.Decimal) string {
	return plain.Format(cents(d))
}

// Money formats d in currency, using the currency's own symbol and
// separators. Unknown or empty codes fall back to Amount.
func Money(d decimal.Decimal, currency string) string {
	if currency == "" || money.GetCurrency(currency) == nil {
		return Amount(d)
	}
	return money.New(cents(d), currency).Display()
}

// Percent formats a shareholder percentage the way it was entered: "12.5%".
func Percent(d decimal.Decimal) string {
	return d.String() + "%"
}

func cents(d decimal.Decimal) int64 {
	return domain.RoundCurrency(d).Shift(domain.CurrencyPlaces).IntPart()
}
