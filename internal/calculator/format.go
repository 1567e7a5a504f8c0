package calculator

import "github.com/dustin/go-humanize"

// CurrencySuffix is appended to every formatted amount.
const CurrencySuffix = "IQD"

// FormatIQD renders an amount with thousands separators and the currency
// suffix, e.g. 1234567 -> "1,234,567 IQD". It is display-only.
func FormatIQD(amount int64) string {
	return humanize.Comma(amount) + " " + CurrencySuffix
}
