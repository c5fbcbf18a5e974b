package utils

import (
	"math"
	"strings"
)

// defaultCurrencyRates maps ISO currency codes to static USD-conversion
// multipliers. Static references are good enough for ranking; exact FX is a
// checkout concern, not a sourcing concern.
var defaultCurrencyRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"CAD": 0.74,
	"AUD": 0.66,
	"JPY": 0.0067,
	"CNY": 0.14,
	"INR": 0.012,
	"MXN": 0.058,
}

// NormalizeCurrencyCode validates and upper-cases an ISO 4217 code.
// Returns "" for unknown or malformed codes.
func NormalizeCurrencyCode(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if len(trimmed) != 3 {
		return ""
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	if _, known := defaultCurrencyRates[trimmed]; !known {
		return ""
	}
	return trimmed
}

// ConvertCurrency converts an amount between currencies via the USD pivot,
// rounding half-up to two decimal places. Unknown source or target codes fall
// back to USD. The second return value is false when no rate is available.
func ConvertCurrency(amount float64, fromCurrency, toCurrency string) (float64, bool) {
	src := NormalizeCurrencyCode(fromCurrency)
	if src == "" {
		src = "USD"
	}
	dst := NormalizeCurrencyCode(toCurrency)
	if dst == "" {
		dst = "USD"
	}

	if src == dst {
		return roundToCents(amount), true
	}

	srcRate, srcOK := defaultCurrencyRates[src]
	dstRate, dstOK := defaultCurrencyRates[dst]
	if !srcOK || !dstOK || srcRate <= 0 || dstRate <= 0 {
		return 0, false
	}

	usdValue := amount * srcRate
	return roundToCents(usdValue / dstRate), true
}

// ConvertToUSD converts an amount into USD using the static rate table.
func ConvertToUSD(amount float64, fromCurrency string) (float64, bool) {
	return ConvertCurrency(amount, fromCurrency, "USD")
}

func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
