package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToUSD(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     float64
	}{
		{"euros", 100, "EUR", 108.00},
		{"pounds", 10, "GBP", 12.70},
		{"yen", 1000, "JPY", 6.70},
		{"usd passthrough", 49.99, "USD", 49.99},
		{"lowercase code", 100, "eur", 108.00},
		{"unknown code falls back to usd", 25, "XXX", 25.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConvertToUSD(tt.amount, tt.currency)
			assert.True(t, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestConvertCurrency_RoundsToCents(t *testing.T) {
	got, ok := ConvertCurrency(9.999, "USD", "USD")
	assert.True(t, ok)
	assert.InDelta(t, 10.00, got, 0.0001)
}

func TestConvertCurrency_CrossRate(t *testing.T) {
	// 100 EUR -> USD -> GBP: 108 / 1.27
	got, ok := ConvertCurrency(100, "EUR", "GBP")
	assert.True(t, ok)
	assert.InDelta(t, 85.04, got, 0.001)
}

func TestNormalizeCurrencyCode(t *testing.T) {
	assert.Equal(t, "EUR", NormalizeCurrencyCode(" eur "))
	assert.Equal(t, "", NormalizeCurrencyCode("EURO"))
	assert.Equal(t, "", NormalizeCurrencyCode("E1R"))
	assert.Equal(t, "", NormalizeCurrencyCode("ZZZ"))
	assert.Equal(t, "", NormalizeCurrencyCode(""))
}
