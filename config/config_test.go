package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"skolu-backend/engine"
)

func TestExchangeRates(t *testing.T) {
	tests := []struct {
		name    string
		fxRates string
		want    map[engine.Currency]decimal.Decimal
	}{
		{
			name:    "empty falls back to defaults",
			fxRates: "",
			want:    nil,
		},
		{
			name:    "parses pairs",
			fxRates: "USD=0.92,GBP=1.17",
			want: map[engine.Currency]decimal.Decimal{
				"USD": decimal.NewFromFloat(0.92),
				"GBP": decimal.NewFromFloat(1.17),
			},
		},
		{
			name:    "lowercase codes are normalized",
			fxRates: "usd=0.95",
			want: map[engine.Currency]decimal.Decimal{
				"USD": decimal.NewFromFloat(0.95),
			},
		},
		{
			name:    "malformed entries are skipped",
			fxRates: "USD=0.92,GBP,PLN=-1,JPY=abc",
			want: map[engine.Currency]decimal.Decimal{
				"USD": decimal.NewFromFloat(0.92),
			},
		},
		{
			name:    "all malformed means defaults",
			fxRates: "nonsense",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{FXRates: tt.fxRates}
			got := cfg.ExchangeRates()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Len(t, got, len(tt.want))
			for code, rate := range tt.want {
				assert.True(t, rate.Equal(got[code]), "rate for %s", code)
			}
		})
	}
}
