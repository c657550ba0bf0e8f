package engine

import (
	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code. All ledger arithmetic happens in BaseCurrency;
// expenses and payments in other currencies are converted on application and
// keep their original amount and currency for audit.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyPLN Currency = "PLN"
)

// BaseCurrency is the currency every group ledger is kept in.
const BaseCurrency = CurrencyEUR

// Conversion records one deterministic currency conversion. BaseAmount is what
// the ledger uses; the original amount and rate are retained alongside it.
type Conversion struct {
	OriginalAmount   int64
	OriginalCurrency Currency
	BaseAmount       int64
	Rate             decimal.Decimal
}

// RateService converts amounts into the base currency from a fixed rate table.
// Rates are supplied at construction, so the same input always converts the
// same way.
type RateService struct {
	rates map[Currency]decimal.Decimal
}

// DefaultRates are the to-EUR rates used when none are configured.
func DefaultRates() map[Currency]decimal.Decimal {
	return map[Currency]decimal.Decimal{
		CurrencyUSD: decimal.NewFromFloat(0.92),
		CurrencyGBP: decimal.NewFromFloat(1.17),
		CurrencyPLN: decimal.NewFromFloat(0.23),
	}
}

func NewRateService(rates map[Currency]decimal.Decimal) *RateService {
	if rates == nil {
		rates = DefaultRates()
	}
	return &RateService{rates: rates}
}

// ToBase converts a minor-unit amount into BaseCurrency minor units, rounding
// half up to the nearest minor unit.
func (s *RateService) ToBase(amount int64, from Currency) (Conversion, error) {
	if amount <= 0 {
		return Conversion{}, validationErrf("amount must be greater than zero")
	}
	if from == BaseCurrency {
		return Conversion{
			OriginalAmount:   amount,
			OriginalCurrency: from,
			BaseAmount:       amount,
			Rate:             decimal.NewFromInt(1),
		}, nil
	}

	rate, ok := s.rates[from]
	if !ok {
		return Conversion{}, validationErrf("unsupported currency: %s", from)
	}

	base := decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
	if base < 1 {
		base = 1
	}
	return Conversion{
		OriginalAmount:   amount,
		OriginalCurrency: from,
		BaseAmount:       base,
		Rate:             rate,
	}, nil
}

// ParseCurrency validates a wire-format currency code, defaulting empty input
// to the base currency.
func (s *RateService) ParseCurrency(code string) (Currency, error) {
	if code == "" {
		return BaseCurrency, nil
	}
	c := Currency(code)
	if c == BaseCurrency {
		return c, nil
	}
	if _, ok := s.rates[c]; !ok {
		return "", validationErrf("unsupported currency: %s", code)
	}
	return c, nil
}
