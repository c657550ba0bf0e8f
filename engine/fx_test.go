package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBase(t *testing.T) {
	svc := NewRateService(map[Currency]decimal.Decimal{
		CurrencyUSD: decimal.NewFromFloat(0.92),
	})

	t.Run("base currency passes through", func(t *testing.T) {
		c, err := svc.ToBase(1234, CurrencyEUR)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), c.BaseAmount)
		assert.Equal(t, int64(1234), c.OriginalAmount)
		assert.True(t, c.Rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("converts and retains original", func(t *testing.T) {
		c, err := svc.ToBase(10000, CurrencyUSD)
		require.NoError(t, err)
		assert.Equal(t, int64(9200), c.BaseAmount)
		assert.Equal(t, int64(10000), c.OriginalAmount)
		assert.Equal(t, CurrencyUSD, c.OriginalCurrency)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := svc.ToBase(3333, CurrencyUSD)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := svc.ToBase(3333, CurrencyUSD)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		_, err := svc.ToBase(100, Currency("XYZ"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.ToBase(0, CurrencyUSD)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestParseCurrency(t *testing.T) {
	svc := NewRateService(nil)

	c, err := svc.ParseCurrency("")
	require.NoError(t, err)
	assert.Equal(t, BaseCurrency, c)

	c, err = svc.ParseCurrency("USD")
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, c)

	_, err = svc.ParseCurrency("XYZ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
