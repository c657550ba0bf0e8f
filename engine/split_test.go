package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member() uuid.UUID { return uuid.New() }

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sumShares(shares []Share) int64 {
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"equal":      SplitEqual,
		"exact":      SplitExact,
		"fixed":      SplitExact,
		"percentage": SplitPercentage,
		"shares":     SplitShares,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrategy("dynamic")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestComputeSplitsEqual(t *testing.T) {
	a, b, c := member(), member(), member()

	tests := []struct {
		name  string
		total int64
		want  []int64
	}{
		{"divides evenly", 9000, []int64{3000, 3000, 3000}},
		{"non-divisible total", 10000, []int64{3334, 3333, 3333}},
		{"remainder of two", 10001, []int64{3334, 3334, 3333}},
		{"tiny total", 2, []int64{1, 1, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := ComputeSplits(tc.total, SplitEqual, []Participant{
				{MemberID: a}, {MemberID: b}, {MemberID: c},
			})
			require.NoError(t, err)
			require.Len(t, shares, 3)
			for i, want := range tc.want {
				assert.Equal(t, want, shares[i].Amount)
			}
			assert.Equal(t, tc.total, sumShares(shares), "shares must sum to total")
		})
	}
}

func TestComputeSplitsPercentage(t *testing.T) {
	a, b, c := member(), member(), member()

	t.Run("clean percentages", func(t *testing.T) {
		shares, err := ComputeSplits(10000, SplitPercentage, []Participant{
			{MemberID: a, Percent: pct("50")},
			{MemberID: b, Percent: pct("30")},
			{MemberID: c, Percent: pct("20")},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5000), shares[0].Amount)
		assert.Equal(t, int64(3000), shares[1].Amount)
		assert.Equal(t, int64(2000), shares[2].Amount)
	})

	t.Run("rounding still sums to total", func(t *testing.T) {
		shares, err := ComputeSplits(10000, SplitPercentage, []Participant{
			{MemberID: a, Percent: pct("33.33")},
			{MemberID: b, Percent: pct("33.33")},
			{MemberID: c, Percent: pct("33.34")},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(10000), sumShares(shares))
	})

	t.Run("tolerated overshoot still sums to total", func(t *testing.T) {
		// 100.01 is within the tolerance; the floored proportional amounts
		// exceed the total and the surplus must be walked back.
		shares, err := ComputeSplits(100000, SplitPercentage, []Participant{
			{MemberID: a, Percent: pct("50.005")},
			{MemberID: b, Percent: pct("50.005")},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(100000), sumShares(shares))
	})

	t.Run("tolerated undershoot still sums to total", func(t *testing.T) {
		shares, err := ComputeSplits(100000, SplitPercentage, []Participant{
			{MemberID: a, Percent: pct("49.995")},
			{MemberID: b, Percent: pct("49.995")},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(100000), sumShares(shares))
	})

	t.Run("rejects undershoot and overshoot equally", func(t *testing.T) {
		for _, bad := range []string{"49.5", "50.5"} {
			_, err := ComputeSplits(10000, SplitPercentage, []Participant{
				{MemberID: a, Percent: pct(bad)},
				{MemberID: b, Percent: pct("50")},
			})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "sum of %s+50 must be rejected", bad)
		}
	})

	t.Run("negative percentage rejected", func(t *testing.T) {
		_, err := ComputeSplits(10000, SplitPercentage, []Participant{
			{MemberID: a, Percent: pct("-10")},
			{MemberID: b, Percent: pct("110")},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestComputeSplitsExact(t *testing.T) {
	a, b, c := member(), member(), member()

	t.Run("amounts reconcile", func(t *testing.T) {
		shares, err := ComputeSplits(10000, SplitExact, []Participant{
			{MemberID: a, Amount: 4000},
			{MemberID: b, Amount: 3500},
			{MemberID: c, Amount: 2500},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(10000), sumShares(shares))
		assert.True(t, shares[0].Percent.Equal(pct("40")))
	})

	t.Run("one minor unit off is tolerated", func(t *testing.T) {
		_, err := ComputeSplits(10000, SplitExact, []Participant{
			{MemberID: a, Amount: 5000},
			{MemberID: b, Amount: 4999},
		})
		require.NoError(t, err)
	})

	t.Run("two minor units off is rejected", func(t *testing.T) {
		_, err := ComputeSplits(10000, SplitExact, []Participant{
			{MemberID: a, Amount: 5000},
			{MemberID: b, Amount: 4998},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestComputeSplitsShares(t *testing.T) {
	a, b, c := member(), member(), member()

	shares, err := ComputeSplits(10000, SplitShares, []Participant{
		{MemberID: a, Shares: 2},
		{MemberID: b, Shares: 1},
		{MemberID: c, Shares: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), shares[0].Amount)
	assert.Equal(t, int64(2500), shares[1].Amount)
	assert.Equal(t, int64(2500), shares[2].Amount)

	_, err = ComputeSplits(10000, SplitShares, []Participant{
		{MemberID: a, Shares: 0},
		{MemberID: b, Shares: 0},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestComputeSplitsInputValidation(t *testing.T) {
	a := member()

	tests := []struct {
		name         string
		total        int64
		strategy     Strategy
		participants []Participant
	}{
		{"zero total", 0, SplitEqual, []Participant{{MemberID: a}}},
		{"negative total", -100, SplitEqual, []Participant{{MemberID: a}}},
		{"no participants", 100, SplitEqual, nil},
		{"duplicate participant", 100, SplitEqual, []Participant{{MemberID: a}, {MemberID: a}}},
		{"missing member id", 100, SplitEqual, []Participant{{}}},
		{"unknown strategy", 100, Strategy("random"), []Participant{{MemberID: a}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSplits(tc.total, tc.strategy, tc.participants)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestToMinor(t *testing.T) {
	m, err := ToMinor(pct("12.34"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), m)

	_, err = ToMinor(pct("12.345"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, "12.34", FromMinor(1234).String())
	assert.True(t, WithinEpsilon(1000, 1001))
	assert.False(t, WithinEpsilon(1000, 1002))
}
