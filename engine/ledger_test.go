package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equalSplits(t *testing.T, total int64, members ...uuid.UUID) []Share {
	t.Helper()
	participants := make([]Participant, len(members))
	for i, m := range members {
		participants[i] = Participant{MemberID: m}
	}
	shares, err := ComputeSplits(total, SplitEqual, participants)
	require.NoError(t, err)
	return shares
}

// Three flatmates: A pays 90 split equally, then B settles their 30. The
// conservation law must hold after every step, not just at the end.
func TestLedgerScenario(t *testing.T) {
	a, b, c := member(), member(), member()
	l := NewLedger()

	require.NoError(t, l.ApplyExpense(a, equalSplits(t, 9000, a, b, c)))
	assert.Equal(t, int64(6000), l.Balance(a))
	assert.Equal(t, int64(-3000), l.Balance(b))
	assert.Equal(t, int64(-3000), l.Balance(c))
	require.NoError(t, l.CheckConservation())

	require.NoError(t, l.ApplySettlement(Transfer{From: b, To: c, Amount: 3000}))
	assert.Equal(t, int64(0), l.Balance(b))
	assert.Equal(t, int64(-6000), l.Balance(c))
	assert.Equal(t, int64(6000), l.Balance(a))
	require.NoError(t, l.CheckConservation())
}

func TestLedgerFullSettlementZeroesPair(t *testing.T) {
	a, b := member(), member()
	l := NewLedger()

	require.NoError(t, l.ApplyExpense(a, equalSplits(t, 5000, a, b)))
	assert.Equal(t, int64(2500), l.Balance(a))
	assert.Equal(t, int64(-2500), l.Balance(b))

	require.NoError(t, ValidateSettlement(l.Balances(), Transfer{From: b, To: a, Amount: 2500}))
	require.NoError(t, l.ApplySettlement(Transfer{From: b, To: a, Amount: 2500}))
	assert.Equal(t, int64(0), l.Balance(a))
	assert.Equal(t, int64(0), l.Balance(b))
}

func TestLedgerReverseThenReapplyIsIdentity(t *testing.T) {
	a, b, c := member(), member(), member()
	l := NewLedger()
	shares := equalSplits(t, 10000, a, b, c)

	require.NoError(t, l.ApplyExpense(a, shares))
	before := l.Balances()

	// Editing with identical data: reverse the old splits, reapply the same.
	require.NoError(t, l.ReverseExpense(a, shares))
	require.NoError(t, l.ApplyExpense(a, shares))
	assert.Equal(t, before, l.Balances())

	// Full reversal returns to zero.
	require.NoError(t, l.ReverseExpense(a, shares))
	for _, id := range []uuid.UUID{a, b, c} {
		assert.Equal(t, int64(0), l.Balance(id))
	}
	require.NoError(t, l.CheckConservation())
}

func TestLedgerPayerOutsideParticipants(t *testing.T) {
	payer, b, c := member(), member(), member()
	l := NewLedger()

	// Payer covered the bill but owes no share themselves.
	require.NoError(t, l.ApplyExpense(payer, equalSplits(t, 6000, b, c)))
	assert.Equal(t, int64(6000), l.Balance(payer))
	assert.Equal(t, int64(-3000), l.Balance(b))
	assert.Equal(t, int64(-3000), l.Balance(c))
	require.NoError(t, l.CheckConservation())
}

func TestExpenseDeltasExactSplitConservation(t *testing.T) {
	a, b, c := member(), member(), member()
	shares, err := ComputeSplits(10000, SplitExact, []Participant{
		{MemberID: a, Amount: 4000},
		{MemberID: b, Amount: 3500},
		{MemberID: c, Amount: 2500},
	})
	require.NoError(t, err)

	deltas, err := ExpenseDeltas(a, shares)
	require.NoError(t, err)

	// Payer's net change is total minus their own share.
	assert.Equal(t, int64(6000), deltas[a])
	assert.Equal(t, int64(-3500), deltas[b])
	assert.Equal(t, int64(-2500), deltas[c])

	var sum int64
	for _, d := range deltas {
		sum += d
	}
	assert.Equal(t, int64(0), sum)
}

func TestSettlementValidation(t *testing.T) {
	a, b := member(), member()
	balances := map[uuid.UUID]int64{a: 2500, b: -2500}

	tests := []struct {
		name     string
		transfer Transfer
		wantErr  string
	}{
		{"valid full settlement", Transfer{From: b, To: a, Amount: 2500}, ""},
		{"exceeds outstanding debt", Transfer{From: b, To: a, Amount: 5000}, "exceeds outstanding debt"},
		{"payer owes nothing", Transfer{From: a, To: b, Amount: 100}, "no outstanding debt"},
		{"self settlement", Transfer{From: b, To: b, Amount: 100}, "cannot settle with yourself"},
		{"zero amount", Transfer{From: b, To: a, Amount: 0}, "greater than zero"},
		{"missing receiver", Transfer{From: b, Amount: 100}, "both a payer and a receiver"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSettlement(balances, tc.transfer)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLedgerRejectsBadInput(t *testing.T) {
	l := NewLedger()

	err := l.ApplyExpense(uuid.Nil, []Share{{MemberID: member(), Amount: 100}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	err = l.ApplyExpense(member(), nil)
	require.ErrorAs(t, err, &verr)
}

func TestCheckConservationDetectsCorruption(t *testing.T) {
	a, b := member(), member()
	l := NewLedgerFrom(map[uuid.UUID]int64{a: 100, b: -99})

	err := l.CheckConservation()
	var cerr *ConsistencyError
	require.ErrorAs(t, err, &cerr)
}

func TestSimplifyDebts(t *testing.T) {
	a, b, c := member(), member(), member()
	balances := map[uuid.UUID]int64{a: 6000, b: -2000, c: -4000}

	edges := SimplifyDebts(balances)
	require.Len(t, edges, 2)

	// Largest debtor first, deterministic on repeated runs.
	assert.Equal(t, c, edges[0].From)
	assert.Equal(t, a, edges[0].To)
	assert.Equal(t, int64(4000), edges[0].Amount)
	assert.Equal(t, b, edges[1].From)
	assert.Equal(t, int64(2000), edges[1].Amount)

	for i := 0; i < 10; i++ {
		assert.Equal(t, edges, SimplifyDebts(balances))
	}

	assert.Equal(t, int64(4000), OutstandingDebt(balances, c, a))
	assert.Equal(t, int64(0), OutstandingDebt(balances, a, c))
}

func TestSimplifyDebtsIgnoresNoise(t *testing.T) {
	a, b := member(), member()
	// Within epsilon of settled; no edges should be produced.
	edges := SimplifyDebts(map[uuid.UUID]int64{a: 1, b: -1})
	assert.Empty(t, edges)
}
