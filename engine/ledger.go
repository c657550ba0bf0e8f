package engine

import (
	"github.com/google/uuid"
)

// Ledger holds the signed net balances of a group's members in base-currency
// minor units. Positive = owed to the member, negative = the member owes.
//
// The ledger enforces the conservation law: the sum of all balances is zero
// after every operation. A violation is a ConsistencyError and aborts the
// operation; it is never silently corrected.
type Ledger struct {
	balances map[uuid.UUID]int64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[uuid.UUID]int64)}
}

// NewLedgerFrom seeds a ledger from persisted balances.
func NewLedgerFrom(balances map[uuid.UUID]int64) *Ledger {
	l := NewLedger()
	for id, b := range balances {
		l.balances[id] = b
	}
	return l
}

// Transfer is a settlement payment between two members, already converted to
// base-currency minor units.
type Transfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount int64
}

// ExpenseDeltas computes the per-member balance changes for applying one
// expense: the payer is credited with the shares of everyone else, and every
// participant other than the payer is debited their own share. Built this way
// the deltas sum to zero by construction, even when an exact split deviates
// from the expense total by the permitted Epsilon.
func ExpenseDeltas(payerID uuid.UUID, shares []Share) (map[uuid.UUID]int64, error) {
	if payerID == uuid.Nil {
		return nil, validationErrf("expense payer is required")
	}
	if len(shares) == 0 {
		return nil, validationErrf("expense has no splits")
	}

	deltas := make(map[uuid.UUID]int64, len(shares)+1)
	for _, s := range shares {
		if s.MemberID == payerID {
			continue
		}
		deltas[s.MemberID] -= s.Amount
		deltas[payerID] += s.Amount
	}
	// Payer with no co-participants still appears with a zero delta.
	if _, ok := deltas[payerID]; !ok {
		deltas[payerID] = 0
	}
	return deltas, nil
}

// SettlementDeltas computes the per-member balance changes for one payment:
// the payer's balance rises (their debt shrinks) and the receiver's falls
// (they are owed less).
func SettlementDeltas(t Transfer) (map[uuid.UUID]int64, error) {
	if t.From == uuid.Nil || t.To == uuid.Nil {
		return nil, validationErrf("settlement requires both a payer and a receiver")
	}
	if t.From == t.To {
		return nil, validationErrf("cannot settle with yourself")
	}
	if t.Amount <= 0 {
		return nil, validationErrf("settlement amount must be greater than zero")
	}
	return map[uuid.UUID]int64{
		t.From: t.Amount,
		t.To:   -t.Amount,
	}, nil
}

// ValidateSettlement checks a payment against the current balances before it
// is applied: the payer must actually be a net debtor, and the amount must not
// exceed what they owe overall.
func ValidateSettlement(balances map[uuid.UUID]int64, t Transfer) error {
	if _, err := SettlementDeltas(t); err != nil {
		return err
	}
	owed := -balances[t.From]
	if owed <= 0 {
		return &PolicyError{Reason: "payer has no outstanding debt to settle"}
	}
	if t.Amount > owed+Epsilon {
		return &PolicyError{Reason: "settlement amount exceeds outstanding debt of " + FromMinor(owed).String()}
	}
	return nil
}

// ApplyExpense applies an expense to the ledger and verifies conservation.
func (l *Ledger) ApplyExpense(payerID uuid.UUID, shares []Share) error {
	deltas, err := ExpenseDeltas(payerID, shares)
	if err != nil {
		return err
	}
	return l.apply(deltas)
}

// ReverseExpense undoes a previously applied expense. Edits always reverse the
// old splits and reapply the new ones; the ledger is never diff-patched.
func (l *Ledger) ReverseExpense(payerID uuid.UUID, shares []Share) error {
	deltas, err := ExpenseDeltas(payerID, shares)
	if err != nil {
		return err
	}
	return l.apply(negate(deltas))
}

// ApplySettlement records a payment between two members.
func (l *Ledger) ApplySettlement(t Transfer) error {
	deltas, err := SettlementDeltas(t)
	if err != nil {
		return err
	}
	return l.apply(deltas)
}

// ReverseSettlement undoes a recorded payment.
func (l *Ledger) ReverseSettlement(t Transfer) error {
	deltas, err := SettlementDeltas(t)
	if err != nil {
		return err
	}
	return l.apply(negate(deltas))
}

// Balance returns the member's net balance in base-currency minor units.
func (l *Ledger) Balance(memberID uuid.UUID) int64 {
	return l.balances[memberID]
}

// Balances returns a copy of every member's balance.
func (l *Ledger) Balances() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(l.balances))
	for id, b := range l.balances {
		out[id] = b
	}
	return out
}

// CheckConservation verifies that all balances sum to zero.
func (l *Ledger) CheckConservation() error {
	var sum int64
	for _, b := range l.balances {
		sum += b
	}
	if sum != 0 {
		return &ConsistencyError{Reason: "ledger balances do not sum to zero: " + FromMinor(sum).String()}
	}
	return nil
}

// apply commits a delta set atomically: either all balance changes land, or
// (on a conservation failure) every change is rolled back before returning.
func (l *Ledger) apply(deltas map[uuid.UUID]int64) error {
	for id, d := range deltas {
		l.balances[id] += d
	}
	if err := l.CheckConservation(); err != nil {
		for id, d := range deltas {
			l.balances[id] -= d
		}
		return err
	}
	return nil
}

func negate(deltas map[uuid.UUID]int64) map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(deltas))
	for id, d := range deltas {
		out[id] = -d
	}
	return out
}
