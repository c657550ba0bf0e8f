package engine

import (
	"sort"

	"github.com/google/uuid"
)

// DebtEdge is a simplified debt: From owes To Amount (base-currency minor units).
type DebtEdge struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount int64
}

// SimplifyDebts reduces a set of net balances to a minimal list of pairwise
// transfers using greedy matching: the largest debtor pays the largest creditor
// until both sides are exhausted. Ordering is deterministic (amount descending,
// then member ID), so the same balances always produce the same
// edges.
func SimplifyDebts(balances map[uuid.UUID]int64) []DebtEdge {
	type stake struct {
		id     uuid.UUID
		amount int64
	}

	var creditors, debtors []stake
	for id, b := range balances {
		if b > Epsilon {
			creditors = append(creditors, stake{id, b})
		} else if b < -Epsilon {
			debtors = append(debtors, stake{id, -b})
		}
	}

	byAmount := func(s []stake) {
		sort.Slice(s, func(a, b int) bool {
			if s[a].amount != s[b].amount {
				return s[a].amount > s[b].amount
			}
			return s[a].id.String() < s[b].id.String()
		})
	}
	byAmount(creditors)
	byAmount(debtors)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].amount
		if creditors[j].amount < amount {
			amount = creditors[j].amount
		}

		if amount > Epsilon {
			edges = append(edges, DebtEdge{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: amount,
			})
		}

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		if debtors[i].amount <= Epsilon {
			i++
		}
		if creditors[j].amount <= Epsilon {
			j++
		}
	}
	return edges
}

// OutstandingDebt returns how much `from` currently owes `to` under the
// simplified debt matrix. Display only; settlements are validated against the
// payer's overall net debt, not this pairwise figure.
func OutstandingDebt(balances map[uuid.UUID]int64, from, to uuid.UUID) int64 {
	for _, e := range SimplifyDebts(balances) {
		if e.From == from && e.To == to {
			return e.Amount
		}
	}
	return 0
}
