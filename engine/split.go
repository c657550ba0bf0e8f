package engine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy selects how an expense total is divided among participants.
type Strategy string

const (
	SplitEqual      Strategy = "equal"
	SplitExact      Strategy = "exact" // each participant supplies an amount
	SplitPercentage Strategy = "percentage"
	SplitShares     Strategy = "shares"
)

// ParseStrategy normalizes a wire-format split type. "fixed" is accepted as an
// alias for "exact".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "equal":
		return SplitEqual, nil
	case "exact", "fixed":
		return SplitExact, nil
	case "percentage":
		return SplitPercentage, nil
	case "shares":
		return SplitShares, nil
	}
	return "", validationErrf("invalid split type: %s", s)
}

// Participant is one member's input to the split calculation. Which field is
// read depends on the strategy: Amount for exact, Percent for percentage,
// Shares for shares. Equal splits ignore all three.
type Participant struct {
	MemberID uuid.UUID
	Amount   int64 // minor units
	Percent  decimal.Decimal
	Shares   int64
}

// Share is one member's computed slice of an expense.
type Share struct {
	MemberID uuid.UUID
	Amount   int64 // minor units
	Percent  decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeSplits divides total (minor units) among participants according to the
// strategy. It is pure: no side effects, and it never returns a partial result.
// The returned shares always sum to total exactly for equal, percentage and
// shares strategies; exact splits may deviate from total by at most Epsilon,
// which callers absorb via the shares-of-others ledger rule.
func ComputeSplits(total int64, strategy Strategy, participants []Participant) ([]Share, error) {
	if total <= 0 {
		return nil, validationErrf("expense total must be greater than zero")
	}
	if len(participants) == 0 {
		return nil, validationErrf("at least one participant is required")
	}
	seen := make(map[uuid.UUID]bool, len(participants))
	for _, p := range participants {
		if p.MemberID == uuid.Nil {
			return nil, validationErrf("participant member id is required")
		}
		if seen[p.MemberID] {
			return nil, validationErrf("duplicate participant: %s", p.MemberID)
		}
		seen[p.MemberID] = true
	}

	switch strategy {
	case SplitEqual:
		return splitEqual(total, participants), nil
	case SplitExact:
		return splitExact(total, participants)
	case SplitPercentage:
		return splitPercentage(total, participants)
	case SplitShares:
		return splitShares(total, participants)
	}
	return nil, validationErrf("invalid split type: %s", strategy)
}

// splitEqual divides total evenly. The remainder of the integer division is
// spread one minor unit at a time over the first participants in input order,
// which is the largest-remainder method with ties broken by position.
func splitEqual(total int64, participants []Participant) []Share {
	n := int64(len(participants))
	base := total / n
	remainder := total - base*n

	shares := make([]Share, len(participants))
	for i, p := range participants {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		shares[i] = Share{
			MemberID: p.MemberID,
			Amount:   amount,
			Percent:  percentOf(amount, total),
		}
	}
	return shares
}

func splitExact(total int64, participants []Participant) ([]Share, error) {
	var sum int64
	for _, p := range participants {
		if p.Amount < 0 {
			return nil, validationErrf("split amount cannot be negative")
		}
		sum += p.Amount
	}
	if !WithinEpsilon(sum, total) {
		return nil, validationErrf("split amounts (%s) don't add up to total (%s)",
			FromMinor(sum), FromMinor(total))
	}

	shares := make([]Share, len(participants))
	for i, p := range participants {
		shares[i] = Share{
			MemberID: p.MemberID,
			Amount:   p.Amount,
			Percent:  percentOf(p.Amount, total),
		}
	}
	return shares, nil
}

func splitPercentage(total int64, participants []Participant) ([]Share, error) {
	sum := decimal.Zero
	for _, p := range participants {
		if p.Percent.IsNegative() {
			return nil, validationErrf("percentage cannot be negative")
		}
		sum = sum.Add(p.Percent)
	}
	// Reject 99.5 and 100.5 equally; tolerance is 0.01 percentage points.
	if sum.Sub(hundred).Abs().GreaterThan(decimal.New(1, -2)) {
		return nil, validationErrf("percentages must add up to 100, got %s", sum)
	}

	weights := make([]decimal.Decimal, len(participants))
	for i, p := range participants {
		weights[i] = p.Percent.Div(hundred)
	}
	amounts := allocate(total, weights)

	shares := make([]Share, len(participants))
	for i, p := range participants {
		shares[i] = Share{MemberID: p.MemberID, Amount: amounts[i], Percent: p.Percent}
	}
	return shares, nil
}

func splitShares(total int64, participants []Participant) ([]Share, error) {
	var totalShares int64
	for _, p := range participants {
		if p.Shares < 0 {
			return nil, validationErrf("share count cannot be negative")
		}
		totalShares += p.Shares
	}
	if totalShares <= 0 {
		return nil, validationErrf("total shares must be greater than zero")
	}

	weights := make([]decimal.Decimal, len(participants))
	div := decimal.NewFromInt(totalShares)
	for i, p := range participants {
		weights[i] = decimal.NewFromInt(p.Shares).Div(div)
	}
	amounts := allocate(total, weights)

	shares := make([]Share, len(participants))
	for i, p := range participants {
		shares[i] = Share{
			MemberID: p.MemberID,
			Amount:   amounts[i],
			Percent:  percentOf(amounts[i], total),
		}
	}
	return shares, nil
}

// allocate distributes total over weights so the results sum to total exactly.
// Each slot gets the floor of its proportional amount; leftover minor units go
// to the slots with the largest fractional remainders, earlier slots first on
// ties (largest-remainder method). Weights may sum to slightly more than one
// (percentages up to 100.01 pass validation), in which case the floors can
// overshoot and the deficit is taken back from the smallest remainders.
func allocate(total int64, weights []decimal.Decimal) []int64 {
	type slot struct {
		index     int
		remainder decimal.Decimal
	}

	amounts := make([]int64, len(weights))
	slots := make([]slot, len(weights))
	totalDec := decimal.NewFromInt(total)

	var allocated int64
	for i, w := range weights {
		raw := totalDec.Mul(w)
		floor := raw.Floor()
		amounts[i] = floor.IntPart()
		allocated += amounts[i]
		slots[i] = slot{index: i, remainder: raw.Sub(floor)}
	}

	sort.SliceStable(slots, func(a, b int) bool {
		return slots[a].remainder.GreaterThan(slots[b].remainder)
	})

	leftover := total - allocated
	for i := int64(0); leftover > 0; i++ {
		amounts[slots[i%int64(len(slots))].index]++
		leftover--
	}
	for i := 0; leftover < 0; i = (i + 1) % len(slots) {
		idx := slots[len(slots)-1-i].index
		if amounts[idx] > 0 {
			amounts[idx]--
			leftover++
		}
	}
	return amounts
}

func percentOf(amount, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(amount).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2)
}
