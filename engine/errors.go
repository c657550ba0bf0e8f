package engine

import "fmt"

// ValidationError reports malformed split input: percentages that don't sum to
// 100, fixed amounts that don't reconcile with the expense total, bad currencies.
// Recoverable; the caller should surface Reason to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PolicyError reports a denied mutation: role too low, unsettled balances,
// sole-admin protections. Recoverable; Reason is human-readable.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// ConsistencyError reports a broken ledger invariant (conservation law). This is
// a bug, not a user error: the operation must halt, never be silently corrected.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string { return e.Reason }

func validationErrf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
