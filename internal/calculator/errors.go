package calculator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidExpense marks input that breaks the caller contract: a negative
	// amount, an empty payer, or a payer/participant outside the member set.
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrInvariantViolation marks a failed post-condition. It means the
	// calculator or its input is broken and must never be corrected silently.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ExpenseError describes why a single expense was rejected.
type ExpenseError struct {
	ExpenseID string
	Reason    string
}

func (e *ExpenseError) Error() string {
	if e.ExpenseID == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidExpense, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrInvalidExpense, e.ExpenseID, e.Reason)
}

func (e *ExpenseError) Unwrap() error { return ErrInvalidExpense }

// InvariantError names the check that failed and what was observed.
type InvariantError struct {
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariantViolation, e.Check, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

func invalidExpense(id, format string, args ...any) error {
	return &ExpenseError{ExpenseID: id, Reason: fmt.Sprintf(format, args...)}
}

func invariantViolated(check, format string, args ...any) error {
	return &InvariantError{Check: check, Detail: fmt.Sprintf(format, args...)}
}
