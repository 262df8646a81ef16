package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for ledger precondition failures. Callers match with
// errors.Is; messages are surfaced to users and into the failure audit log.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrPaymentExceedsOwed  = errors.New("payment exceeds owed credit balance")
)

// ValidationError reports a malformed or missing intent field. Validation
// failures are rejected before any side effect and are never audited.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
