/*
errors.go - Centralized error types for the coin engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Higher layers (scheme registry, engine, API) wrap these with context.

ERROR CATEGORIES:
  1. Lookup errors     - Unknown account/scheme/redemption/item
  2. Balance errors    - Debit exceeding available coins
  3. Scheme errors     - Inactive, out-of-window, or exhausted schemes
  4. Workflow errors   - Illegal redemption status transitions
  5. Ledger errors     - Idempotency conflicts, failed compensation

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      // reject with 409, balances untouched
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced account, scheme, redemption,
	// or catalog item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSchemeNotActive is returned when a scheme is disabled or the current
	// time is outside its validity window.
	ErrSchemeNotActive = errors.New("scheme not active")

	// ErrSchemeExhausted is returned when a scheme's usage counter would
	// exceed its configured maximum.
	ErrSchemeExhausted = errors.New("scheme exhausted")

	// ErrInvalidTransition is returned for an illegal redemption status change.
	ErrInvalidTransition = errors.New("invalid redemption transition")

	// ErrValidation is returned for malformed input (non-positive or
	// fractional amounts, bad validity windows, missing fields).
	ErrValidation = errors.New("validation error")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrCompensationFailed is returned when a compensating step (usage
	// rollback, balance restore) itself fails. The operation must surface
	// this instead of reporting success; manual reconciliation is required.
	ErrCompensationFailed = errors.New("compensation failed")

	// ErrAccountDisabled is returned when an operation targets a soft-disabled account.
	ErrAccountDisabled = errors.New("account disabled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available %v, requested %v",
		e.AccountID, e.Available.Value, e.Requested.Value)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Kind string // "account", "scheme", "redemption", "reward_item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError describes why input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError records an attempted illegal redemption transition.
type TransitionError struct {
	RedemptionID RedemptionID
	From, To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("redemption %s: cannot transition %s -> %s", e.RedemptionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CompensationError wraps both the original failure and the failed
// compensating step so neither is lost.
type CompensationError struct {
	Op        string
	Original  error
	Rollback  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: compensation failed: %v (original: %v)", e.Op, e.Rollback, e.Original)
}

func (e *CompensationError) Unwrap() error { return ErrCompensationFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or state the client can observe, rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSchemeNotActive) ||
		errors.Is(err, ErrSchemeExhausted) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAccountDisabled)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
