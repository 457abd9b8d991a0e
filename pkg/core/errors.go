package core

import (
	"fmt"

	"github.com/go-faster/errors"
)

var ErrEntityNotFound = errors.New("entity not found")
var ErrValidation = errors.New("validation failed")
var ErrConflict = errors.New("conflict")

var (
	ErrAccountNotFound  = errors.Wrap(ErrEntityNotFound, "multisig account")
	ErrTxNotFound       = errors.Wrap(ErrEntityNotFound, "multisig tx")
	ErrApproverNotFound = errors.Wrap(ErrEntityNotFound, "approver")

	ErrInvalidThreshold  = errors.Wrap(ErrValidation, "invalid threshold")
	ErrDuplicateApprover = errors.Wrap(ErrValidation, "duplicate approver")
	ErrEmptyPayload      = errors.Wrap(ErrValidation, "empty payload")
	ErrInvalidAddress    = errors.Wrap(ErrValidation, "invalid address")
	ErrInvalidStatus     = errors.Wrap(ErrValidation, "invalid tx status")

	// ErrInvalidApprover is returned when a signature comes from an address
	// outside of the account's approver set.
	ErrInvalidApprover = errors.New("approver is not part of the multisig account")
	// ErrTxNotPending is returned for any mutation of a tx that already left
	// the pending state.
	ErrTxNotPending = errors.New("multisig tx is not pending")

	ErrExecutionFailure = errors.New("multisig tx execution failed")
)

// CreatedButNotPersistedError means the account exists on chain but the
// store write failed. The client-side creation is irreversible, so the caller
// gets everything needed to retry the persistence step alone.
type CreatedButNotPersistedError struct {
	Account   Account
	Approvers []Approver
	Err       error
}

func (e *CreatedButNotPersistedError) Error() string {
	return fmt.Sprintf("multisig account %s created but not persisted: %v", e.Account.Address, e.Err)
}

func (e *CreatedButNotPersistedError) Unwrap() error {
	return e.Err
}
