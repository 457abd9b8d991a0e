package core

import (
	"time"

	"github.com/go-faster/errors"
)

type AccountKind string

const (
	AccountKindPrivate AccountKind = "private"
	AccountKindPublic  AccountKind = "public"
)

// Account is a shared N-of-M account. Approvers are kept in index order:
// the position of an address in the slice is its approver index, and that
// order is the one signatures are presented to the blockchain client in.
type Account struct {
	Address   string
	Kind      AccountKind
	Threshold uint32
	Approvers []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Approver is referenced by any number of accounts. The first writer of an
// address defines its PubKeyCommit.
type Approver struct {
	Address      string
	PubKeyCommit []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateQuorum checks that 1 <= threshold <= len(approvers) and that no
// approver address repeats.
func ValidateQuorum(threshold uint32, approvers []string) error {
	if threshold == 0 {
		return errors.Wrap(ErrInvalidThreshold, "threshold must be positive")
	}
	if int(threshold) > len(approvers) {
		return errors.Wrapf(ErrInvalidThreshold, "threshold %d exceeds %d approvers", threshold, len(approvers))
	}
	seen := make(map[string]struct{}, len(approvers))
	for _, a := range approvers {
		if a == "" {
			return errors.Wrap(ErrInvalidAddress, "empty approver address")
		}
		if _, ok := seen[a]; ok {
			return errors.Wrapf(ErrDuplicateApprover, "%s", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

func NewAccount(address string, kind AccountKind, threshold uint32, approvers []string) (Account, error) {
	if address == "" {
		return Account{}, errors.Wrap(ErrInvalidAddress, "empty account address")
	}
	switch kind {
	case AccountKindPrivate, AccountKindPublic:
	default:
		return Account{}, errors.Wrapf(ErrValidation, "unknown account kind %q", kind)
	}
	if err := ValidateQuorum(threshold, approvers); err != nil {
		return Account{}, err
	}
	now := time.Now().UTC()
	return Account{
		Address:   address,
		Kind:      kind,
		Threshold: threshold,
		Approvers: append([]string(nil), approvers...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApproverIndex returns the position of approver in the account's set.
func (a Account) ApproverIndex(approver string) (int, bool) {
	for i, addr := range a.Approvers {
		if addr == approver {
			return i, true
		}
	}
	return 0, false
}

func NewApprover(address string, pubKeyCommit []byte) (Approver, error) {
	if address == "" {
		return Approver{}, errors.Wrap(ErrInvalidAddress, "empty approver address")
	}
	if len(pubKeyCommit) == 0 {
		return Approver{}, errors.Wrapf(ErrEmptyPayload, "pub key commit of %s", address)
	}
	now := time.Now().UTC()
	return Approver{
		Address:      address,
		PubKeyCommit: append([]byte(nil), pubKeyCommit...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
