package core

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	// TxStatusExecuting marks a tx whose execution rights were claimed but
	// whose outcome is not recorded yet. It is never accepted as input.
	TxStatusExecuting TxStatus = "executing"
	TxStatusSuccess   TxStatus = "success"
	TxStatusFailure   TxStatus = "failure"
)

// ParseTxStatus accepts the statuses callers are allowed to filter by.
func ParseTxStatus(s string) (TxStatus, error) {
	switch st := TxStatus(s); st {
	case TxStatusPending, TxStatusSuccess, TxStatusFailure:
		return st, nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
}

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusSuccess || s == TxStatusFailure
}

// Tx is a proposed transaction against a multisig account. Request, Summary
// and Commitment are opaque client payloads; approvers sign the Commitment.
type Tx struct {
	ID             uuid.UUID
	AccountAddress string
	Status         TxStatus
	Request        []byte
	Summary        []byte
	Commitment     []byte
	SignatureCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewTx(accountAddress string, request, summary, commitment []byte) (Tx, error) {
	if accountAddress == "" {
		return Tx{}, errors.Wrap(ErrInvalidAddress, "empty account address")
	}
	for name, b := range map[string][]byte{"tx request": request, "tx summary": summary, "tx summary commit": commitment} {
		if len(b) == 0 {
			return Tx{}, errors.Wrap(ErrEmptyPayload, name)
		}
	}
	now := time.Now().UTC()
	return Tx{
		ID:             uuid.New(),
		AccountAddress: accountAddress,
		Status:         TxStatusPending,
		Request:        request,
		Summary:        summary,
		Commitment:     commitment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

type Signature struct {
	TxID      uuid.UUID
	Approver  string
	Bytes     []byte
	CreatedAt time.Time
}

func NewSignature(txID uuid.UUID, approver string, sig []byte) (Signature, error) {
	if approver == "" {
		return Signature{}, errors.Wrap(ErrInvalidAddress, "empty approver address")
	}
	if len(sig) == 0 {
		return Signature{}, errors.Wrap(ErrEmptyPayload, "signature")
	}
	return Signature{
		TxID:      txID,
		Approver:  approver,
		Bytes:     sig,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TxResult is what the blockchain client reports after executing a tx.
type TxResult struct {
	TxHash  []byte
	Status  TxStatus
	Payload []byte
	Reason  string
}

type Note struct {
	ID        []byte
	Account   []byte
	Recipient string
	Asset     string
	Amount    uint64
	CreatedAt time.Time
}

type TxStats struct {
	Total        int64
	LastMonth    int64
	TotalSuccess int64
}
