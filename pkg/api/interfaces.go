package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// coordinator is the running multisig engine.
type coordinator interface {
	CreateMultisigAccount(ctx context.Context, threshold uint32, approvers []string, pubKeyCommits [][]byte) (*core.Account, error)
	GetMultisigAccount(ctx context.Context, address string) (*core.Account, error)
	ListMultisigApprovers(ctx context.Context, address string) ([]core.Approver, error)

	ProposeMultisigTx(ctx context.Context, address string, txRequest []byte) (*core.Tx, error)
	// AddSignature returns a nil result unless this signature triggered the
	// execution of the tx.
	AddSignature(ctx context.Context, txID uuid.UUID, approver string, signature []byte) (*core.TxResult, error)
	ListMultisigTx(ctx context.Context, address string, status *core.TxStatus) ([]core.Tx, error)
	GetMultisigTx(ctx context.Context, id uuid.UUID) (*core.Tx, error)
	GetMultisigTxStats(ctx context.Context, address string) (core.TxStats, error)

	GetConsumableNotes(ctx context.Context, address *string) ([]core.Note, error)
}
