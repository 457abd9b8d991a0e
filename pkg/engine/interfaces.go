package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// Storage keeps the durable multisig state. Every method is atomic.
type Storage interface {
	InsertAccount(ctx context.Context, account core.Account, approvers []core.Approver) error
	GetAccount(ctx context.Context, address string) (*core.Account, error)
	ListApprovers(ctx context.Context, address string) ([]core.Approver, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)

	InsertTx(ctx context.Context, tx core.Tx) error
	GetTx(ctx context.Context, id uuid.UUID) (*core.Tx, error)
	ListTxs(ctx context.Context, address string, status *core.TxStatus) ([]core.Tx, error)
	TxStats(ctx context.Context, address string) (core.TxStats, error)

	// InsertSignature returns false if the approver already signed the tx.
	InsertSignature(ctx context.Context, sig core.Signature) (bool, error)
	CountSignatures(ctx context.Context, id uuid.UUID) (int, error)
	SignaturesByApproverIndex(ctx context.Context, id uuid.UUID) ([][]byte, error)

	// TryClaimForExecution atomically moves a pending tx to executing and
	// reports whether this caller did it.
	TryClaimForExecution(ctx context.Context, id uuid.UUID) (bool, error)
	FinalizeTx(ctx context.Context, id uuid.UUID, outcome core.TxStatus) error
}
