package blockchain

import (
	"context"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// Client is a blockchain client together with its local state. It is not
// safe for concurrent use: a Runtime hosts exactly one Client and calls it
// from a single goroutine.
type Client interface {
	// Sync brings the local state up to date with the network.
	Sync(ctx context.Context) error
	// ImportAccount starts tracking an account created earlier.
	ImportAccount(ctx context.Context, accountID []byte) error
	CreateAccount(ctx context.Context, threshold uint32, pubKeyCommits [][]byte) (AccountHandle, error)
	BuildTxSummary(ctx context.Context, accountID []byte, txRequest []byte) (TxSummary, error)
	// ExecuteTx submits a tx with signatures ordered by approver index. Slots
	// of approvers that have not signed are nil. A tx rejected by the chain is
	// reported as a failed TxResult, not as an error.
	ExecuteTx(ctx context.Context, accountID []byte, txRequest []byte, summary []byte, signatures [][]byte) (core.TxResult, error)
	// ConsumableNotes lists notes that can be consumed. A nil accountID means
	// notes of every tracked account.
	ConsumableNotes(ctx context.Context, accountID []byte) ([]core.Note, error)
	Close() error
}

// ClientFactory builds a Client. It runs on the runtime goroutine, so the
// Client never leaves it.
type ClientFactory func(ctx context.Context) (Client, error)

type AccountHandle struct {
	ID            []byte
	Threshold     uint32
	PubKeyCommits [][]byte
}

type TxSummary struct {
	Summary    []byte
	Commitment []byte
}
