package dbstorage

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

type accountModel struct {
	bun.BaseModel `bun:"table:multisig_account,alias:ma"`
	Address       string    `bun:"address,pk"`
	Kind          string    `bun:"kind"`
	Threshold     uint32    `bun:"threshold"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

type approverModel struct {
	bun.BaseModel `bun:"table:approver,alias:ap"`
	Address       string    `bun:"address,pk"`
	PubKeyCommit  []byte    `bun:"pub_key_commit"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

type accountApproverModel struct {
	bun.BaseModel   `bun:"table:multisig_account_approver,alias:maa"`
	AccountAddress  string `bun:"account_address,pk"`
	ApproverAddress string `bun:"approver_address,pk"`
	ApproverIndex   int    `bun:"approver_index"`
}

type txModel struct {
	bun.BaseModel  `bun:"table:multisig_tx,alias:mt"`
	ID             string    `bun:"id,pk"`
	AccountAddress string    `bun:"account_address"`
	Status         string    `bun:"status"`
	Request        []byte    `bun:"tx_request"`
	Summary        []byte    `bun:"tx_summary"`
	Commitment     []byte    `bun:"tx_summary_commit"`
	SignatureCount int       `bun:"signature_count,scanonly"`
	CreatedAt      time.Time `bun:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at"`
}

type signatureModel struct {
	bun.BaseModel   `bun:"table:signature,alias:sg"`
	TxID            string    `bun:"tx_id,pk"`
	ApproverAddress string    `bun:"approver_address,pk"`
	Bytes           []byte    `bun:"signature_bytes"`
	CreatedAt       time.Time `bun:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at"`
}

func (m accountModel) toCore(approvers []string) core.Account {
	return core.Account{
		Address:   m.Address,
		Kind:      core.AccountKind(m.Kind),
		Threshold: m.Threshold,
		Approvers: approvers,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func (m approverModel) toCore() core.Approver {
	return core.Approver{
		Address:      m.Address,
		PubKeyCommit: m.PubKeyCommit,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (m txModel) toCore() (core.Tx, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return core.Tx{}, err
	}
	return core.Tx{
		ID:             id,
		AccountAddress: m.AccountAddress,
		Status:         core.TxStatus(m.Status),
		Request:        m.Request,
		Summary:        m.Summary,
		Commitment:     m.Commitment,
		SignatureCount: m.SignatureCount,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}
