package api

import (
	"github.com/arnac-io/multisig-coordinator/internal/g"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

func convertAccount(a core.Account) Account {
	return Account{
		Address:   a.Address,
		Kind:      string(a.Kind),
		Threshold: a.Threshold,
		Approvers: a.Approvers,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func convertApprovers(approvers []core.Approver) Approvers {
	res := Approvers{Approvers: make([]Approver, 0, len(approvers))}
	for i, a := range approvers {
		res.Approvers = append(res.Approvers, Approver{
			Address:      a.Address,
			Index:        i,
			PubKeyCommit: a.PubKeyCommit,
		})
	}
	return res
}

func convertTx(tx core.Tx) Tx {
	return Tx{
		TxID:                   tx.ID,
		MultisigAccountAddress: tx.AccountAddress,
		Status:                 string(tx.Status),
		TxRequest:              tx.Request,
		TxSummary:              tx.Summary,
		TxSummaryCommit:        tx.Commitment,
		SignatureCount:         tx.SignatureCount,
		CreatedAt:              tx.CreatedAt,
		UpdatedAt:              tx.UpdatedAt,
	}
}

func convertTxs(txs []core.Tx) Txs {
	res := Txs{Txs: make([]Tx, 0, len(txs))}
	for _, tx := range txs {
		res.Txs = append(res.Txs, convertTx(tx))
	}
	return res
}

func convertTxResult(r core.TxResult) TxResult {
	return TxResult{
		TxHash:  r.TxHash,
		Status:  string(r.Status),
		Payload: r.Payload,
		Reason:  r.Reason,
	}
}

func convertNotes(notes []core.Note) ConsumableNotes {
	res := ConsumableNotes{NoteIDs: make([][]byte, 0, len(notes))}
	for _, n := range notes {
		res.NoteIDs = append(res.NoteIDs, n.ID)
	}
	return res
}

func convertOptTxResult(r *core.TxResult) *TxResult {
	return g.NilToNil(convertTxResult, r)
}
