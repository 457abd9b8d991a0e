package api

import "context"

type Handler struct {
	coordinator coordinator
}

func NewHandler(c coordinator) Handler {
	return Handler{coordinator: c}
}

func (h Handler) CreateMultisigAccount(ctx context.Context, req *CreateMultisigAccountReq) (encoder, error) {
	account, err := h.coordinator.CreateMultisigAccount(ctx, req.Threshold, req.Approvers, req.PubKeyCommits)
	if err != nil {
		return nil, err
	}
	return CreatedAccount{
		Address:   account.Address,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, nil
}

func (h Handler) GetMultisigAccount(ctx context.Context, req *AccountAddressReq) (encoder, error) {
	account, err := h.coordinator.GetMultisigAccount(ctx, req.MultisigAccountAddress)
	if err != nil {
		return nil, err
	}
	return convertAccount(*account), nil
}

func (h Handler) ListMultisigApprovers(ctx context.Context, req *AccountAddressReq) (encoder, error) {
	approvers, err := h.coordinator.ListMultisigApprovers(ctx, req.MultisigAccountAddress)
	if err != nil {
		return nil, err
	}
	return convertApprovers(approvers), nil
}

func (h Handler) ProposeMultisigTx(ctx context.Context, req *ProposeMultisigTxReq) (encoder, error) {
	tx, err := h.coordinator.ProposeMultisigTx(ctx, req.MultisigAccountAddress, req.TxRequest)
	if err != nil {
		return nil, err
	}
	return ProposedTx{TxID: tx.ID, TxSummary: tx.Summary, TxSummaryCommit: tx.Commitment}, nil
}

func (h Handler) AddSignature(ctx context.Context, req *AddSignatureReq) (encoder, error) {
	result, err := h.coordinator.AddSignature(ctx, req.TxID, req.Approver, req.Signature)
	if err != nil {
		return nil, convertError(err, result)
	}
	return SignatureAdded{TxResult: convertOptTxResult(result)}, nil
}

func (h Handler) ListMultisigTx(ctx context.Context, req *ListMultisigTxReq) (encoder, error) {
	txs, err := h.coordinator.ListMultisigTx(ctx, req.MultisigAccountAddress, req.TxStatusFilter)
	if err != nil {
		return nil, err
	}
	return convertTxs(txs), nil
}

func (h Handler) GetMultisigTx(ctx context.Context, req *TxIDReq) (encoder, error) {
	tx, err := h.coordinator.GetMultisigTx(ctx, req.TxID)
	if err != nil {
		return nil, err
	}
	return convertTx(*tx), nil
}

func (h Handler) GetMultisigTxStats(ctx context.Context, req *AccountAddressReq) (encoder, error) {
	stats, err := h.coordinator.GetMultisigTxStats(ctx, req.MultisigAccountAddress)
	if err != nil {
		return nil, err
	}
	return TxStats(stats), nil
}

func (h Handler) GetConsumableNotes(ctx context.Context, req *ConsumableNotesReq) (encoder, error) {
	notes, err := h.coordinator.GetConsumableNotes(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	return convertNotes(notes), nil
}
