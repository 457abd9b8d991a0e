package engine

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
	"github.com/arnac-io/multisig-coordinator/pkg/sentry"
)

// ProposeMultisigTx builds the summary approvers have to sign and stores the
// tx as pending.
func (s *Started) ProposeMultisigTx(ctx context.Context, address string, txRequest []byte) (*core.Tx, error) {
	rt, err := s.rt()
	if err != nil {
		return nil, err
	}
	if len(txRequest) == 0 {
		return nil, core.ErrEmptyPayload
	}
	account, err := s.getAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	id, err := s.codec.Decode(account.Address)
	if err != nil {
		return nil, err
	}
	summary, err := rt.BuildTxSummary(ctx, id, txRequest)
	if err != nil {
		if errors.Is(err, blockchain.ErrInvalidRequest) {
			return nil, errors.Wrap(core.ErrValidation, err.Error())
		}
		return nil, errors.Wrap(err, "build tx summary")
	}
	tx, err := core.NewTx(account.Address, txRequest, summary.Summary, summary.Commitment)
	if err != nil {
		return nil, err
	}
	if err := s.storage.InsertTx(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("multisig tx proposed",
		zap.String("account", account.Address),
		zap.Stringer("tx_id", tx.ID))
	return &tx, nil
}

// ListMultisigTx lists the txs of an account, newest first. A nil status
// lists every tx.
func (s *Started) ListMultisigTx(ctx context.Context, address string, status *core.TxStatus) ([]core.Tx, error) {
	if _, err := s.rt(); err != nil {
		return nil, err
	}
	if _, err := s.getAccount(ctx, address); err != nil {
		return nil, err
	}
	return s.storage.ListTxs(ctx, address, status)
}

func (s *Started) GetMultisigTx(ctx context.Context, id uuid.UUID) (*core.Tx, error) {
	if _, err := s.rt(); err != nil {
		return nil, err
	}
	return s.storage.GetTx(ctx, id)
}

func (s *Started) GetMultisigTxStats(ctx context.Context, address string) (core.TxStats, error) {
	if _, err := s.rt(); err != nil {
		return core.TxStats{}, err
	}
	if _, err := s.getAccount(ctx, address); err != nil {
		return core.TxStats{}, err
	}
	return s.storage.TxStats(ctx, address)
}

// AddSignature records an approver's signature over the tx commitment. The
// call that brings the tx to its account threshold and wins the execution
// claim executes the tx and gets its result. Every other call returns a nil
// result, including a repeated signature from the same approver.
//
// A failed execution is returned as the result together with an error
// wrapping core.ErrExecutionFailure.
func (s *Started) AddSignature(ctx context.Context, txID uuid.UUID, approver string, signature []byte) (*core.TxResult, error) {
	rt, err := s.rt()
	if err != nil {
		return nil, err
	}
	tx, err := s.storage.GetTx(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != core.TxStatusPending {
		return nil, errors.Wrapf(core.ErrTxNotPending, "tx %s is %s", txID, tx.Status)
	}
	canonical, err := s.codec.Canonical(approver)
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidApprover, err.Error())
	}
	approver = canonical
	account, err := s.getAccount(ctx, tx.AccountAddress)
	if err != nil {
		return nil, err
	}
	if _, ok := account.ApproverIndex(approver); !ok {
		return nil, errors.Wrapf(core.ErrInvalidApprover, "%s is not an approver of %s", approver, account.Address)
	}
	sig, err := core.NewSignature(txID, approver, signature)
	if err != nil {
		return nil, err
	}
	inserted, err := s.storage.InsertSignature(ctx, sig)
	if errors.Is(err, core.ErrApproverNotFound) {
		return nil, errors.Wrap(core.ErrInvalidApprover, err.Error())
	}
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.logger.Debug("signature already recorded", zap.Stringer("tx_id", txID), zap.String("approver", approver))
		return nil, nil
	}

	count, err := s.storage.CountSignatures(ctx, txID)
	if err != nil {
		return nil, err
	}
	if count < int(account.Threshold) {
		return nil, nil
	}
	claimed, err := s.storage.TryClaimForExecution(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	return s.execute(ctx, rt, account, tx)
}

// execute runs a claimed tx on the client and records its outcome. The tx
// is always finalized, also when the caller stops waiting.
func (s *Started) execute(ctx context.Context, rt *blockchain.Runtime, account *core.Account, tx *core.Tx) (*core.TxResult, error) {
	// The claim is taken, so the outcome has to be recorded even if the
	// caller goes away.
	finalizeCtx := context.WithoutCancel(ctx)
	log := s.logger.With(zap.Stringer("tx_id", tx.ID), zap.String("account", account.Address))

	id, err := s.codec.Decode(account.Address)
	if err != nil {
		s.finalize(finalizeCtx, log, tx.ID, core.TxStatusFailure)
		return nil, err
	}
	signatures, err := s.storage.SignaturesByApproverIndex(finalizeCtx, tx.ID)
	if err != nil {
		s.finalize(finalizeCtx, log, tx.ID, core.TxStatusFailure)
		return nil, errors.Wrap(err, "load signatures")
	}
	future, err := rt.ExecuteTx(finalizeCtx, id, tx.Request, tx.Summary, signatures)
	if err != nil {
		// Never reached the client.
		s.finalize(finalizeCtx, log, tx.ID, core.TxStatusFailure)
		return nil, err
	}
	result, err := future.Wait(ctx)
	if gaveUp(err) {
		log.Warn("stopped waiting for tx execution, following it in background", zap.Error(err))
		s.follow(func() {
			result, err := future.WaitDetached(finalizeCtx)
			s.record(finalizeCtx, log, tx.ID, result, err)
		})
		return nil, err
	}
	return s.record(finalizeCtx, log, tx.ID, result, err)
}

// record finalizes a tx from the answer of the client.
func (s *Started) record(ctx context.Context, log *zap.Logger, id uuid.UUID, result core.TxResult, err error) (*core.TxResult, error) {
	if err != nil {
		if errors.Is(err, blockchain.ErrRuntimeDisconnected) {
			// The client went away while holding the tx; whether it reached
			// the chain is unknown.
			sentry.Send("multisig tx lost by blockchain client", sentry.SentryInfoData{
				"tx_id": id.String(),
				"error": err.Error(),
			}, sentry.LevelError)
		}
		executedTxCounterVec.WithLabelValues("error").Inc()
		log.Error("tx execution failed", zap.Error(err))
		s.finalize(ctx, log, id, core.TxStatusFailure)
		return nil, err
	}
	if result.Status != core.TxStatusSuccess {
		result.Status = core.TxStatusFailure
		executedTxCounterVec.WithLabelValues(string(core.TxStatusFailure)).Inc()
		log.Info("tx execution rejected", zap.String("reason", result.Reason))
		if err := s.finalize(ctx, log, id, core.TxStatusFailure); err != nil {
			return &result, err
		}
		return &result, errors.Wrap(core.ErrExecutionFailure, result.Reason)
	}
	executedTxCounterVec.WithLabelValues(string(core.TxStatusSuccess)).Inc()
	if err := s.finalize(ctx, log, id, core.TxStatusSuccess); err != nil {
		return &result, err
	}
	log.Info("tx executed", zap.Binary("tx_hash", result.TxHash))
	return &result, nil
}

func (s *Started) finalize(ctx context.Context, log *zap.Logger, id uuid.UUID, outcome core.TxStatus) error {
	err := s.storage.FinalizeTx(ctx, id, outcome)
	if err != nil {
		log.Error("failed to finalize tx", zap.String("outcome", string(outcome)), zap.Error(err))
		sentry.Send("multisig tx executed but not finalized", sentry.SentryInfoData{
			"tx_id":   id.String(),
			"outcome": string(outcome),
			"error":   err.Error(),
		}, sentry.LevelError)
	}
	return err
}

// gaveUp reports whether err means the caller stopped waiting for a request
// the client may still run.
func gaveUp(err error) bool {
	return errors.Is(err, blockchain.ErrRuntimeTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
