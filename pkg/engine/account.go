package engine

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
	"github.com/arnac-io/multisig-coordinator/pkg/sentry"
)

// CreateMultisigAccount creates the account on chain and persists it.
// Approver indices follow the order of approvers, and approver addresses are
// stored in canonical form.
//
// Chain-side creation cannot be undone. If persisting fails afterwards the
// returned error is a *core.CreatedButNotPersistedError, which can be handed
// to ReconcileAccount. If the caller stops waiting for the client, the
// account is persisted once the client is done with it.
func (s *Started) CreateMultisigAccount(ctx context.Context, threshold uint32, approvers []string, pubKeyCommits [][]byte) (*core.Account, error) {
	rt, err := s.rt()
	if err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		return nil, errors.Wrap(core.ErrValidation, "no approvers")
	}
	if len(approvers) != len(pubKeyCommits) {
		return nil, errors.Wrapf(core.ErrValidation, "%d approvers but %d pub key commits", len(approvers), len(pubKeyCommits))
	}
	canonical := make([]string, 0, len(approvers))
	for i, addr := range approvers {
		c, err := s.codec.Canonical(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "approver %d", i)
		}
		canonical = append(canonical, c)
	}
	if err := core.ValidateQuorum(threshold, canonical); err != nil {
		return nil, err
	}
	records := make([]core.Approver, 0, len(canonical))
	for i, addr := range canonical {
		record, err := core.NewApprover(addr, pubKeyCommits[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	future, err := rt.CreateAccount(ctx, threshold, pubKeyCommits)
	if err != nil {
		return nil, errors.Wrap(err, "create account on chain")
	}
	handle, err := future.Wait(ctx)
	if gaveUp(err) {
		s.logger.Warn("stopped waiting for account creation, following it in background", zap.Error(err))
		persistCtx := context.WithoutCancel(ctx)
		s.follow(func() {
			handle, err := future.WaitDetached(persistCtx)
			if err != nil {
				s.logger.Error("late account creation failed", zap.Error(err))
				return
			}
			_, _ = s.persistAccount(persistCtx, handle, threshold, canonical, records)
		})
		return nil, errors.Wrap(err, "create account on chain")
	}
	if errors.Is(err, blockchain.ErrInvalidRequest) {
		return nil, errors.Wrap(core.ErrValidation, err.Error())
	}
	if err != nil {
		return nil, errors.Wrap(err, "create account on chain")
	}
	return s.persistAccount(ctx, handle, threshold, canonical, records)
}

// persistAccount stores an account the client has already created.
func (s *Started) persistAccount(ctx context.Context, handle blockchain.AccountHandle, threshold uint32, approvers []string, records []core.Approver) (*core.Account, error) {
	addr, err := s.codec.Encode(handle.ID)
	if err != nil {
		return nil, errors.Wrap(err, "encode account address")
	}
	account, err := core.NewAccount(addr, core.AccountKindPublic, threshold, approvers)
	if err != nil {
		return nil, err
	}
	if err := s.storage.InsertAccount(ctx, account, records); err != nil {
		s.logger.Error("multisig account created but not persisted",
			zap.String("account", addr),
			zap.Error(err))
		sentry.Send("multisig account created but not persisted", sentry.SentryInfoData{
			"account": addr,
			"error":   err.Error(),
		}, sentry.LevelError)
		return nil, &core.CreatedButNotPersistedError{Account: account, Approvers: records, Err: err}
	}
	s.accounts.Set(addr, account)
	s.logger.Info("multisig account created",
		zap.String("account", addr),
		zap.Uint32("threshold", threshold),
		zap.Int("approvers", len(approvers)))
	return &account, nil
}

// ReconcileAccount retries persisting an account that CreateMultisigAccount
// created on chain but failed to store. An account that is already stored
// counts as reconciled.
func (s *Started) ReconcileAccount(ctx context.Context, pending *core.CreatedButNotPersistedError) (*core.Account, error) {
	if _, err := s.rt(); err != nil {
		return nil, err
	}
	err := s.storage.InsertAccount(ctx, pending.Account, pending.Approvers)
	if errors.Is(err, core.ErrConflict) {
		return s.getAccount(ctx, pending.Account.Address)
	}
	if err != nil {
		return nil, err
	}
	s.accounts.Set(pending.Account.Address, pending.Account)
	s.logger.Info("multisig account reconciled", zap.String("account", pending.Account.Address))
	account := pending.Account
	return &account, nil
}

func (s *Started) GetMultisigAccount(ctx context.Context, address string) (*core.Account, error) {
	if _, err := s.rt(); err != nil {
		return nil, err
	}
	return s.getAccount(ctx, address)
}

// ListMultisigApprovers returns approvers in approver index order.
func (s *Started) ListMultisigApprovers(ctx context.Context, address string) ([]core.Approver, error) {
	if _, err := s.rt(); err != nil {
		return nil, err
	}
	return s.storage.ListApprovers(ctx, address)
}

// GetConsumableNotes lists notes of one account, or of every tracked account
// when address is nil.
func (s *Started) GetConsumableNotes(ctx context.Context, address *string) ([]core.Note, error) {
	rt, err := s.rt()
	if err != nil {
		return nil, err
	}
	var id []byte
	if address != nil {
		if id, err = s.codec.Decode(*address); err != nil {
			return nil, err
		}
	}
	return rt.ConsumableNotes(ctx, id)
}
