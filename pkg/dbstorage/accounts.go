package dbstorage

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/uptrace/bun"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// InsertAccount stores the account, any approvers not seen before and the
// approver index mapping. An existing approver keeps its original
// pub key commit.
func (s *DbStorage) InsertAccount(ctx context.Context, account core.Account, approvers []core.Approver) error {
	timer := observe("insert_account")
	defer timer.ObserveDuration()

	if len(approvers) != len(account.Approvers) {
		return errors.Wrapf(core.ErrValidation, "%d approver records for %d approvers", len(approvers), len(account.Approvers))
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*accountModel)(nil)).Where("address = ?", account.Address).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(core.ErrConflict, "multisig account %s already exists", account.Address)
		}
		_, err = tx.NewInsert().Model(&accountModel{
			Address:   account.Address,
			Kind:      string(account.Kind),
			Threshold: account.Threshold,
			CreatedAt: account.CreatedAt,
			UpdatedAt: account.UpdatedAt,
		}).Exec(ctx)
		if err != nil {
			return errors.Wrap(mapDBError(err), "insert multisig account")
		}
		mapping := make([]accountApproverModel, 0, len(approvers))
		for i, a := range approvers {
			if a.Address != account.Approvers[i] {
				return errors.Wrapf(core.ErrValidation, "approver %d is %s, expected %s", i, a.Address, account.Approvers[i])
			}
			_, err := tx.NewInsert().Model(&approverModel{
				Address:      a.Address,
				PubKeyCommit: a.PubKeyCommit,
				CreatedAt:    a.CreatedAt,
				UpdatedAt:    a.UpdatedAt,
			}).On("CONFLICT (address) DO NOTHING").Exec(ctx)
			if err != nil {
				return errors.Wrapf(mapDBError(err), "insert approver %s", a.Address)
			}
			mapping = append(mapping, accountApproverModel{
				AccountAddress:  account.Address,
				ApproverAddress: a.Address,
				ApproverIndex:   i,
			})
		}
		if _, err := tx.NewInsert().Model(&mapping).Exec(ctx); err != nil {
			return errors.Wrap(mapDBError(err), "insert approver mapping")
		}
		return nil
	})
}

func (s *DbStorage) GetAccount(ctx context.Context, address string) (*core.Account, error) {
	timer := observe("get_account")
	defer timer.ObserveDuration()

	var m accountModel
	err := s.db.NewSelect().Model(&m).Where("address = ?", address).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(core.ErrAccountNotFound, "%s", address)
	}
	if err != nil {
		return nil, err
	}
	var mapping []accountApproverModel
	err = s.db.NewSelect().Model(&mapping).
		Where("account_address = ?", address).
		Order("approver_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	approvers := make([]string, 0, len(mapping))
	for _, row := range mapping {
		approvers = append(approvers, row.ApproverAddress)
	}
	account := m.toCore(approvers)
	return &account, nil
}

// ListApprovers returns the approvers of an account in index order.
func (s *DbStorage) ListApprovers(ctx context.Context, address string) ([]core.Approver, error) {
	timer := observe("list_approvers")
	defer timer.ObserveDuration()

	exists, err := s.db.NewSelect().Model((*accountModel)(nil)).Where("address = ?", address).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(core.ErrAccountNotFound, "%s", address)
	}
	var rows []approverModel
	err = s.db.NewSelect().Model(&rows).
		Join("JOIN multisig_account_approver AS maa ON maa.approver_address = ap.address").
		Where("maa.account_address = ?", address).
		Order("maa.approver_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	approvers := make([]core.Approver, 0, len(rows))
	for _, r := range rows {
		approvers = append(approvers, r.toCore())
	}
	return approvers, nil
}

// ListAccounts returns every account, oldest first.
func (s *DbStorage) ListAccounts(ctx context.Context) ([]core.Account, error) {
	timer := observe("list_accounts")
	defer timer.ObserveDuration()

	var accounts []accountModel
	if err := s.db.NewSelect().Model(&accounts).Order("created_at ASC", "address ASC").Scan(ctx); err != nil {
		return nil, err
	}
	var mapping []accountApproverModel
	err := s.db.NewSelect().Model(&mapping).
		Order("account_address ASC", "approver_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[string][]string, len(accounts))
	for _, row := range mapping {
		byAccount[row.AccountAddress] = append(byAccount[row.AccountAddress], row.ApproverAddress)
	}
	result := make([]core.Account, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, a.toCore(byAccount[a.Address]))
	}
	return result, nil
}
