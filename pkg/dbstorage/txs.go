package dbstorage

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

const signatureCountExpr = "(SELECT COUNT(*) FROM signature AS s WHERE s.tx_id = mt.id) AS signature_count"

func (s *DbStorage) InsertTx(ctx context.Context, tx core.Tx) error {
	timer := observe("insert_tx")
	defer timer.ObserveDuration()

	exists, err := s.db.NewSelect().Model((*accountModel)(nil)).Where("address = ?", tx.AccountAddress).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(core.ErrAccountNotFound, "%s", tx.AccountAddress)
	}
	_, err = s.db.NewInsert().Model(&txModel{
		ID:             tx.ID.String(),
		AccountAddress: tx.AccountAddress,
		Status:         string(core.TxStatusPending),
		Request:        tx.Request,
		Summary:        tx.Summary,
		Commitment:     tx.Commitment,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}).Exec(ctx)
	if err != nil {
		return errors.Wrap(mapDBError(err), "insert multisig tx")
	}
	return nil
}

func (s *DbStorage) GetTx(ctx context.Context, id uuid.UUID) (*core.Tx, error) {
	timer := observe("get_tx")
	defer timer.ObserveDuration()

	var m txModel
	err := s.db.NewSelect().Model(&m).
		ColumnExpr("mt.*").
		ColumnExpr(signatureCountExpr).
		Where("mt.id = ?", id.String()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(core.ErrTxNotFound, "%s", id)
	}
	if err != nil {
		return nil, err
	}
	tx, err := m.toCore()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTxs returns txs of an account newest first. A nil status lists all of
// them.
func (s *DbStorage) ListTxs(ctx context.Context, address string, status *core.TxStatus) ([]core.Tx, error) {
	timer := observe("list_txs")
	defer timer.ObserveDuration()

	var rows []txModel
	q := s.db.NewSelect().Model(&rows).
		ColumnExpr("mt.*").
		ColumnExpr(signatureCountExpr).
		Where("mt.account_address = ?", address)
	if status != nil {
		q = q.Where("mt.status = ?", string(*status))
	}
	if err := q.Order("mt.created_at DESC", "mt.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	txs := make([]core.Tx, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toCore()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// TryClaimForExecution moves a pending tx to executing. Exactly one caller
// observes true for a given tx.
func (s *DbStorage) TryClaimForExecution(ctx context.Context, id uuid.UUID) (bool, error) {
	timer := observe("try_claim_for_execution")
	defer timer.ObserveDuration()

	res, err := s.db.NewUpdate().Model((*txModel)(nil)).
		Set("status = ?", string(core.TxStatusExecuting)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id.String()).
		Where("status = ?", string(core.TxStatusPending)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinalizeTx records the terminal outcome of a claimed tx. Repeating it with
// the same outcome is a no-op.
func (s *DbStorage) FinalizeTx(ctx context.Context, id uuid.UUID, outcome core.TxStatus) error {
	timer := observe("finalize_tx")
	defer timer.ObserveDuration()

	if !outcome.IsTerminal() {
		return errors.Wrapf(core.ErrInvalidStatus, "%q is not a terminal status", outcome)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*txModel)(nil)).
			Set("status = ?", string(outcome)).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id.String()).
			Where("status = ?", string(core.TxStatusExecuting)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 1 {
			return err
		}
		var current string
		err = tx.NewSelect().Model((*txModel)(nil)).Column("status").Where("id = ?", id.String()).Scan(ctx, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(core.ErrTxNotFound, "%s", id)
		}
		if err != nil {
			return err
		}
		switch core.TxStatus(current) {
		case outcome:
			return nil
		case core.TxStatusPending:
			return errors.Wrapf(core.ErrConflict, "tx %s was not claimed for execution", id)
		default:
			return errors.Wrapf(core.ErrConflict, "tx %s already finalized as %s", id, current)
		}
	})
}

func (s *DbStorage) TxStats(ctx context.Context, address string) (core.TxStats, error) {
	timer := observe("tx_stats")
	defer timer.ObserveDuration()

	var stats core.TxStats
	since := time.Now().UTC().AddDate(0, -1, 0)
	err := s.db.NewSelect().Model((*txModel)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COUNT(CASE WHEN mt.created_at >= ? THEN 1 END)", since).
		ColumnExpr("COUNT(CASE WHEN mt.status = ? THEN 1 END)", string(core.TxStatusSuccess)).
		Where("mt.account_address = ?", address).
		Scan(ctx, &stats.Total, &stats.LastMonth, &stats.TotalSuccess)
	if err != nil {
		return core.TxStats{}, err
	}
	return stats, nil
}
