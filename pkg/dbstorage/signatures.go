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

// InsertSignature adds a signature to a pending tx. It returns false when the
// approver has already signed the tx; the stored signature is kept.
func (s *DbStorage) InsertSignature(ctx context.Context, sig core.Signature) (bool, error) {
	timer := observe("insert_signature")
	defer timer.ObserveDuration()

	var inserted bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m txModel
		err := tx.NewSelect().Model(&m).Column("id", "account_address", "status").Where("id = ?", sig.TxID.String()).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(core.ErrTxNotFound, "%s", sig.TxID)
		}
		if err != nil {
			return err
		}
		member, err := tx.NewSelect().Model((*accountApproverModel)(nil)).
			Where("account_address = ?", m.AccountAddress).
			Where("approver_address = ?", sig.Approver).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !member {
			return errors.Wrapf(core.ErrApproverNotFound, "%s is not an approver of %s", sig.Approver, m.AccountAddress)
		}
		if core.TxStatus(m.Status) != core.TxStatusPending {
			return errors.Wrapf(core.ErrTxNotPending, "tx %s is %s", sig.TxID, m.Status)
		}
		createdAt := sig.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		res, err := tx.NewInsert().Model(&signatureModel{
			TxID:            sig.TxID.String(),
			ApproverAddress: sig.Approver,
			Bytes:           sig.Bytes,
			CreatedAt:       createdAt,
			UpdatedAt:       createdAt,
		}).On("CONFLICT (tx_id, approver_address) DO NOTHING").Exec(ctx)
		if err != nil {
			return errors.Wrap(mapDBError(err), "insert signature")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *DbStorage) CountSignatures(ctx context.Context, id uuid.UUID) (int, error) {
	timer := observe("count_signatures")
	defer timer.ObserveDuration()

	return s.db.NewSelect().Model((*signatureModel)(nil)).Where("tx_id = ?", id.String()).Count(ctx)
}

type signatureSlot struct {
	ApproverIndex  int    `bun:"approver_index"`
	SignatureBytes []byte `bun:"signature_bytes"`
}

// SignaturesByApproverIndex returns one slot per approver of the tx's account,
// in approver index order. Slots of approvers that have not signed are nil.
func (s *DbStorage) SignaturesByApproverIndex(ctx context.Context, id uuid.UUID) ([][]byte, error) {
	timer := observe("signatures_by_approver_index")
	defer timer.ObserveDuration()

	var rows []signatureSlot
	err := s.db.NewRaw(`
		SELECT maa.approver_index, s.signature_bytes
		FROM multisig_tx AS t
		JOIN multisig_account_approver AS maa ON maa.account_address = t.account_address
		LEFT JOIN signature AS s ON s.tx_id = t.id AND s.approver_address = maa.approver_address
		WHERE t.id = ?
		ORDER BY maa.approver_index ASC`, id.String()).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(core.ErrTxNotFound, "%s", id)
	}
	sigs := make([][]byte, len(rows))
	for _, r := range rows {
		if r.ApproverIndex < 0 || r.ApproverIndex >= len(rows) {
			return nil, errors.Errorf("approver index %d out of range for tx %s", r.ApproverIndex, id)
		}
		if len(r.SignatureBytes) > 0 {
			sigs[r.ApproverIndex] = r.SignatureBytes
		}
	}
	return sigs, nil
}
