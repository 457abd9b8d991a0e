package api

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// Request bodies. Byte fields travel as standard base64 strings.

type decoder interface {
	Decode(d *jx.Decoder) error
}

type encoder interface {
	Encode(e *jx.Encoder)
}

type fieldSet map[string]bool

func (f fieldSet) require(names ...string) error {
	for _, name := range names {
		if !f[name] {
			return errors.Errorf("missing required field %q", name)
		}
	}
	return nil
}

func decodeUUID(d *jx.Decoder) (uuid.UUID, error) {
	s, err := d.Str()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

type AccountAddressReq struct {
	MultisigAccountAddress string
}

func (r *AccountAddressReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "multisig_account_address":
			v, err := d.Str()
			r.MultisigAccountAddress = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	return seen.require("multisig_account_address")
}

type CreateMultisigAccountReq struct {
	Threshold     uint32
	Approvers     []string
	PubKeyCommits [][]byte
}

func (r *CreateMultisigAccountReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "threshold":
			v, err := d.UInt32()
			r.Threshold = v
			return err
		case "approvers":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Str()
				r.Approvers = append(r.Approvers, v)
				return err
			})
		case "pub_key_commits":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Base64()
				r.PubKeyCommits = append(r.PubKeyCommits, v)
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	return seen.require("threshold", "approvers", "pub_key_commits")
}

type ProposeMultisigTxReq struct {
	MultisigAccountAddress string
	TxRequest              []byte
}

func (r *ProposeMultisigTxReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		var err error
		switch key {
		case "multisig_account_address":
			r.MultisigAccountAddress, err = d.Str()
		case "tx_request":
			r.TxRequest, err = d.Base64()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("multisig_account_address", "tx_request")
}

type AddSignatureReq struct {
	TxID      uuid.UUID
	Approver  string
	Signature []byte
}

func (r *AddSignatureReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		var err error
		switch key {
		case "tx_id":
			r.TxID, err = decodeUUID(d)
		case "approver":
			r.Approver, err = d.Str()
		case "signature":
			r.Signature, err = d.Base64()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("tx_id", "approver", "signature")
}

type ListMultisigTxReq struct {
	MultisigAccountAddress string
	TxStatusFilter         *core.TxStatus
}

func (r *ListMultisigTxReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "multisig_account_address":
			v, err := d.Str()
			r.MultisigAccountAddress = v
			return err
		case "tx_status_filter":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			status, err := core.ParseTxStatus(v)
			if err != nil {
				return err
			}
			r.TxStatusFilter = &status
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	return seen.require("multisig_account_address")
}

type TxIDReq struct {
	TxID uuid.UUID
}

func (r *TxIDReq) Decode(d *jx.Decoder) error {
	seen := fieldSet{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		seen[key] = true
		if key != "tx_id" {
			return d.Skip()
		}
		v, err := decodeUUID(d)
		r.TxID = v
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("tx_id")
}

type ConsumableNotesReq struct {
	Address *string
}

func (r *ConsumableNotesReq) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "address" || d.Next() == jx.Null {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		r.Address = &v
		return nil
	})
}

// Response bodies.

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

type CreatedAccount struct {
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r CreatedAccount) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("address", func(e *jx.Encoder) { e.Str(r.Address) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, r.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, r.UpdatedAt) })
	})
}

type Account struct {
	Address   string
	Kind      string
	Threshold uint32
	Approvers []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Account) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("address", func(e *jx.Encoder) { e.Str(r.Address) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(r.Kind) })
		e.Field("threshold", func(e *jx.Encoder) { e.UInt32(r.Threshold) })
		e.Field("approvers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, a := range r.Approvers {
					e.Str(a)
				}
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, r.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, r.UpdatedAt) })
	})
}

type Approver struct {
	Address      string
	Index        int
	PubKeyCommit []byte
}

type Approvers struct {
	Approvers []Approver
}

func (r Approvers) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("approvers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, a := range r.Approvers {
					e.Obj(func(e *jx.Encoder) {
						e.Field("address", func(e *jx.Encoder) { e.Str(a.Address) })
						e.Field("index", func(e *jx.Encoder) { e.Int(a.Index) })
						e.Field("pub_key_commit", func(e *jx.Encoder) { e.Base64(a.PubKeyCommit) })
					})
				}
			})
		})
	})
}

type ProposedTx struct {
	TxID            uuid.UUID
	TxSummary       []byte
	TxSummaryCommit []byte
}

func (r ProposedTx) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("tx_id", func(e *jx.Encoder) { e.Str(r.TxID.String()) })
		e.Field("tx_summary", func(e *jx.Encoder) { e.Base64(r.TxSummary) })
		e.Field("tx_summary_commit", func(e *jx.Encoder) { e.Base64(r.TxSummaryCommit) })
	})
}

type TxResult struct {
	TxHash  []byte
	Status  string
	Payload []byte
	Reason  string
}

func (r TxResult) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(r.Status) })
		if len(r.TxHash) > 0 {
			e.Field("tx_hash", func(e *jx.Encoder) { e.Base64(r.TxHash) })
		}
		if len(r.Payload) > 0 {
			e.Field("payload", func(e *jx.Encoder) { e.Base64(r.Payload) })
		}
		if r.Reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(r.Reason) })
		}
	})
}

type SignatureAdded struct {
	TxResult *TxResult
}

func (r SignatureAdded) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("tx_result", func(e *jx.Encoder) {
			if r.TxResult == nil {
				e.Null()
				return
			}
			r.TxResult.Encode(e)
		})
	})
}

type Tx struct {
	TxID                   uuid.UUID
	MultisigAccountAddress string
	Status                 string
	TxRequest              []byte
	TxSummary              []byte
	TxSummaryCommit        []byte
	SignatureCount         int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (r Tx) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("tx_id", func(e *jx.Encoder) { e.Str(r.TxID.String()) })
		e.Field("multisig_account_address", func(e *jx.Encoder) { e.Str(r.MultisigAccountAddress) })
		e.Field("status", func(e *jx.Encoder) { e.Str(r.Status) })
		e.Field("tx_request", func(e *jx.Encoder) { e.Base64(r.TxRequest) })
		e.Field("tx_summary", func(e *jx.Encoder) { e.Base64(r.TxSummary) })
		e.Field("tx_summary_commit", func(e *jx.Encoder) { e.Base64(r.TxSummaryCommit) })
		if r.SignatureCount > 0 {
			e.Field("signature_count", func(e *jx.Encoder) { e.Int(r.SignatureCount) })
		}
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, r.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, r.UpdatedAt) })
	})
}

type Txs struct {
	Txs []Tx
}

func (r Txs) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("txs", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, tx := range r.Txs {
					tx.Encode(e)
				}
			})
		})
	})
}

type TxStats struct {
	Total        int64
	LastMonth    int64
	TotalSuccess int64
}

func (r TxStats) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total", func(e *jx.Encoder) { e.Int64(r.Total) })
		e.Field("last_month", func(e *jx.Encoder) { e.Int64(r.LastMonth) })
		e.Field("total_success", func(e *jx.Encoder) { e.Int64(r.TotalSuccess) })
	})
}

type ConsumableNotes struct {
	NoteIDs [][]byte
}

func (r ConsumableNotes) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("note_ids", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range r.NoteIDs {
					e.Base64(id)
				}
			})
		})
	})
}

type Error struct {
	Error    string
	Address  string
	TxResult *TxResult
}

func (r Error) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Str(r.Error) })
		if r.Address != "" {
			e.Field("address", func(e *jx.Encoder) { e.Str(r.Address) })
		}
		if r.TxResult != nil {
			e.Field("tx_result", func(e *jx.Encoder) { r.TxResult.Encode(e) })
		}
	})
}

type Health struct{}

func (Health) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
	})
}
