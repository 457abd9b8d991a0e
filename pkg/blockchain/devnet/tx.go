package devnet

import (
	"bytes"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/crypto/blake2b"
)

// TxRequest is the payload of a proposed transfer:
//
//	{"recipient": "<bech32 address>", "asset": "<asset>", "amount": <uint64>, "memo": "<optional>"}
type TxRequest struct {
	Recipient string
	Asset     string
	Amount    uint64
	Memo      string
}

func (r TxRequest) Encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("recipient")
	e.Str(r.Recipient)
	e.FieldStart("asset")
	e.Str(r.Asset)
	e.FieldStart("amount")
	e.UInt64(r.Amount)
	if r.Memo != "" {
		e.FieldStart("memo")
		e.Str(r.Memo)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeTxRequest(data []byte) (TxRequest, error) {
	var r TxRequest
	var hasAmount bool
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "recipient":
			r.Recipient, err = d.Str()
		case "asset":
			r.Asset, err = d.Str()
		case "amount":
			r.Amount, err = d.UInt64()
			hasAmount = true
		case "memo":
			r.Memo, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return TxRequest{}, errors.Wrap(err, "decode tx request")
	}
	switch {
	case r.Recipient == "":
		return TxRequest{}, errors.New("tx request has no recipient")
	case r.Asset == "":
		return TxRequest{}, errors.New("tx request has no asset")
	case !hasAmount || r.Amount == 0:
		return TxRequest{}, errors.New("tx request amount must be positive")
	}
	return r, nil
}

// txSummary binds a request to an account state. Approvers sign
// blake2b-256 of its encoding.
type txSummary struct {
	AccountID   []byte
	Nonce       uint64
	RequestHash []byte
}

func newTxSummary(accountID []byte, nonce uint64, txRequest []byte) txSummary {
	h := blake2b.Sum256(txRequest)
	return txSummary{AccountID: accountID, Nonce: nonce, RequestHash: h[:]}
}

func (s txSummary) encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("account")
	e.Str(hex.EncodeToString(s.AccountID))
	e.FieldStart("nonce")
	e.UInt64(s.Nonce)
	e.FieldStart("request_hash")
	e.Str(hex.EncodeToString(s.RequestHash))
	e.ObjEnd()
	return e.Bytes()
}

func decodeTxSummary(data []byte) (txSummary, error) {
	var s txSummary
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "account", "request_hash":
			v, err := d.Str()
			if err != nil {
				return err
			}
			b, err := hex.DecodeString(v)
			if err != nil {
				return errors.Wrap(err, key)
			}
			if key == "account" {
				s.AccountID = b
			} else {
				s.RequestHash = b
			}
			return nil
		case "nonce":
			v, err := d.UInt64()
			s.Nonce = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return txSummary{}, errors.Wrap(err, "decode tx summary")
	}
	return s, nil
}

func (s txSummary) matches(accountID, txRequest []byte) bool {
	h := blake2b.Sum256(txRequest)
	return bytes.Equal(s.AccountID, accountID) && bytes.Equal(s.RequestHash, h[:])
}

func commitment(summary []byte) []byte {
	h := blake2b.Sum256(summary)
	return h[:]
}

func encodeResultPayload(txHash []byte, nonce uint64, noteID []byte) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("tx_hash", func(e *jx.Encoder) { e.Str(hex.EncodeToString(txHash)) })
		e.Field("nonce", func(e *jx.Encoder) { e.UInt64(nonce) })
		e.Field("note_id", func(e *jx.Encoder) { e.Str(hex.EncodeToString(noteID)) })
	})
	return e.Bytes()
}
