// Package devnet implements a blockchain client for a single-operator
// development network. Account and note state lives in a local SQLite store;
// when a node URL is configured, state is synced from and executed txs are
// submitted to the node.
package devnet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/go-faster/errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/arnac-io/multisig-coordinator/pkg/address"
	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

var errUnknownAccount = errors.New("unknown account")

type Config struct {
	// NodeURL is empty for an offline client.
	NodeURL      string
	StorePath    string
	KeystorePath string
	Timeout      time.Duration
	NetworkID    string
}

// Client is not safe for concurrent use, see blockchain.Client.
type Client struct {
	logger   *zap.Logger
	db       *bun.DB
	keystore keystore
	node     *nodeClient
	codec    address.Codec
}

var _ blockchain.Client = (*Client)(nil)

// Factory returns a blockchain.ClientFactory building a Client from cfg.
func Factory(log *zap.Logger, cfg Config) blockchain.ClientFactory {
	return func(ctx context.Context) (blockchain.Client, error) {
		return New(ctx, log, cfg)
	}
}

func New(ctx context.Context, log *zap.Logger, cfg Config) (*Client, error) {
	codec, err := address.NewCodec(cfg.NetworkID)
	if err != nil {
		return nil, err
	}
	ks, err := openKeystore(cfg.KeystorePath)
	if err != nil {
		return nil, err
	}
	key, err := ks.nodeKey()
	if err != nil {
		return nil, errors.Wrap(err, "load node key")
	}
	db, err := openStore(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	c := &Client{
		logger:   log,
		db:       db,
		keystore: ks,
		codec:    codec,
	}
	if cfg.NodeURL != "" {
		c.node = newNodeClient(cfg.NodeURL, cfg.Timeout, key)
	} else {
		log.Warn("devnet client is offline, executed txs stay local")
	}
	return c, nil
}

func (c *Client) Sync(ctx context.Context) error {
	if c.node == nil {
		return nil
	}
	return c.node.sync(ctx)
}

func (c *Client) ImportAccount(ctx context.Context, accountID []byte) error {
	exists, err := c.db.NewSelect().Model((*accountRecord)(nil)).Where("id = ?", accountID).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if c.node == nil {
		return errors.Wrapf(errUnknownAccount, "%x", accountID)
	}
	remote, err := c.node.account(ctx, accountID)
	if err != nil {
		return errors.Wrapf(err, "import account %x", accountID)
	}
	_, err = c.db.NewInsert().Model(&accountRecord{
		ID:            accountID,
		Threshold:     remote.Threshold,
		PubKeyCommits: remote.PubKeyCommits,
		Nonce:         remote.Nonce,
		CreatedAt:     time.Now().UTC(),
	}).Exec(ctx)
	return err
}

func (c *Client) CreateAccount(ctx context.Context, threshold uint32, pubKeyCommits [][]byte) (blockchain.AccountHandle, error) {
	if threshold == 0 || int(threshold) > len(pubKeyCommits) {
		return blockchain.AccountHandle{}, errors.Wrapf(blockchain.ErrInvalidRequest, "threshold %d for %d approvers", threshold, len(pubKeyCommits))
	}
	for i, commit := range pubKeyCommits {
		if len(commit) != ed25519.PublicKeySize {
			return blockchain.AccountHandle{}, errors.Wrapf(blockchain.ErrInvalidRequest, "pub key commit %d is not an ed25519 public key", i)
		}
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return blockchain.AccountHandle{}, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return blockchain.AccountHandle{}, err
	}
	h.Write(seed)
	_ = binary.Write(h, binary.BigEndian, threshold)
	for _, commit := range pubKeyCommits {
		h.Write(commit)
	}
	id := h.Sum(nil)[:address.IDLen]

	if err := c.keystore.saveAccountSeed(id, seed); err != nil {
		return blockchain.AccountHandle{}, err
	}
	_, err = c.db.NewInsert().Model(&accountRecord{
		ID:            id,
		Threshold:     threshold,
		PubKeyCommits: pubKeyCommits,
		CreatedAt:     time.Now().UTC(),
	}).Exec(ctx)
	if err != nil {
		return blockchain.AccountHandle{}, errors.Wrap(err, "store account")
	}
	c.logger.Info("account created", zap.String("account", c.codec.MustEncode(id)), zap.Uint32("threshold", threshold))
	return blockchain.AccountHandle{ID: id, Threshold: threshold, PubKeyCommits: pubKeyCommits}, nil
}

func (c *Client) loadAccount(ctx context.Context, id []byte) (*accountRecord, error) {
	var acc accountRecord
	err := c.db.NewSelect().Model(&acc).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(errUnknownAccount, "%x: %v", id, err)
	}
	return &acc, nil
}

func (c *Client) BuildTxSummary(ctx context.Context, accountID []byte, txRequest []byte) (blockchain.TxSummary, error) {
	acc, err := c.loadAccount(ctx, accountID)
	if err != nil {
		return blockchain.TxSummary{}, err
	}
	req, err := decodeTxRequest(txRequest)
	if err != nil {
		return blockchain.TxSummary{}, errors.Wrap(blockchain.ErrInvalidRequest, err.Error())
	}
	if _, err := c.codec.Decode(req.Recipient); err != nil {
		return blockchain.TxSummary{}, errors.Wrapf(blockchain.ErrInvalidRequest, "recipient: %v", err)
	}
	summary := newTxSummary(acc.ID, acc.Nonce, txRequest).encode()
	return blockchain.TxSummary{Summary: summary, Commitment: commitment(summary)}, nil
}

func failed(reason string) core.TxResult {
	return core.TxResult{Status: core.TxStatusFailure, Reason: reason}
}

func (c *Client) ExecuteTx(ctx context.Context, accountID []byte, txRequest []byte, summary []byte, signatures [][]byte) (core.TxResult, error) {
	acc, err := c.loadAccount(ctx, accountID)
	if err != nil {
		return core.TxResult{}, err
	}
	if len(signatures) != len(acc.PubKeyCommits) {
		return core.TxResult{}, errors.Errorf("%d signature slots for %d approvers", len(signatures), len(acc.PubKeyCommits))
	}
	req, err := decodeTxRequest(txRequest)
	if err != nil {
		return failed(err.Error()), nil
	}
	s, err := decodeTxSummary(summary)
	if err != nil {
		return failed(err.Error()), nil
	}
	if !s.matches(acc.ID, txRequest) {
		return failed("tx summary does not match the request"), nil
	}
	if s.Nonce != acc.Nonce {
		return failed("stale tx summary: account nonce moved"), nil
	}
	digest := commitment(summary)
	valid := 0
	for i, sig := range signatures {
		if sig == nil {
			continue
		}
		pub := acc.PubKeyCommits[i]
		if len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, digest, sig) {
			valid++
		}
	}
	if valid < int(acc.Threshold) {
		return failed("not enough valid signatures"), nil
	}

	if c.node != nil {
		err := c.node.submit(ctx, acc.ID, summary, signatures)
		if errors.Is(err, errTxRejected) {
			return failed(err.Error()), nil
		}
		if err != nil {
			return core.TxResult{}, err
		}
	}

	h, _ := blake2b.New256(nil)
	h.Write(summary)
	for _, sig := range signatures {
		h.Write(sig)
	}
	txHash := h.Sum(nil)
	noteID := blake2b.Sum256(append(append([]byte{}, txHash...), []byte("note")...))
	nonce := acc.Nonce + 1
	err = c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*accountRecord)(nil)).
			Set("nonce = ?", nonce).
			Where("id = ?", acc.ID).
			Where("nonce = ?", acc.Nonce).
			Exec(ctx)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(&noteRecord{
			ID:        noteID[:16],
			AccountID: acc.ID,
			Recipient: req.Recipient,
			Asset:     req.Asset,
			Amount:    req.Amount,
			CreatedAt: time.Now().UTC(),
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return core.TxResult{}, errors.Wrap(err, "apply tx")
	}
	return core.TxResult{
		TxHash:  txHash,
		Status:  core.TxStatusSuccess,
		Payload: encodeResultPayload(txHash, nonce, noteID[:16]),
	}, nil
}

func (c *Client) ConsumableNotes(ctx context.Context, accountID []byte) ([]core.Note, error) {
	var records []noteRecord
	q := c.db.NewSelect().Model(&records).Where("consumed = ?", false)
	if accountID != nil {
		q = q.Where("account_id = ?", accountID)
	}
	if err := q.Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	notes := make([]core.Note, 0, len(records))
	for _, r := range records {
		notes = append(notes, core.Note{
			ID:        r.ID,
			Account:   r.AccountID,
			Recipient: r.Recipient,
			Asset:     r.Asset,
			Amount:    r.Amount,
			CreatedAt: r.CreatedAt,
		})
	}
	return notes, nil
}

func (c *Client) Close() error {
	if c.node != nil {
		c.node.http.CloseIdleConnections()
	}
	return c.db.Close()
}
