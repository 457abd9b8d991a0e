package devnet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// errTxRejected means the node refused the tx, as opposed to being
// unreachable.
var errTxRejected = errors.New("node rejected tx")

// nodeClient talks to the devnet node over HTTP. Requests are signed with
// the node key.
type nodeClient struct {
	url    string
	http   *http.Client
	key    ed25519.PrivateKey
	status nodeStatus
}

type nodeStatus struct {
	ChainTip  uint64
	CheckedAt time.Time
}

type remoteAccount struct {
	Threshold     uint32
	PubKeyCommits [][]byte
	Nonce         uint64
}

func newNodeClient(url string, timeout time.Duration, key ed25519.PrivateKey) *nodeClient {
	return &nodeClient{
		url:  strings.TrimRight(url, "/"),
		http: &http.Client{Timeout: timeout},
		key:  key,
	}
}

func (n *nodeClient) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, n.url+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Node-Key", hex.EncodeToString(n.key.Public().(ed25519.PublicKey)))
	req.Header.Set("X-Node-Signature", base64.StdEncoding.EncodeToString(ed25519.Sign(n.key, append([]byte(method+" "+path+"\n"), body...))))
	resp, err := n.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// sync fetches the chain tip. Transient failures are retried.
func (n *nodeClient) sync(ctx context.Context) error {
	var tip uint64
	err := retry.Do(func() error {
		code, body, err := n.do(ctx, http.MethodGet, "/v1/status", nil)
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return errors.Errorf("node status: %d %s", code, body)
		}
		return jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			if key != "chain_tip" {
				return d.Skip()
			}
			v, err := d.UInt64()
			tip = v
			return err
		})
	}, retry.Attempts(3), retry.Delay(100*time.Millisecond))
	if err != nil {
		return errors.Wrap(err, "sync with node")
	}
	n.status = nodeStatus{ChainTip: tip, CheckedAt: time.Now()}
	return nil
}

func (n *nodeClient) account(ctx context.Context, id []byte) (remoteAccount, error) {
	code, body, err := n.do(ctx, http.MethodGet, "/v1/accounts/"+hex.EncodeToString(id), nil)
	if err != nil {
		return remoteAccount{}, err
	}
	if code == http.StatusNotFound {
		return remoteAccount{}, errUnknownAccount
	}
	if code != http.StatusOK {
		return remoteAccount{}, errors.Errorf("get account: %d %s", code, body)
	}
	var acc remoteAccount
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "threshold":
			acc.Threshold, err = d.UInt32()
		case "nonce":
			acc.Nonce, err = d.UInt64()
		case "pub_key_commits":
			return d.Arr(func(d *jx.Decoder) error {
				b, err := d.Base64()
				acc.PubKeyCommits = append(acc.PubKeyCommits, b)
				return err
			})
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return remoteAccount{}, errors.Wrap(err, "decode account")
	}
	return acc, nil
}

// submit sends an executed tx to the node.
func (n *nodeClient) submit(ctx context.Context, accountID, summary []byte, signatures [][]byte) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("account", func(e *jx.Encoder) { e.Str(hex.EncodeToString(accountID)) })
		e.Field("summary", func(e *jx.Encoder) { e.Base64(summary) })
		e.Field("signatures", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range signatures {
					if s == nil {
						e.Null()
						continue
					}
					e.Base64(s)
				}
			})
		})
	})
	code, body, err := n.do(ctx, http.MethodPost, "/v1/transactions", e.Bytes())
	if err != nil {
		return errors.Wrap(err, "submit tx")
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return errors.Wrapf(errTxRejected, "%d %s", code, body)
	default:
		return errors.Errorf("submit tx: %d %s", code, body)
	}
}
