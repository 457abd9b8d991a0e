package devnet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/address"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

type signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newSigners(t *testing.T, n int) ([]signer, [][]byte) {
	t.Helper()
	signers := make([]signer, 0, n)
	commits := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		signers = append(signers, signer{pub: pub, priv: priv})
		commits = append(commits, pub)
	}
	return signers, commits
}

func newTestClient(t *testing.T, nodeURL string) *Client {
	t.Helper()
	dir := t.TempDir()
	c, err := New(context.Background(), zap.NewNop(), Config{
		NodeURL:      nodeURL,
		StorePath:    filepath.Join(dir, "store.sqlite3"),
		KeystorePath: filepath.Join(dir, "keystore"),
		NetworkID:    "mtst",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func recipient(t *testing.T) string {
	codec, err := address.NewCodec("mtst")
	require.NoError(t, err)
	return codec.MustEncode(make([]byte, address.IDLen))
}

func TestClient_ExecuteTx(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "")
	signers, commits := newSigners(t, 3)

	handle, err := c.CreateAccount(ctx, 2, commits)
	require.NoError(t, err)
	require.Len(t, handle.ID, address.IDLen)

	request := TxRequest{Recipient: recipient(t), Asset: "mtst", Amount: 100}.Encode()
	summary, err := c.BuildTxSummary(ctx, handle.ID, request)
	require.NoError(t, err)
	require.Equal(t, commitment(summary.Summary), summary.Commitment)

	sign := func(idx ...int) [][]byte {
		sigs := make([][]byte, len(signers))
		for _, i := range idx {
			sigs[i] = ed25519.Sign(signers[i].priv, summary.Commitment)
		}
		return sigs
	}

	tests := []struct {
		name       string
		summary    []byte
		signatures [][]byte
		wantStatus core.TxStatus
	}{
		{name: "below threshold", summary: summary.Summary, signatures: sign(0), wantStatus: core.TxStatusFailure},
		{name: "foreign summary", summary: []byte(`{"account":"00","nonce":0,"request_hash":"00"}`), signatures: sign(0, 1), wantStatus: core.TxStatusFailure},
		{name: "quorum", summary: summary.Summary, signatures: sign(0, 2), wantStatus: core.TxStatusSuccess},
		{name: "replay", summary: summary.Summary, signatures: sign(0, 1, 2), wantStatus: core.TxStatusFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.ExecuteTx(ctx, handle.ID, request, tt.summary, tt.signatures)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, result.Status)
			if tt.wantStatus == core.TxStatusSuccess {
				require.NotEmpty(t, result.TxHash)
				require.NotEmpty(t, result.Payload)
			} else {
				require.NotEmpty(t, result.Reason)
			}
		})
	}

	notes, err := c.ConsumableNotes(ctx, handle.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, uint64(100), notes[0].Amount)

	all, err := c.ConsumableNotes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = c.ExecuteTx(ctx, handle.ID, request, summary.Summary, [][]byte{nil})
	require.Error(t, err)
}

func TestClient_Validation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "")
	_, commits := newSigners(t, 2)

	_, err := c.CreateAccount(ctx, 3, commits)
	require.Error(t, err)
	_, err = c.CreateAccount(ctx, 1, [][]byte{[]byte("short")})
	require.Error(t, err)

	handle, err := c.CreateAccount(ctx, 1, commits)
	require.NoError(t, err)

	for name, req := range map[string][]byte{
		"not json":      []byte("transfer"),
		"no amount":     []byte(`{"recipient":"` + recipient(t) + `","asset":"mtst"}`),
		"bad recipient": TxRequest{Recipient: "nope", Asset: "mtst", Amount: 1}.Encode(),
		"missing asset": []byte(`{"recipient":"` + recipient(t) + `","amount":1}`),
		"zero amount":   TxRequest{Recipient: recipient(t), Asset: "mtst"}.Encode(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.BuildTxSummary(ctx, handle.ID, req)
			require.Error(t, err)
		})
	}

	_, err = c.BuildTxSummary(ctx, make([]byte, address.IDLen), TxRequest{Recipient: recipient(t), Asset: "mtst", Amount: 1}.Encode())
	require.ErrorIs(t, err, errUnknownAccount)
	require.ErrorIs(t, c.ImportAccount(ctx, make([]byte, address.IDLen)), errUnknownAccount)
	require.NoError(t, c.ImportAccount(ctx, handle.ID))
}

func TestClient_NodeSubmission(t *testing.T) {
	ctx := context.Background()
	reject := false
	var submitted int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Node-Signature") == "" {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"chain_tip": 42}`))
	})
	mux.HandleFunc("POST /v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if reject {
			http.Error(w, "invalid proof", http.StatusBadRequest)
			return
		}
		submitted++
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Sync(ctx))
	require.Equal(t, uint64(42), c.node.status.ChainTip)

	signers, commits := newSigners(t, 1)
	handle, err := c.CreateAccount(ctx, 1, commits)
	require.NoError(t, err)
	request := TxRequest{Recipient: recipient(t), Asset: "mtst", Amount: 5}.Encode()
	summary, err := c.BuildTxSummary(ctx, handle.ID, request)
	require.NoError(t, err)
	sigs := [][]byte{ed25519.Sign(signers[0].priv, summary.Commitment)}

	reject = true
	result, err := c.ExecuteTx(ctx, handle.ID, request, summary.Summary, sigs)
	require.NoError(t, err)
	require.Equal(t, core.TxStatusFailure, result.Status)

	reject = false
	result, err = c.ExecuteTx(ctx, handle.ID, request, summary.Summary, sigs)
	require.NoError(t, err)
	require.Equal(t, core.TxStatusSuccess, result.Status)
	require.Equal(t, 1, submitted)
}

func TestKeystore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	ks, err := openKeystore(dir)
	require.NoError(t, err)
	first, err := ks.nodeKey()
	require.NoError(t, err)
	second, err := ks.nodeKey()
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, nodeKeyFile), []byte("zz"), 0o600))
	_, err = ks.nodeKey()
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = openKeystore(file)
	require.Error(t, err)
}
