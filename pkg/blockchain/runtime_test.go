package blockchain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

type fakeClient struct {
	mu       sync.Mutex
	active   int
	maxSeen  int
	imported [][]byte
	calls    []string
	closed   bool

	syncErr error
	// block, when set, is waited on by ExecuteTx.
	block chan struct{}
	panic bool
}

func (c *fakeClient) enter(name string) func() {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.calls = append(c.calls, name)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.active--
		c.mu.Unlock()
	}
}

func (c *fakeClient) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncErr
}

func (c *fakeClient) ImportAccount(ctx context.Context, accountID []byte) error {
	c.imported = append(c.imported, accountID)
	return nil
}

func (c *fakeClient) CreateAccount(ctx context.Context, threshold uint32, pubKeyCommits [][]byte) (AccountHandle, error) {
	defer c.enter("create_account")()
	time.Sleep(time.Millisecond)
	return AccountHandle{ID: []byte{byte(threshold)}, Threshold: threshold, PubKeyCommits: pubKeyCommits}, nil
}

func (c *fakeClient) BuildTxSummary(ctx context.Context, accountID []byte, txRequest []byte) (TxSummary, error) {
	defer c.enter("build_tx_summary")()
	if len(txRequest) == 0 {
		return TxSummary{}, errors.New("empty request")
	}
	return TxSummary{Summary: append([]byte("summary:"), txRequest...), Commitment: []byte("commit")}, nil
}

func (c *fakeClient) ExecuteTx(ctx context.Context, accountID []byte, txRequest []byte, summary []byte, signatures [][]byte) (core.TxResult, error) {
	defer c.enter("execute_tx")()
	if c.panic {
		panic("boom")
	}
	if c.block != nil {
		<-c.block
	}
	return core.TxResult{TxHash: []byte("hash"), Status: core.TxStatusSuccess}, nil
}

func (c *fakeClient) ConsumableNotes(ctx context.Context, accountID []byte) ([]core.Note, error) {
	defer c.enter("consumable_notes")()
	return []core.Note{{ID: []byte("note")}}, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func factoryOf(c *fakeClient) ClientFactory {
	return func(ctx context.Context) (Client, error) {
		return c, nil
	}
}

func startRuntime(t *testing.T, c *fakeClient, opts ...Option) *Runtime {
	t.Helper()
	r, err := Start(context.Background(), zap.NewNop(), factoryOf(c), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop(context.Background()) })
	return r
}

func TestRuntime_Requests(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	r := startRuntime(t, client, WithTrackedAccounts([][]byte{{1}, {2}}))
	require.Equal(t, [][]byte{{1}, {2}}, client.imported)

	created, err := r.CreateAccount(ctx, 2, [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	handle, err := created.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, handle.ID)

	summary, err := r.BuildTxSummary(ctx, handle.ID, []byte("req"))
	require.NoError(t, err)
	require.Equal(t, []byte("summary:req"), summary.Summary)

	_, err = r.BuildTxSummary(ctx, handle.ID, nil)
	require.EqualError(t, err, "empty request")

	f, err := r.ExecuteTx(ctx, handle.ID, []byte("req"), summary.Summary, nil)
	require.NoError(t, err)
	result, err := f.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, core.TxStatusSuccess, result.Status)

	notes, err := r.ConsumableNotes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestRuntime_SerializesRequests(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	r := startRuntime(t, client)

	var wg conc.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Go(func() {
			f, err := r.CreateAccount(ctx, 1, nil)
			if err == nil {
				_, _ = f.Wait(ctx)
			}
		})
	}
	wg.Wait()

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Equal(t, 1, client.maxSeen)
	require.Len(t, client.calls, 20)
}

func TestRuntime_StartupFailure(t *testing.T) {
	tests := []struct {
		name    string
		factory ClientFactory
	}{
		{
			name: "factory error",
			factory: func(ctx context.Context) (Client, error) {
				return nil, errors.New("keystore is unreadable")
			},
		},
		{
			name:    "sync error",
			factory: factoryOf(&fakeClient{syncErr: errors.New("node is down")}),
		},
		{
			name: "factory panic",
			factory: func(ctx context.Context) (Client, error) {
				panic("corrupted store")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Start(context.Background(), zap.NewNop(), tt.factory)
			require.ErrorIs(t, err, ErrStartup)
			var startupErr *StartupError
			require.True(t, errors.As(err, &startupErr))
		})
	}
}

func TestRuntime_Stop(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	r, err := Start(ctx, zap.NewNop(), factoryOf(client))
	require.NoError(t, err)

	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))
	require.True(t, client.closed)

	_, err = r.CreateAccount(ctx, 1, nil)
	require.ErrorIs(t, err, ErrRuntimeUnavailable)
	_, err = r.ExecuteTx(ctx, nil, nil, nil, nil)
	require.ErrorIs(t, err, ErrRuntimeUnavailable)
}

func TestRuntime_StopFinishesInFlightRequest(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{block: make(chan struct{})}
	r, err := Start(ctx, zap.NewNop(), factoryOf(client))
	require.NoError(t, err)

	inFlight, err := r.ExecuteTx(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.active == 1
	}, time.Second, time.Millisecond)

	queued, err := r.ExecuteTx(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), r.Pending())

	stopped := make(chan error, 1)
	go func() { stopped <- r.Stop(ctx) }()
	<-r.quit
	close(client.block)

	result, err := inFlight.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, core.TxStatusSuccess, result.Status)
	require.NoError(t, <-stopped)

	_, err = queued.Wait(ctx)
	require.ErrorIs(t, err, ErrRuntimeDisconnected)
	require.Equal(t, int64(1), r.Pending())
	client.mu.Lock()
	require.Len(t, client.calls, 1)
	client.mu.Unlock()
}

func TestRuntime_Timeout(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{block: make(chan struct{})}
	r := startRuntime(t, client, WithTimeout(20*time.Millisecond))

	f, err := r.ExecuteTx(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	require.ErrorIs(t, err, ErrRuntimeTimeout)

	// the request keeps running and its answer can still be collected
	close(client.block)
	result, err := f.WaitDetached(ctx)
	require.NoError(t, err)
	require.Equal(t, core.TxStatusSuccess, result.Status)
}

func TestRuntime_PanicDisconnects(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{panic: true}
	r := startRuntime(t, client)

	f, err := r.ExecuteTx(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	require.ErrorIs(t, err, ErrRuntimeDisconnected)

	<-r.Done()
	_, err = r.CreateAccount(ctx, 1, nil)
	require.ErrorIs(t, err, ErrRuntimeUnavailable)
	require.True(t, client.closed)
}

func TestRuntime_SyncErrorFailsRequest(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	r := startRuntime(t, client)

	client.mu.Lock()
	client.syncErr = errors.New("node is down")
	client.mu.Unlock()

	f, err := r.CreateAccount(ctx, 1, nil)
	require.NoError(t, err)
	_, err = f.Wait(ctx)
	require.ErrorContains(t, err, "node is down")
	require.Empty(t, client.calls)
}
