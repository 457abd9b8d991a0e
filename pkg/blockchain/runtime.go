package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 30 * time.Second
)

// Runtime owns a Client on a dedicated goroutine and serves requests to it
// one at a time, in FIFO order. A request runs to completion before the next
// one is taken from the queue.
type Runtime struct {
	logger   *zap.Logger
	requests chan request
	// quit is closed by Stop, done is closed when the worker has exited.
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	timeout  time.Duration
	pending  *xsync.Counter
	closeErr error
}

type request struct {
	name string
	run  func(ctx context.Context, c Client, syncErr error)
}

type Options struct {
	queueSize       int
	timeout         time.Duration
	trackedAccounts [][]byte
}

type Option func(o *Options)

// WithTimeout sets how long callers wait for an answer. Zero disables the
// limit.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

func WithQueueSize(n int) Option {
	return func(o *Options) {
		o.queueSize = n
	}
}

// WithTrackedAccounts lists accounts the client has to import before the
// runtime starts serving requests.
func WithTrackedAccounts(ids [][]byte) Option {
	return func(o *Options) {
		o.trackedAccounts = ids
	}
}

// Start builds the client on a new goroutine and returns once the client is
// synced and tracks every known account. Failures are reported as
// *StartupError.
func Start(ctx context.Context, log *zap.Logger, factory ClientFactory, opts ...Option) (*Runtime, error) {
	o := &Options{queueSize: defaultQueueSize, timeout: defaultTimeout}
	for i := range opts {
		opts[i](o)
	}
	if o.queueSize <= 0 {
		o.queueSize = defaultQueueSize
	}
	r := &Runtime{
		logger:   log,
		requests: make(chan request, o.queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		timeout:  o.timeout,
		pending:  xsync.NewCounter(),
	}
	ready := make(chan error, 1)
	go r.run(factory, o.trackedAccounts, ready)

	select {
	case err := <-ready:
		if err != nil {
			<-r.done
			return nil, &StartupError{Err: err}
		}
	case <-ctx.Done():
		r.stopOnce.Do(func() { close(r.quit) })
		return nil, &StartupError{Err: ctx.Err()}
	}
	log.Info("client runtime started", zap.Int("tracked_accounts", len(o.trackedAccounts)))
	return r, nil
}

func (r *Runtime) run(factory ClientFactory, tracked [][]byte, ready chan<- error) {
	defer close(r.done)

	// The worker context outlives every request: a caller giving up must not
	// interrupt a call that is already running.
	ctx := context.Background()
	client, err := r.initClient(ctx, factory, tracked)
	if err != nil {
		ready <- err
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			r.closeErr = err
			r.logger.Error("failed to close blockchain client", zap.Error(err))
		}
	}()
	ready <- nil

	for {
		select {
		case <-r.quit:
			return
		case req := <-r.requests:
			select {
			case <-r.quit:
				// dropped, it stays counted as pending
				return
			default:
			}
			queueDepthGauge.Dec()
			r.pending.Dec()
			if !r.serve(ctx, client, req) {
				return
			}
		}
	}
}

func (r *Runtime) initClient(ctx context.Context, factory ClientFactory, tracked [][]byte) (client Client, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("blockchain client panicked on start: %v", p)
		}
	}()
	client, err = factory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create blockchain client")
	}
	if err := client.Sync(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "initial sync")
	}
	for _, id := range tracked {
		if err := client.ImportAccount(ctx, id); err != nil {
			r.logger.Warn("failed to import tracked account", zap.Binary("account", id), zap.Error(err))
		}
	}
	return client, nil
}

// serve runs one request and reports whether the worker may continue. A
// panicking client leaves its local state in an unknown shape, so the worker
// stops serving.
func (r *Runtime) serve(ctx context.Context, client Client, req request) (ok bool) {
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		requestTimeHistogramVec.WithLabelValues(req.name).Observe(v)
	}))
	defer timer.ObserveDuration()
	defer func() {
		if p := recover(); p != nil {
			requestsCounterVec.WithLabelValues(req.name, "panic").Inc()
			r.logger.Error("blockchain client panicked, stopping client runtime",
				zap.String("request", req.name),
				zap.Any("panic", p))
			ok = false
		}
	}()
	syncErr := client.Sync(ctx)
	if syncErr != nil {
		r.logger.Warn("failed to sync client state", zap.String("request", req.name), zap.Error(syncErr))
	}
	req.run(ctx, client, syncErr)
	return true
}

// Stop asks the worker to exit after the request it is running, if any.
// Queued requests are not served; their callers get ErrRuntimeDisconnected.
func (r *Runtime) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.quit) })
	select {
	case <-r.done:
		return r.closeErr
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for client runtime")
	}
}

// Done is closed once the worker has exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Pending returns the number of requests waiting in the queue. After Stop it
// is the number of requests that were never served.
func (r *Runtime) Pending() int64 {
	return r.pending.Value()
}

type reply[T any] struct {
	val T
	err error
}

// Future is the pending answer to a single request.
type Future[T any] struct {
	ch      chan reply[T]
	done    <-chan struct{}
	timeout time.Duration
}

// Wait blocks until the answer arrives, the runtime goes away, the timeout
// elapses or ctx is done. It must not be called again after it returned an
// answer.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	var timeout <-chan time.Time
	if f.timeout > 0 {
		t := time.NewTimer(f.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case rep, ok := <-f.ch:
		if !ok {
			return zero, ErrRuntimeDisconnected
		}
		return rep.val, rep.err
	case <-f.done:
		select {
		case rep, ok := <-f.ch:
			if ok {
				return rep.val, rep.err
			}
		default:
		}
		return zero, ErrRuntimeDisconnected
	case <-timeout:
		return zero, ErrRuntimeTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// WaitDetached waits for the answer without a timeout. It is used to follow a
// request whose caller already gave up.
func (f *Future[T]) WaitDetached(ctx context.Context) (T, error) {
	detached := *f
	detached.timeout = 0
	return detached.Wait(ctx)
}

func submit[T any](ctx context.Context, r *Runtime, name string, fn func(ctx context.Context, c Client) (T, error)) (*Future[T], error) {
	select {
	case <-r.quit:
		return nil, ErrRuntimeUnavailable
	case <-r.done:
		return nil, ErrRuntimeUnavailable
	default:
	}
	ch := make(chan reply[T], 1)
	req := request{
		name: name,
		run: func(ctx context.Context, c Client, syncErr error) {
			// closing without a reply tells the waiter the request was lost
			defer close(ch)
			if syncErr != nil {
				requestsCounterVec.WithLabelValues(name, "error").Inc()
				ch <- reply[T]{err: errors.Wrap(syncErr, "sync client state")}
				return
			}
			val, err := fn(ctx, c)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			requestsCounterVec.WithLabelValues(name, outcome).Inc()
			ch <- reply[T]{val: val, err: err}
		},
	}
	// counted before the send, the worker may dequeue it right away
	queueDepthGauge.Inc()
	r.pending.Inc()
	var err error
	select {
	case r.requests <- req:
		return &Future[T]{ch: ch, done: r.done, timeout: r.timeout}, nil
	case <-r.quit:
		err = ErrRuntimeUnavailable
	case <-r.done:
		err = ErrRuntimeUnavailable
	case <-ctx.Done():
		err = ctx.Err()
	}
	queueDepthGauge.Dec()
	r.pending.Dec()
	return nil, err
}

func call[T any](ctx context.Context, r *Runtime, name string, fn func(ctx context.Context, c Client) (T, error)) (T, error) {
	f, err := submit(ctx, r, name, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Wait(ctx)
}

// CreateAccount enqueues the account creation and returns the pending answer.
// The account exists on chain once the client has run the request, whether or
// not the caller is still waiting.
func (r *Runtime) CreateAccount(ctx context.Context, threshold uint32, pubKeyCommits [][]byte) (*Future[AccountHandle], error) {
	return submit(ctx, r, "create_account", func(ctx context.Context, c Client) (AccountHandle, error) {
		return c.CreateAccount(ctx, threshold, pubKeyCommits)
	})
}

func (r *Runtime) BuildTxSummary(ctx context.Context, accountID []byte, txRequest []byte) (TxSummary, error) {
	return call(ctx, r, "build_tx_summary", func(ctx context.Context, c Client) (TxSummary, error) {
		return c.BuildTxSummary(ctx, accountID, txRequest)
	})
}

// ExecuteTx enqueues the execution and returns the pending answer, so that a
// caller who timed out can keep following the outcome.
func (r *Runtime) ExecuteTx(ctx context.Context, accountID []byte, txRequest []byte, summary []byte, signatures [][]byte) (*Future[core.TxResult], error) {
	return submit(ctx, r, "execute_tx", func(ctx context.Context, c Client) (core.TxResult, error) {
		return c.ExecuteTx(ctx, accountID, txRequest, summary, signatures)
	})
}

func (r *Runtime) ConsumableNotes(ctx context.Context, accountID []byte) ([]core.Note, error) {
	return call(ctx, r, "consumable_notes", func(ctx context.Context, c Client) ([]core.Note, error) {
		return c.ConsumableNotes(ctx, accountID)
	})
}
