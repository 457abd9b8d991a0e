// Package engine coordinates N-of-M multisig accounts: it creates accounts,
// records proposals and signatures, and executes a tx once its signatures
// reach the account threshold.
//
// The engine has two states. An *Engine is stopped and can only be started.
// Start hands back a *Started, which owns the blockchain client runtime and
// carries every operation. Stop turns it back into a stopped *Engine.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/address"
	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/cache"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

var ErrEngineNotStarted = errors.New("engine is not started")

const defaultAccountCacheSize = 1024

type Engine struct {
	logger         *zap.Logger
	storage        Storage
	codec          address.Codec
	runtimeOptions []blockchain.Option
	cacheSize      int
}

type Options struct {
	runtimeOptions []blockchain.Option
	cacheSize      int
}

type Option func(o *Options)

func WithRuntimeOptions(opts ...blockchain.Option) Option {
	return func(o *Options) {
		o.runtimeOptions = append(o.runtimeOptions, opts...)
	}
}

// WithAccountCacheSize sets how many accounts are kept in memory. Accounts
// never change after creation.
func WithAccountCacheSize(n int) Option {
	return func(o *Options) {
		o.cacheSize = n
	}
}

func New(log *zap.Logger, storage Storage, codec address.Codec, opts ...Option) *Engine {
	o := &Options{cacheSize: defaultAccountCacheSize}
	for i := range opts {
		opts[i](o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = defaultAccountCacheSize
	}
	return &Engine{
		logger:         log,
		storage:        storage,
		codec:          codec,
		runtimeOptions: o.runtimeOptions,
		cacheSize:      o.cacheSize,
	}
}

// Start launches the client runtime. Every persisted account is imported
// into the client before Start returns.
func (e *Engine) Start(ctx context.Context, factory blockchain.ClientFactory) (*Started, error) {
	accounts, err := e.storage.ListAccounts(ctx)
	if err != nil {
		return nil, &blockchain.StartupError{Err: errors.Wrap(err, "list tracked accounts")}
	}
	tracked := make([][]byte, 0, len(accounts))
	for _, acc := range accounts {
		id, err := e.codec.Decode(acc.Address)
		if err != nil {
			e.logger.Warn("skipping account of another network", zap.String("account", acc.Address), zap.Error(err))
			continue
		}
		tracked = append(tracked, id)
	}
	opts := append([]blockchain.Option{blockchain.WithTrackedAccounts(tracked)}, e.runtimeOptions...)
	rt, err := blockchain.Start(ctx, e.logger, factory, opts...)
	if err != nil {
		return nil, err
	}
	s := &Started{
		engine:   e,
		logger:   e.logger,
		storage:  e.storage,
		codec:    e.codec,
		accounts: cache.NewLRUCache[string, core.Account](e.cacheSize, "accounts"),
	}
	s.runtime.Store(rt)
	e.logger.Info("multisig engine started", zap.String("network_id", e.codec.NetworkID()))
	return s, nil
}

// Started is a running engine. It is safe for concurrent use.
type Started struct {
	engine   *Engine
	logger   *zap.Logger
	storage  Storage
	codec    address.Codec
	runtime  atomic.Pointer[blockchain.Runtime]
	accounts *cache.Cache[string, core.Account]
	// finalizers follow requests whose callers stopped waiting. No finalizer
	// is added once stopping is set.
	mu         sync.Mutex
	stopping   bool
	finalizers conc.WaitGroup
}

// follow runs fn in the background and makes Stop wait for it. Once Stop has
// begun, fn runs on the calling goroutine instead.
func (s *Started) follow(fn func()) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		fn()
		return
	}
	s.finalizers.Go(fn)
	s.mu.Unlock()
}

func (s *Started) rt() (*blockchain.Runtime, error) {
	rt := s.runtime.Load()
	if rt == nil {
		return nil, ErrEngineNotStarted
	}
	return rt, nil
}

// Stop lets the runtime finish the request it is running, records the
// outcome of executions still being followed and returns the stopped engine.
// Operations on s fail with ErrEngineNotStarted afterwards.
func (s *Started) Stop(ctx context.Context) (*Engine, error) {
	rt := s.runtime.Swap(nil)
	if rt == nil {
		return s.engine, nil
	}
	var err error
	err = multierr.Append(err, rt.Stop(ctx))

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	finished := make(chan struct{})
	go func() {
		s.finalizers.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		err = multierr.Append(err, errors.Wrap(ctx.Err(), "wait for pending tx finalization"))
	}
	s.logger.Info("multisig engine stopped",
		zap.Int64("dropped_requests", rt.Pending()),
		zap.Error(err))
	return s.engine, err
}

// getAccount reads an account through the cache.
func (s *Started) getAccount(ctx context.Context, address string) (*core.Account, error) {
	if acc, ok := s.accounts.Get(address); ok {
		return &acc, nil
	}
	acc, err := s.storage.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	s.accounts.Set(address, *acc)
	return acc, nil
}
