package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/address"
	"github.com/arnac-io/multisig-coordinator/pkg/api"
	"github.com/arnac-io/multisig-coordinator/pkg/app"
	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/blockchain/devnet"
	"github.com/arnac-io/multisig-coordinator/pkg/config"
	"github.com/arnac-io/multisig-coordinator/pkg/dbstorage"
	"github.com/arnac-io/multisig-coordinator/pkg/engine"
	"github.com/arnac-io/multisig-coordinator/pkg/sentry"
)

func serve(cfg config.Config) error {
	log := app.Logger(cfg.App.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := sentry.Init(cfg.App.SentryDSN, cfg.App.Environment); err != nil {
		return err
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := app.SignalContext()
	defer stop()

	codec, err := address.NewCodec(cfg.App.NetworkID)
	if err != nil {
		return errors.Wrap(err, "network id")
	}
	storage, err := dbstorage.NewDbStorage(ctx, log, cfg.DB.URL, dbstorage.WithMaxConns(cfg.DB.MaxConn))
	if err != nil {
		return errors.Wrap(err, "storage init")
	}
	defer storage.Close()

	factory := devnet.Factory(log, devnet.Config{
		NodeURL:      cfg.Client.NodeURL,
		StorePath:    cfg.Client.StorePath,
		KeystorePath: cfg.Client.KeystorePath,
		Timeout:      cfg.Client.Timeout,
		NetworkID:    cfg.App.NetworkID,
	})
	stopped := engine.New(log, storage, codec,
		engine.WithAccountCacheSize(cfg.App.AccountCacheSize),
		engine.WithRuntimeOptions(
			blockchain.WithTimeout(cfg.Client.Timeout),
			blockchain.WithQueueSize(cfg.Client.QueueSize),
		))
	started, err := stopped.Start(ctx, factory)
	if err != nil {
		return errors.Wrap(err, "engine start")
	}

	server := api.NewServer(log, api.NewHandler(started), cfg.App.Listen, api.WithCORS(cfg.App.CorsAllowedOrigins))
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{Addr: cfg.App.MetricsListen, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := server.Run(); err != nil {
			log.Error("api server", zap.Error(err))
			stop()
		}
	})
	wg.Go(func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	})

	<-ctx.Done()
	log.Info("shutting down")
	err = app.Shutdown(log,
		server.Shutdown,
		metrics.Shutdown,
		func(ctx context.Context) error {
			_, err := started.Stop(ctx)
			return err
		},
	)
	wg.Wait()
	return err
}
