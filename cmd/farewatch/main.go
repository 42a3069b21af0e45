package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/services/api"
	"github.com/NordCoder/Farewatch/internal/services/refresh"
	"github.com/NordCoder/Farewatch/internal/services/store"
)

func main() {
	configPath := flag.String("config", "config/farewatch.yaml", "path to the YAML config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting farewatch", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	storage, err := initStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer storage.close()

	st := store.New(storage.slot, logger)
	if err := st.Load(rootCtx); err != nil {
		logger.Fatal("load monitors", zap.Error(err))
	}
	logger.Info("monitors loaded", zap.Int("count", len(st.List())), zap.String("backend", cfg.Storage.Backend))

	hub := api.NewHub(logger, nil)
	defer hub.Close()

	dispatcher, closeSinks, err := initNotifier(rootCtx, cfg, logger, storage, hub)
	if err != nil {
		logger.Fatal("notifier init", zap.Error(err))
	}
	defer closeSinks()

	engine := refresh.NewEngine(logger, st, initOracle(cfg, logger), dispatcher, refresh.Options{
		Timeout:     cfg.Oracle.Timeout,
		MinInterval: cfg.Oracle.MinInterval,
	})
	defer engine.Close()

	runner, err := refresh.NewRunner(logger, engine, cfg.Refresh.Schedule, nil)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	runnerErrCh := make(chan error, 1)
	go func() { runnerErrCh <- runner.Run(rootCtx) }()

	events, unsubscribe := st.Subscribe()
	defer unsubscribe()
	go hub.Pump(rootCtx, events)

	grpcServer, grpcLn, healthSrv, err := buildGRPCServer(cfg, logger)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv := buildHTTPServer(rootCtx, cfg, logger, st, engine, dispatcher, hub, storage.health)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	markServing(healthSrv)

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	case runErr = <-runnerErrCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("scheduler", zap.Error(runErr))
		}
	}

	markNotServing(healthSrv)
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	gracefulStopGRPC(grpcServer)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
