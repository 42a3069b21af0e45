package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/services/api"
)

func buildHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	st api.MonitorStore,
	r api.Refresher,
	alerts api.Alerts,
	hub *api.Hub,
	health func(context.Context) error,
) *http.Server {
	srv := api.NewServer(logger, st, r, alerts, hub, api.Options{
		EditDelay:  cfg.Refresh.EditDelay,
		TokenHash:  cfg.Server.APITokenHash,
		RateRPS:    cfg.Server.RateLimitRPS,
		RateBurst:  cfg.Server.RateLimitBurst,
		Health:     health,
		Background: ctx,
	})

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
