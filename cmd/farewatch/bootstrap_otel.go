package main

import (
	"context"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	oc := cfg.OTEL.AsOTELConfig()
	oc.Version = cfg.App.Version
	oc.Env = cfg.App.Env
	tracing, err := obs.SetupOTel(ctx, *oc)
	if err != nil {
		return nil, err
	}
	return tracing.Shutdown, nil
}
