package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(*cfg.AsLoggerConfig())
}
