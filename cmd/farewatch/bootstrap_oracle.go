package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/repository/fallback"
	"github.com/NordCoder/Farewatch/internal/repository/gemini"
	"github.com/NordCoder/Farewatch/internal/repository/serpapi"
)

func initOracle(cfg *config.Config, logger *zap.Logger) oracle.Oracle {
	oc := cfg.Oracle
	if oc.APIKey == "" {
		logger.Warn("oracle api key is not set; quotes will fall back", zap.String("provider", oc.Provider))
	}

	var inner oracle.Oracle
	switch oc.Provider {
	case "serpapi":
		inner = serpapi.New(serpapi.Config{
			APIKey:  oc.APIKey,
			BaseURL: oc.BaseURL,
			Timeout: oc.Timeout,
			Retries: oc.Retries,
			Backoff: oc.Backoff,
		}, logger)
	default:
		inner = gemini.New(gemini.Config{
			APIKey:  oc.APIKey,
			Model:   oc.Model,
			BaseURL: oc.BaseURL,
			Timeout: oc.Timeout,
			Retries: oc.Retries,
			Backoff: oc.Backoff,
		}, logger)
	}
	return fallback.New(inner, fallback.Mode(oc.Fallback), logger)
}
