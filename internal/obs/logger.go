package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level   string
	Pretty  bool
	App     string
	Env     string
	Version string
}

// NewLogger builds the process logger. Pretty selects the colored console
// encoder; otherwise records are JSON. An unknown level falls back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	fields := []zap.Field{zap.String("service", c.App), zap.String("env", c.Env)}
	if c.Version != "" {
		fields = append(fields, zap.String("version", c.Version))
	}
	log, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, err
	}
	zap.RedirectStdLog(log)
	return log, nil
}

// Component returns l tagged with a component name, or a no-op logger when l is nil.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String("component", name))
}
