package farewatch_config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	ErrUnknownBackend  = ErrConfig("unknown storage backend")
	ErrUnknownProvider = ErrConfig("unknown oracle provider")
	ErrUnknownFallback = ErrConfig("unknown oracle fallback mode")
	ErrNoDSN           = ErrConfig("postgres backend needs db.dsn")
	ErrBadSchedule     = ErrConfig("invalid refresh schedule")
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetDefault("app.name", "farewatch")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")
	v.SetDefault("server.api_token_hash", "")
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.slot", "flight-monitors")
	v.SetDefault("storage.file_path", "data/flight-monitors.json")
	v.SetDefault("storage.sqlite_path", "data/farewatch.db")
	v.SetDefault("storage.migrate", true)

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.application_name", "farewatch")
	v.SetDefault("db.slow_query", "500ms")
	v.SetDefault("db.max_conns", 5)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "10m")
	v.SetDefault("db.health_check_period", "30s")
	v.SetDefault("db.query_timeout", "2s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "2s")

	v.SetDefault("oracle.provider", "gemini")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "gemini-3-flash-preview")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", "90s")
	v.SetDefault("oracle.retries", 2)
	v.SetDefault("oracle.backoff", "500ms")
	v.SetDefault("oracle.fallback", "synthetic")
	v.SetDefault("oracle.min_interval", "1s")

	v.SetDefault("refresh.schedule", "@every 15m")
	v.SetDefault("refresh.edit_delay", "100ms")

	v.SetDefault("notify.permission", "default")
	v.SetDefault("notify.icon_url", "https://cdn-icons-png.flaticon.com/512/784/784791.png")
	v.SetDefault("notify.email.enable", false)
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.use_tls", false)
	v.SetDefault("notify.telegram.enable", false)
	v.SetDefault("notify.webhook.enable", false)
	v.SetDefault("notify.webhook.timeout", "5s")
	v.SetDefault("notify.kafka.enable", false)
	v.SetDefault("notify.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.kafka.topic", "farewatch.deals")
	v.SetDefault("notify.kafka.outbox.enable", true)
	v.SetDefault("notify.kafka.outbox.workers", 1)
	v.SetDefault("notify.kafka.outbox.batch_size", 50)
	v.SetDefault("notify.kafka.outbox.wait_time", "1s")
	v.SetDefault("notify.kafka.outbox.in_progress_ttl", "1m")
	v.SetDefault("notify.kafka.outbox.retention", "72h")

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "farewatch")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("oracle.api_key", "ORACLE_API_KEY", "API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "redis":
	case "postgres":
		if c.DB.DSN == "" {
			return ErrNoDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
	switch c.Oracle.Provider {
	case "gemini", "serpapi":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Oracle.Provider)
	}
	switch c.Oracle.Fallback {
	case "synthetic", "strict":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFallback, c.Oracle.Fallback)
	}
	if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSchedule, err)
	}
	return nil
}
