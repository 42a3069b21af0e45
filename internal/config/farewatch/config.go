package farewatch_config

import (
	"time"

	"github.com/NordCoder/Farewatch/internal/obs"
	pg "github.com/NordCoder/Farewatch/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	// APITokenHash is a bcrypt hash; when set, mutating routes need a matching bearer token.
	APITokenHash   string  `mapstructure:"api_token_hash"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	PublicURL      string  `mapstructure:"public_url"`
}

type Storage struct {
	Backend    string `mapstructure:"backend"`
	Slot       string `mapstructure:"slot"`
	FilePath   string `mapstructure:"file_path"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Migrate    bool   `mapstructure:"migrate"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Oracle struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Fallback    string        `mapstructure:"fallback"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type Refresh struct {
	Schedule  string        `mapstructure:"schedule"`
	EditDelay time.Duration `mapstructure:"edit_delay"`
}

type Email struct {
	Enable   bool   `mapstructure:"enable"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type Telegram struct {
	Enable bool   `mapstructure:"enable"`
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type Webhook struct {
	Enable  bool          `mapstructure:"enable"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Outbox  Outbox   `mapstructure:"outbox"`
}

// Outbox routes deal events through a postgres table; only used with the
// postgres storage backend.
type Outbox struct {
	Enable        bool          `mapstructure:"enable"`
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	Retention     time.Duration `mapstructure:"retention"`
}

type Notify struct {
	Permission string   `mapstructure:"permission"`
	IconURL    string   `mapstructure:"icon_url"`
	Email      Email    `mapstructure:"email"`
	Telegram   Telegram `mapstructure:"telegram"`
	Webhook    Webhook  `mapstructure:"webhook"`
	Kafka      Kafka    `mapstructure:"kafka"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:   c.Log.Level,
		Pretty:  c.Log.Pretty,
		App:     c.App.Name,
		Env:     c.App.Env,
		Version: c.App.Version,
	}
}

type Config struct {
	App     App       `mapstructure:"app"`
	Server  Server    `mapstructure:"server"`
	Storage Storage   `mapstructure:"storage"`
	DB      pg.Config `mapstructure:"db"`
	Redis   Redis     `mapstructure:"redis"`
	Oracle  Oracle    `mapstructure:"oracle"`
	Refresh Refresh   `mapstructure:"refresh"`
	Notify  Notify    `mapstructure:"notify"`
	OTEL    OTEL      `mapstructure:"otel"`
	Log     Log       `mapstructure:"log"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
