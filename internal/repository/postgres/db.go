package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/obs"
)

type Config struct {
	DSN               string        `mapstructure:"dsn"`
	ApplicationName   string        `mapstructure:"application_name"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	// SlowQuery logs statements that take at least this long. Zero disables it.
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

// DB is the pool shared by the snapshot slot and the alert outbox.
type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func New(ctx context.Context, cfg Config, log *zap.Logger) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	name := cfg.ApplicationName
	if name == "" {
		name = "farewatch"
	}
	pcfg.ConnConfig.RuntimeParams["application_name"] = name
	if cfg.SlowQuery > 0 {
		pcfg.ConnConfig.Tracer = &slowQueryTracer{
			threshold: cfg.SlowQuery,
			log:       obs.Component(log, "postgres"),
		}
	}
	for _, set := range []struct {
		ok    bool
		apply func()
	}{
		{cfg.MaxConns > 0, func() { pcfg.MaxConns = cfg.MaxConns }},
		{cfg.MinConns > 0, func() { pcfg.MinConns = cfg.MinConns }},
		{cfg.MaxConnLifetime > 0, func() { pcfg.MaxConnLifetime = cfg.MaxConnLifetime }},
		{cfg.MaxConnIdleTime > 0, func() { pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime }},
		{cfg.HealthCheckPeriod > 0, func() { pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod }},
	} {
		if set.ok {
			set.apply()
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// Ping backs the storage health check.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

type slowQueryKey struct{}

type slowQueryStart struct {
	sql   string
	begun time.Time
}

// slowQueryTracer is a pgx.QueryTracer that warns about long statements.
type slowQueryTracer struct {
	threshold time.Duration
	log       *zap.Logger
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, slowQueryKey{}, slowQueryStart{sql: data.SQL, begun: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(slowQueryKey{}).(slowQueryStart)
	if !ok {
		return
	}
	if took := time.Since(st.begun); took >= t.threshold {
		obs.WithTrace(ctx, t.log).Warn("slow query",
			zap.Duration("took", took),
			zap.String("sql", st.sql),
			zap.String("tag", data.CommandTag.String()),
			zap.Error(data.Err),
		)
	}
}
