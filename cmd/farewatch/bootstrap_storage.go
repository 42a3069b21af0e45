package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/repository/file"
	pg "github.com/NordCoder/Farewatch/internal/repository/postgres"
	rds "github.com/NordCoder/Farewatch/internal/repository/redis"
	"github.com/NordCoder/Farewatch/internal/repository/sqlite"
)

type storageHandle struct {
	slot   monitor.SnapshotSlot
	db     *pg.DB // postgres backend only
	health func(context.Context) error
	close  func()
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storageHandle, error) {
	switch cfg.Storage.Backend {
	case "file":
		slot := file.NewSnapshotSlot(cfg.Storage.FilePath)
		logger.Info("file storage", zap.String("path", slot.Path()))
		return &storageHandle{slot: slot, close: func() {}}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			if err := sqlite.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &storageHandle{
			slot:   sqlite.NewSnapshotSlot(db, cfg.Storage.Slot),
			health: db.PingContext,
			close:  func() { _ = db.Close() },
		}, nil

	case "postgres":
		db, err := pg.New(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			if err := pg.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &storageHandle{
			slot:   pg.NewSnapshotRepo(db, pg.NewTransactor(db, logger), cfg.Storage.Slot),
			db:     db,
			health: db.Ping,
			close:  db.Close,
		}, nil

	case "redis":
		client, err := rds.NewClient(ctx, rds.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return &storageHandle{
			slot:   rds.NewSnapshotSlot(client, cfg.Storage.Slot),
			health: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:  func() { _ = client.Close() },
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage.Backend)
}
