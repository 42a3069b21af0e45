package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
)

func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const (
	qCreateSnapshots = `CREATE TABLE IF NOT EXISTS snapshots (
	slot TEXT PRIMARY KEY,
	body TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

	qSelectSnapshot = `SELECT body FROM snapshots WHERE slot = ?`

	qUpsertSnapshot = `INSERT INTO snapshots (slot, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, qCreateSnapshots); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}
	return nil
}

var _ monitor.SnapshotSlot = (*SnapshotSlot)(nil)

type SnapshotSlot struct {
	db   *sql.DB
	slot string
	now  func() time.Time
}

func NewSnapshotSlot(db *sql.DB, slot string) *SnapshotSlot {
	return &SnapshotSlot{db: db, slot: slot, now: time.Now}
}

func (s *SnapshotSlot) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, qSelectSnapshot, s.slot).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", s.slot, err)
	}
	return []byte(body), nil
}

func (s *SnapshotSlot) Save(ctx context.Context, body []byte) error {
	if _, err := s.db.ExecContext(ctx, qUpsertSnapshot, s.slot, string(body), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("save snapshot %q: %w", s.slot, err)
	}
	return nil
}
