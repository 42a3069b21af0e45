package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
)

var _ monitor.SnapshotSlot = (*SnapshotRepo)(nil)

// SnapshotRepo keeps the monitor list as one JSONB row per slot.
type SnapshotRepo struct {
	db   *DB
	tx   Transactor
	slot string
}

func NewSnapshotRepo(db *DB, tx Transactor, slot string) *SnapshotRepo {
	return &SnapshotRepo{db: db, tx: tx, slot: slot}
}

const (
	qLoadSnapshot = `SELECT body FROM monitor_snapshots WHERE slot = $1;`

	qLockSlot = `SELECT pg_advisory_xact_lock(hashtext($1));`

	qUpsertSnapshot = `
INSERT INTO monitor_snapshots (slot, body, revision, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (slot) DO UPDATE
SET body = EXCLUDED.body,
    revision = monitor_snapshots.revision + 1,
    updated_at = NOW();
`
)

func (r *SnapshotRepo) Load(ctx context.Context) ([]byte, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var body []byte
	err := r.db.execQueryer(ctx).QueryRow(ctx, qLoadSnapshot, r.slot).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", r.slot, err)
	}
	return body, nil
}

// Save serialises writers of the same slot with a transaction-scoped advisory lock.
func (r *SnapshotRepo) Save(ctx context.Context, body []byte) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.execQueryer(ctx)
		if _, err := q.Exec(ctx, qLockSlot, r.slot); err != nil {
			return fmt.Errorf("lock slot %q: %w", r.slot, err)
		}
		if _, err := q.Exec(ctx, qUpsertSnapshot, r.slot, string(body)); err != nil {
			return fmt.Errorf("save snapshot %q: %w", r.slot, err)
		}
		return nil
	})
}
