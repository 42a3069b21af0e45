package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(t *testing.T) (*SnapshotSlot, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSnapshotSlot(db, "flight-monitors")
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s, mock
}

func TestSnapshotSlot_LoadEmpty(t *testing.T) {
	s, mock := newSlot(t)
	mock.ExpectQuery(regexp.QuoteMeta(qSelectSnapshot)).
		WithArgs("flight-monitors").
		WillReturnError(sql.ErrNoRows)

	body, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, body)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotSlot_LoadBody(t *testing.T) {
	s, mock := newSlot(t)
	mock.ExpectQuery(regexp.QuoteMeta(qSelectSnapshot)).
		WithArgs("flight-monitors").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`[{"id":"a"}]`))

	body, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(body))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotSlot_Save(t *testing.T) {
	s, mock := newSlot(t)
	mock.ExpectExec(regexp.QuoteMeta(qUpsertSnapshot)).
		WithArgs("flight-monitors", `[]`, int64(1_700_000_000_000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Save(context.Background(), []byte(`[]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotSlot_SaveError(t *testing.T) {
	s, mock := newSlot(t)
	boom := errors.New("disk full")
	mock.ExpectExec(regexp.QuoteMeta(qUpsertSnapshot)).WillReturnError(boom)

	err := s.Save(context.Background(), []byte(`[]`))
	require.ErrorIs(t, err, boom)
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(qCreateSnapshots)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
