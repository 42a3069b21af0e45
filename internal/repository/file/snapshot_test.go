package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSlot_MissingFileIsEmpty(t *testing.T) {
	s := NewSnapshotSlot(filepath.Join(t.TempDir(), "none.json"))
	body, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestSnapshotSlot_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flight-monitors.json")
	s := NewSnapshotSlot(path)

	require.NoError(t, s.Save(context.Background(), []byte(`[{"id":"1"}]`)))
	require.NoError(t, s.Save(context.Background(), []byte(`[{"id":"2"}]`)))

	body, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"2"}]`, string(body))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSnapshotSlot_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSnapshotSlot(filepath.Join(t.TempDir(), "x.json"))
	require.ErrorIs(t, s.Save(ctx, []byte(`[]`)), context.Canceled)
}
