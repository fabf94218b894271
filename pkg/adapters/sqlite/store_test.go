package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/gokernel/pkg/adapters/sqlite"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.HistoryStore = (*sqlite.Store)(nil)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunHistoryStoreContract(t, openStore(t, filepath.Join(t.TempDir(), "history.db")))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	record := domain.NewSessionRecord("s1", "lua")
	record.Append("x = 1")
	require.NoError(t, first.Save(ctx, "s1", record))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	loaded, err := second.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 1"}, loaded.Units)
	assert.Equal(t, record.UpdatedAt.UnixNano(), loaded.UpdatedAt.UnixNano())

	ids, err := second.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "history.db"))
	assert.NoError(t, store.Delete(context.Background(), "ghost"))
}
