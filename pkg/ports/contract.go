package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract runs a suite of tests to verify that a HistoryStore
// implementation adheres to the defined interface contract.
func RunHistoryStoreContract(t *testing.T, store HistoryStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		record := domain.NewSessionRecord(sessionID, "lua")
		record.Append("x = 40")
		record.Append("return x + 2")

		err := store.Save(ctx, sessionID, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, "lua", loaded.Language)
		assert.Equal(t, []string{"x = 40", "return x + 2"}, loaded.Units)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		record := domain.NewSessionRecord(sessionID, "lua")
		record.Append("y = 1")
		require.NoError(t, store.Save(ctx, sessionID, record))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, []string{"y = 1"}, loaded.Units)
	})

	t.Run("Load Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Append("mutated")

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Units, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionRecord(sessionID, "go"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionRecord(id1, "go"))
		_ = store.Save(ctx, id2, domain.NewSessionRecord(id2, "lua"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunSessionLockerContract verifies that a SessionLocker leases each session
// to one holder at a time.
func RunSessionLockerContract(t *testing.T, locker SessionLocker) {
	ctx := context.Background()
	sessionID := "contract-lock-" + time.Now().Format("20060102150405")
	const ttl = 5 * time.Second

	waitShort := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, 250*time.Millisecond)
	}

	t.Run("Exclusive Per Session", func(t *testing.T) {
		release, err := locker.LockSession(ctx, sessionID, ttl)
		require.NoError(t, err)

		short, cancel := waitShort()
		defer cancel()
		_, err = locker.LockSession(short, sessionID, ttl)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "a held session must not be leased twice")

		require.NoError(t, release(ctx))
	})

	t.Run("Sessions Are Independent", func(t *testing.T) {
		release1, err := locker.LockSession(ctx, sessionID+"-a", ttl)
		require.NoError(t, err)
		defer func() { _ = release1(ctx) }()

		short, cancel := waitShort()
		defer cancel()
		release2, err := locker.LockSession(short, sessionID+"-b", ttl)
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("Release Hands Over", func(t *testing.T) {
		release, err := locker.LockSession(ctx, sessionID, ttl)
		require.NoError(t, err)

		acquired := make(chan ReleaseFunc, 1)
		go func() {
			next, err := locker.LockSession(ctx, sessionID, ttl)
			if err == nil {
				acquired <- next
			}
			close(acquired)
		}()

		require.NoError(t, release(ctx))
		select {
		case next, ok := <-acquired:
			require.True(t, ok, "waiter failed to acquire the released session")
			require.NoError(t, next(ctx))
		case <-time.After(5 * time.Second):
			t.Fatal("waiter never acquired the released session")
		}
	})
}
