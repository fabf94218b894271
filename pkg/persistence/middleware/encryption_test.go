package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/gokernel/pkg/adapters/memory"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/persistence/middleware"
	"github.com/aretw0/gokernel/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunHistoryStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.Wrap(underlyingStore,
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}))

	ctx := context.Background()
	sessionID := "test-session"
	original := domain.NewSessionRecord(sessionID, "lua")
	original.Append(`password = "my-secret-sauce"`)

	if err := secureStore.Save(ctx, sessionID, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying store must only hold ciphertext.
	stored, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if len(stored.Units) != 1 || strings.Contains(stored.Units[0], "my-secret-sauce") {
		t.Fatalf("Expected units to be hidden, found: %v", stored.Units)
	}
	assert.Equal(t, "lua", stored.Language)

	loaded, err := secureStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	assert.Equal(t, original.Units, loaded.Units)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	sessionID := "rotation-session"
	original := domain.NewSessionRecord(sessionID, "go")
	original.Append("x := 1")

	require.NoError(t, secureStoreOld.Save(ctx, sessionID, original))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, sessionID)
	require.NoError(t, err, "Load with rotated key failed")
	assert.Equal(t, []string{"x := 1"}, loaded.Units)

	// Saving again re-encrypts with the new key.
	loaded.Append("y := 2")
	require.NoError(t, secureStoreNew.Save(ctx, sessionID, loaded))

	_, err = secureStoreOld.Load(ctx, sessionID)
	assert.Error(t, err, "Expected failure when loading new-key encryption with old-key middleware")
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	plain := domain.NewSessionRecord("plain", "lua")
	plain.Append("x = 1")
	require.NoError(t, underlyingStore.Save(ctx, "plain", plain))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secure.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("deadbeef")
	assert.Error(t, err)
}
