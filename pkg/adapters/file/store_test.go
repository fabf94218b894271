package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/gokernel/pkg/adapters/file"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/ports"
)

// Ensure Store implements HistoryStore
var _ ports.HistoryStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunHistoryStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Disk(t *testing.T) {
	tempDir := t.TempDir()
	store := file.New(tempDir)
	ctx := context.Background()

	t.Run("DeleteSession", func(t *testing.T) {
		sessionID := "session-to-delete"
		if err := store.Save(ctx, sessionID, domain.NewSessionRecord(sessionID, "lua")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		path := filepath.Join(tempDir, sessionID+".json")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Fatalf("file should exist before delete")
		}

		if err := store.Delete(ctx, sessionID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file should not exist after delete")
		}
	})

	t.Run("DeleteNonExistentSession", func(t *testing.T) {
		// Should not error (idempotent)
		if err := store.Delete(ctx, "ghost-session"); err != nil {
			t.Errorf("Delete of non-existent session should not fail, got %v", err)
		}
	})

	t.Run("ListIgnoresForeignFiles", func(t *testing.T) {
		listDir := t.TempDir()
		listStore := file.New(listDir)

		for _, id := range []string{"s2", "s1", "s3"} {
			if err := listStore.Save(ctx, id, domain.NewSessionRecord(id, "go")); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}
		_ = os.WriteFile(filepath.Join(listDir, "garbage.txt"), []byte("garbage"), 0644)
		_ = os.WriteFile(filepath.Join(listDir, "tmp-s4-123.json"), []byte("{}"), 0644)

		list, err := listStore.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"s1", "s2", "s3"}
		if len(list) != len(want) {
			t.Fatalf("expected %v, got %v", want, list)
		}
		for i := range want {
			if list[i] != want[i] {
				t.Errorf("expected %s at %d, got %s", want[i], i, list[i])
			}
		}
	})

	t.Run("ListMissingDirectory", func(t *testing.T) {
		list, err := file.New(filepath.Join(tempDir, "nope")).List(ctx)
		if err != nil || len(list) != 0 {
			t.Errorf("expected empty list, got %v (%v)", list, err)
		}
	})
}
