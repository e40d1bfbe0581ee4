package localstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "localstore-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "state.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Run("missing key returns false", func(t *testing.T) {
		var v string
		ok, err := store.Get("current_split_id", &v)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("expected missing key")
		}
	})

	t.Run("put and get", func(t *testing.T) {
		if err := store.Put("current_split_id", "split-123"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		var v string
		ok, err := store.Get("current_split_id", &v)
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if v != "split-123" {
			t.Errorf("got %q, want split-123", v)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		status := map[string]string{"p1": "paid"}
		if err := store.Put("payment_status", status); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Delete("current_split_id"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		var got map[string]string
		ok, err := store.Get("payment_status", &got)
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if got["p1"] != "paid" {
			t.Errorf("payment_status lost after deleting another key: %v", got)
		}
	})

	t.Run("values survive reopen", func(t *testing.T) {
		reopened, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		var got map[string]string
		ok, err := reopened.Get("payment_status", &got)
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if got["p1"] != "paid" {
			t.Errorf("expected persisted value, got %v", got)
		}

		var id string
		if ok, _ := reopened.Get("current_split_id", &id); ok {
			t.Error("deleted key came back after reopen")
		}
	})

	t.Run("delete absent key is a no-op", func(t *testing.T) {
		if err := store.Delete("never-existed"); err != nil {
			t.Errorf("Delete failed: %v", err)
		}
	})
}
