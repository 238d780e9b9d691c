package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileStoreSave(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalFileStore(tmpDir)

	path, err := store.Save(context.Background(), "analysis_abc/upload.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path == "" {
		t.Fatal("Expected non-empty path")
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "analysis_abc/upload.pdf"))
	if err != nil {
		t.Fatalf("Failed to read stored file: %v", err)
	}
	if string(content) != "%PDF-1.4" {
		t.Errorf("Unexpected content: %s", content)
	}
}

func TestLocalFileStoreRemove(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalFileStore(tmpDir)

	path, err := store.Save(context.Background(), "upload.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still present after Remove")
	}

	// Removing twice is fine.
	if err := store.Remove(context.Background(), path); err != nil {
		t.Errorf("second Remove errored: %v", err)
	}
}
