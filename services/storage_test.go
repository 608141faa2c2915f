package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalImageStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalImageStorage(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	key, err := storage.SavePageImage(ctx, "doc-1", 3, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if key != "pdf-pages/doc-1/page-03.png" {
		t.Errorf("unexpected key: %s", key)
	}

	data, err := storage.Load(ctx, key)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("round trip corrupted data: %q", data)
	}
}

func TestLocalImageStorageRejectsTraversal(t *testing.T) {
	storage, err := NewLocalImageStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"../etc/passwd", "/etc/passwd", "pdf-pages/../../secret"} {
		if _, err := storage.Load(context.Background(), key); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestLocalImageStorageDeleteDocument(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalImageStorage(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if _, err := storage.SavePageImage(ctx, "doc-1", 1, []byte("a")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := storage.SavePageImage(ctx, "doc-2", 1, []byte("b")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := storage.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "pdf-pages", "doc-1")); !os.IsNotExist(err) {
		t.Error("doc-1 directory still exists")
	}
	if _, err := os.Stat(filepath.Join(dir, "pdf-pages", "doc-2", "page-01.png")); err != nil {
		t.Errorf("doc-2 image was removed: %v", err)
	}
}
