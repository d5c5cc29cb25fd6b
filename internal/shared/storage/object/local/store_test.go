package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"face-analysis-backend/internal/shared/storage/object"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	payload := []byte("\x89PNG\r\n\x1a\n rest of the image")

	key, size, mimeType, err := store.Save(context.Background(), "analyzed", "analyzed_face.png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(key, "analyzed/") || !strings.HasSuffix(key, "_analyzed_face.png") {
		t.Fatalf("unexpected key: %s", key)
	}
	if size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), size)
	}
	if mimeType != "image/png" {
		t.Fatalf("expected image/png, got %s", mimeType)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestSaveGeneratesUniqueKeys(t *testing.T) {
	store := New(t.TempDir())
	k1, _, _, err := store.Save(context.Background(), "analyzed", "face.jpg", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	k2, _, _, err := store.Save(context.Background(), "analyzed", "face.jpg", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected distinct keys, got %s twice", k1)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../etc/passwd"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected traversal to be rejected as not found, got %v", err)
	}
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := store.Save(ctx, "analyzed", "face.jpg", strings.NewReader("a")); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestOpenMissingKeyReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if _, err := store.Open(context.Background(), "analyzed/missing.png"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected object.ErrNotFound for missing file, got %v", err)
	}
	if _, _, _, err := store.Save(context.Background(), "analyzed", "a.png", strings.NewReader("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Open(context.Background(), "analyzed"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected object.ErrNotFound for directory, got %v", err)
	}
}
