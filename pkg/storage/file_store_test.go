package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	if _, err := fs.Get(ctx, "section/s1/foreign/de-DE_default.mp3"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	payload := []byte("ID3fake-mp3")
	if err := fs.Put(ctx, "section/s1/foreign/de-DE_default.mp3", payload, "audio/mpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := fs.Get(ctx, "section/s1/foreign/de-DE_default.mp3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestFileStoreDeletePrefix(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	keys := []string{
		"section/s1/foreign/de-DE_default.mp3",
		"section/s1/foreign/de-DE_de-DE-Wavenet-A.mp3",
		"section/s1/english/en-US_default.mp3",
	}
	for _, k := range keys {
		if err := fs.Put(ctx, k, []byte(k), "audio/mpeg"); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	if err := fs.DeletePrefix(ctx, "section/s1/foreign/"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	for _, k := range keys[:2] {
		if _, err := fs.Get(ctx, k); !errors.Is(err, ErrNotExist) {
			t.Fatalf("%s survived delete: %v", k, err)
		}
	}
	if _, err := fs.Get(ctx, keys[2]); err != nil {
		t.Fatalf("english blob removed: %v", err)
	}

	if err := fs.DeletePrefix(ctx, "section/missing/foreign/"); err != nil {
		t.Fatalf("deleting absent prefix: %v", err)
	}
	if err := fs.DeletePrefix(ctx, ""); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
}

func TestFileStoreKeysStayInsideBase(t *testing.T) {
	base := t.TempDir()
	fs, err := NewFileStore(filepath.Join(base, "cache"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := fs.Put(context.Background(), "../../escape.mp3", []byte("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.mp3")); err == nil {
		t.Fatalf("blob escaped base directory")
	}
	if _, err := os.Stat(filepath.Join(base, "cache", "escape.mp3")); err != nil {
		t.Fatalf("expected blob inside base: %v", err)
	}
}
