package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestResultKey(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	got := ResultKey("a1b2", "clip.mp4", now)
	want := "2026-03-14/a1b2_clip.mp4"
	if got != want {
		t.Errorf("ResultKey = %q, want %q", got, want)
	}
}

func TestLocalStoreSaveFile(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	src := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	key := "2026-03-14/job1_out.mp4"
	if err := store.SaveFile(context.Background(), key, src); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	path := store.LocalPath(key)
	if path == "" {
		t.Fatal("LocalPath returned empty for saved key")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("content = %q", string(data))
	}

	if !store.Exists(context.Background(), key) {
		t.Error("Exists = false for saved key")
	}
	if store.Exists(context.Background(), "missing/key.mp4") {
		t.Error("Exists = true for missing key")
	}
	if store.Type() != "local" {
		t.Errorf("Type = %q, want local", store.Type())
	}
}

func TestLocalStoreURL(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	url, err := store.URL(context.Background(), "any")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if url != "" {
		t.Errorf("URL = %q, want empty for local store", url)
	}
}

func TestOutputPrunerRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	dateDir := filepath.Join(dir, "2026-01-01")
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	oldFile := filepath.Join(dateDir, "old.mp4")
	newFile := filepath.Join(dateDir, "new.mp4")
	for _, f := range []string{oldFile, newFile} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	p := NewOutputPruner(dir, 24*time.Hour, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old file not pruned")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("new file should survive pruning")
	}
}

func TestOutputPrunerZeroRetentionKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "keep.mp4")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-1000 * time.Hour)
	os.Chtimes(f, past, past)

	p := NewOutputPruner(dir, 0, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(f); err != nil {
		t.Error("file pruned despite zero retention")
	}
}
