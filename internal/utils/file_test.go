package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lightning Bolt", "Lightning Bolt"},
		{"Fire // Ice", "Fire __ Ice"},
		{"Who/What/When/Where/Why", "Who_What_When_Where_Why"},
		{"  .hidden. ", "hidden"},
		{"Kongming, \"Sleeping Dragon\"", "Kongming, _Sleeping Dragon_"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLockDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	lock, err := LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir failed: %v", err)
	}

	if _, err := LockDir(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked on second lock, got %v", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	again, err := LockDir(dir)
	if err != nil {
		t.Fatalf("Expected lock after release, got %v", err)
	}
	again.Unlock()
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "notes.txt", LockFileName} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.JPG" || filepath.Base(files[1]) != "b.png" {
		t.Errorf("Unexpected files %v", files)
	}
}

func TestFormatFileSize(t *testing.T) {
	if got := FormatFileSize(512); got != "512 B" {
		t.Errorf("got %q", got)
	}
	if got := FormatFileSize(1536); got != "1.5 KB" {
		t.Errorf("got %q", got)
	}
}
