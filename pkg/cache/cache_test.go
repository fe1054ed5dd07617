package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/menta2k/cardmask/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "images.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKey(t *testing.T) {
	set := types.NewSetRecord("DST", "Darksteel", time.Now(), types.BorderBlack)
	c := &types.CardRecord{Name: "Æther Vial", Number: "91"}
	set.AddCard(c)

	if got := Key(c); got != "dst-91-aether vial" {
		t.Errorf("Key() = %q", got)
	}
}

func TestGetPut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "m15-1-shock"); err != nil || ok {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "m15-1-shock", []byte("first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "m15-1-shock", []byte("second")); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}

	data, ok, err := s.Get(ctx, "m15-1-shock")
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if string(data) != "second" {
		t.Errorf("Expected overwritten value, got %q", data)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Entries != 1 || st.Bytes != 6 {
		t.Errorf("Unexpected stats %+v", st)
	}

	if err := s.Put(ctx, "empty", nil); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, ok, _ := reopened.Get(context.Background(), "k"); !ok {
		t.Error("Expected entry to survive reopen")
	}
}

func TestConcurrentPut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Put(ctx, fmt.Sprintf("key-%d", i), []byte("data")); err != nil {
				t.Errorf("Put %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	st, _ := s.Stats(ctx)
	if st.Entries != 32 {
		t.Errorf("Expected 32 entries, got %d", st.Entries)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	var timeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout query failed: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("Expected busy_timeout 5000, got %d", timeout)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode query failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected wal journal mode, got %q", mode)
	}
}

func TestConcurrentPutAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	stores := make([]*Store, 2)
	for i := range stores {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		t.Cleanup(func() { s.Close() })
		stores[i] = s
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := stores[i%len(stores)]
			if err := s.Put(ctx, fmt.Sprintf("key-%d", i), []byte("data")); err != nil {
				t.Errorf("Put %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	st, err := stores[0].Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Entries != 16 {
		t.Errorf("Expected 16 entries, got %d", st.Entries)
	}
}
