package badgerstore

import (
	"context"
	"testing"

	"github.com/signadot/tony-format/contentstore/storage"
	"github.com/signadot/tony-format/contentstore/storage/storagetest"
)

func TestInMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		s, err := Open(InMemoryConfig())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		return s
	})
}

func TestPersistent(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		cfg := DefaultConfig()
		cfg.Path = t.TempDir()
		cfg.GCInterval = 0
		s, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		return s
	})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.NextID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx, id, 1, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Fetch(ctx, id, 1)
	if err != nil || string(got) != "v1" {
		t.Errorf("Fetch() after reopen = %q, %v", got, err)
	}
	next, err := s.NextID(ctx)
	if err != nil || next <= id {
		t.Errorf("NextID() after reopen = %d, %v, want > %d", next, err, id)
	}
}

func TestOpenWithoutPath(t *testing.T) {
	if _, err := Open(DefaultConfig()); err == nil {
		t.Errorf("Open() without a path succeeded")
	}
}
