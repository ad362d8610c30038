// Package storagetest checks storage.Backend implementations against the
// backend contract.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/tony-format/contentstore/storage"
)

// Run runs the contract tests against backends produced by open. Each
// subtest gets a fresh backend.
func Run(t *testing.T, open func(t *testing.T) storage.Backend) {
	tests := []struct {
		name string
		f    func(t *testing.T, b storage.Backend)
	}{
		{"PersistFetch", testPersistFetch},
		{"Versions", testVersions},
		{"Delete", testDelete},
		{"Meta", testMeta},
		{"NextID", testNextID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := open(t)
			defer func() {
				if err := b.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}()
			tt.f(t, b)
		})
	}
}

func testPersistFetch(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if _, err := b.Fetch(ctx, 1, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Fetch(missing) error = %v, want ErrNotFound", err)
	}
	if err := b.Persist(ctx, 1, 1, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := b.Persist(ctx, 1, 1, []byte("uno")); err != nil {
		t.Fatal(err)
	}
	got, err := b.Fetch(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "uno" {
		t.Errorf("Fetch() = %q, want the overwritten data", got)
	}
	// returned data is not shared with the backend
	got[0] = 'X'
	again, _ := b.Fetch(ctx, 1, 1)
	if string(again) != "uno" {
		t.Errorf("Fetch() returned shared data: %q", again)
	}
}

func testVersions(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if vs, err := b.Versions(ctx, 7); err != nil || len(vs) != 0 {
		t.Fatalf("Versions(unknown) = %v, %v", vs, err)
	}
	for _, v := range []int{3, 1, 12, 2} {
		if err := b.Persist(ctx, 7, v, []byte{byte(v)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Persist(ctx, 8, 5, []byte{5}); err != nil {
		t.Fatal(err)
	}
	vs, err := b.Versions(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 12}, vs); diff != "" {
		t.Errorf("Versions() mismatch (-want +got):\n%s", diff)
	}
}

func testDelete(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.Persist(ctx, 2, 1, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := b.Persist(ctx, 2, 2, []byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, 2, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, 2, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := b.Fetch(ctx, 2, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Fetch(deleted) error = %v, want ErrNotFound", err)
	}
	vs, err := b.Versions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2}, vs); diff != "" {
		t.Errorf("Versions() mismatch (-want +got):\n%s", diff)
	}
}

func testMeta(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if _, err := b.Meta(ctx, 4); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Meta(missing) error = %v, want ErrNotFound", err)
	}
	if err := b.PutMeta(ctx, 4, []byte(`{"max":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.PutMeta(ctx, 4, []byte(`{"max":2}`)); err != nil {
		t.Fatal(err)
	}
	got, err := b.Meta(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"max":2}` {
		t.Errorf("Meta() = %s", got)
	}
	if err := b.DeleteMeta(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Meta(ctx, 4); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Meta(deleted) error = %v, want ErrNotFound", err)
	}
}

func testNextID(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	const n = 20
	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := b.NextID(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if id < 1 || seen[id] {
				t.Errorf("NextID() = %d, duplicate or non-positive", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}
