// Package storage defines the backend contract of the version ledger.
//
// A backend stores opaque version snapshots keyed by instance id and
// version number, one opaque metadata record per instance, and hands out
// instance ids. It knows nothing about the snapshot format; the ledger
// owns encoding and version bookkeeping.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a snapshot or metadata record does not
// exist.
var ErrNotFound = errors.New("storage: not found")

type Backend interface {
	// Persist stores data as version of instance id, replacing any
	// previous data for the same key.
	Persist(ctx context.Context, id int64, version int, data []byte) error
	Fetch(ctx context.Context, id int64, version int) ([]byte, error)
	Delete(ctx context.Context, id int64, version int) error
	// Versions returns the stored versions of id in ascending order.
	Versions(ctx context.Context, id int64) ([]int, error)

	PutMeta(ctx context.Context, id int64, data []byte) error
	Meta(ctx context.Context, id int64) ([]byte, error)
	DeleteMeta(ctx context.Context, id int64) error

	// NextID allocates a fresh instance id, starting at 1.
	NextID(ctx context.Context) (int64, error)

	Close() error
}
