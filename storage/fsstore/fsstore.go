// Package fsstore is a filesystem storage.Backend.
//
// Layout under the root directory:
//
//	meta/seq                     instance id and write counters
//	instances/<id>/<version>.snap  one file per version snapshot
//	instances/<id>/meta.json       ledger metadata of the instance
//
// Ids and versions are written as lexically sortable integers so that
// directory listings are in numeric order. Every file is written to a
// temporary file first and renamed into place.
package fsstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signadot/tony-format/contentstore/debug"
	"github.com/signadot/tony-format/contentstore/storage"
)

const (
	snapExt  = ".snap"
	metaFile = "meta.json"
)

type Store struct {
	root   string
	umask  int
	seqMu  sync.Mutex
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// Open opens or creates a Store rooted at root. umask is applied to the
// permissions of created directories and files. If logger is nil,
// slog.Default() is used.
func Open(root string, umask int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{root: root, umask: umask, logger: logger}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, dir := range []string{
		filepath.Join(s.root, "meta"),
		filepath.Join(s.root, "instances"),
	} {
		if err := s.mkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	seqPath := filepath.Join(s.root, "meta", seqFile)
	if _, err := os.Stat(seqPath); os.IsNotExist(err) {
		s.seqMu.Lock()
		err := s.writeSeqStateLocked(&SeqState{})
		s.seqMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) mkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm&^os.FileMode(s.umask))
}

func (s *Store) writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644&^os.FileMode(s.umask)); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// FormatLexInt formats v so that the lexical order of the results is the
// numeric order: a one letter length prefix followed by the digits.
func FormatLexInt(v int64) string {
	d := strconv.FormatUint(uint64(v), 10)
	prefix := rune('a' + len(d) - 1)
	return string(prefix) + d
}

func ParseLexInt(v string) (int64, error) {
	if len(v) < 2 {
		return 0, fmt.Errorf("%q too short", v)
	}
	if v[0] < 'a' || v[0] > 's' {
		return 0, fmt.Errorf("invalid leading character in %q, expecting a-s", v)
	}
	if int(v[0]-'a')+1 != len(v)-1 {
		return 0, fmt.Errorf("length prefix of %q does not match", v)
	}
	u, err := strconv.ParseUint(v[1:], 10, 64)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}

func (s *Store) instanceDir(id int64) string {
	return filepath.Join(s.root, "instances", FormatLexInt(id))
}

func (s *Store) snapPath(id int64, version int) string {
	return filepath.Join(s.instanceDir(id), FormatLexInt(int64(version))+snapExt)
}

func notFound(err error, what string, args ...any) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, fmt.Sprintf(what, args...))
	}
	return err
}

func (s *Store) Persist(ctx context.Context, id int64, version int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.mkdirAll(s.instanceDir(id), 0755); err != nil {
		return err
	}
	if err := s.writeFileAtomic(s.snapPath(id, version), data); err != nil {
		return fmt.Errorf("persist %d.%d: %w", id, version, err)
	}
	if debug.Storage() {
		debug.Logf("fsstore persist %d.%d (%d bytes)\n", id, version, len(data))
	}
	return s.countWrite()
}

func (s *Store) Fetch(ctx context.Context, id int64, version int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.snapPath(id, version))
	if err != nil {
		return nil, notFound(err, "snapshot %d.%d", id, version)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id int64, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.snapPath(id, version)); err != nil {
		return notFound(err, "snapshot %d.%d", id, version)
	}
	if debug.Storage() {
		debug.Logf("fsstore delete %d.%d\n", id, version)
	}
	return nil
}

func (s *Store) Versions(ctx context.Context, id int64) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.instanceDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var res []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapExt) {
			continue
		}
		v, err := ParseLexInt(strings.TrimSuffix(name, snapExt))
		if err != nil {
			s.logger.Warn("skipping invalid snapshot filename", "filename", name, "error", err)
			continue
		}
		res = append(res, int(v))
	}
	sort.Ints(res)
	return res, nil
}

func (s *Store) PutMeta(ctx context.Context, id int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.mkdirAll(s.instanceDir(id), 0755); err != nil {
		return err
	}
	return s.writeFileAtomic(filepath.Join(s.instanceDir(id), metaFile), data)
}

func (s *Store) Meta(ctx context.Context, id int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.instanceDir(id), metaFile))
	if err != nil {
		return nil, notFound(err, "meta %d", id)
	}
	return data, nil
}

// DeleteMeta removes the metadata of id and its directory once empty.
func (s *Store) DeleteMeta(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.instanceDir(id), metaFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.instanceDir(id)); err != nil && !os.IsNotExist(err) {
		s.logger.Debug("instance directory kept", "id", id, "error", err)
	}
	return nil
}

func (s *Store) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.nextID()
}

func (s *Store) Close() error { return nil }
