package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/signadot/tony-format/contentstore/access"
	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/debug"
	"github.com/signadot/tony-format/contentstore/delta"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/storage"
)

// Ledger stores numbered versions of content trees in a storage backend.
// It is safe for concurrent use; operations on the same instance are
// serialized.
type Ledger struct {
	backend storage.Backend
	types   schema.Provider

	logger     *slog.Logger
	locker     Locker
	liveSteps  map[int64]bool
	reg        prometheus.Registerer
	now        func() time.Time
	fetchLimit int
	metrics    *metrics

	mu    sync.Mutex
	locks map[int64]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

// CommitOptions carry the actor and workflow step of a write.
type CommitOptions struct {
	Step int64
	// Cap is the capability of the writer. The zero Capability grants
	// nothing; use access.System() for unrestricted writes.
	Cap access.Capability
}

func New(backend storage.Backend, types schema.Provider, opts ...Option) *Ledger {
	l := &Ledger{
		backend:    backend,
		types:      types,
		logger:     slog.Default(),
		liveSteps:  map[int64]bool{},
		now:        time.Now,
		fetchLimit: 8,
		locks:      map[int64]*idLock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.metrics = newMetrics(l.reg)
	return l
}

func (l *Ledger) lock(id int64) func() {
	l.mu.Lock()
	il := l.locks[id]
	if il == nil {
		il = &idLock{}
		l.locks[id] = il
	}
	il.refs++
	l.mu.Unlock()

	il.Lock()
	return func() {
		il.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *Ledger) checkLock(ctx context.Context, id int64) error {
	if l.locker == nil {
		return nil
	}
	locked, err := l.locker.IsLocked(ctx, id)
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("%w: instance %d", content.ErrLocked, id)
	}
	return nil
}

func (l *Ledger) readInfo(ctx context.Context, id int64) (*VersionInfo, error) {
	data, err := l.backend.Meta(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: instance %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	info := &VersionInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("could not decode version info of %d: %w", id, err)
	}
	if info.Versions == nil {
		info.Versions = map[int]VersionData{}
	}
	info.derive()
	return info, nil
}

func (l *Ledger) writeInfo(ctx context.Context, info *VersionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return l.backend.PutMeta(ctx, info.ID, data)
}

// VersionInfo returns the version bookkeeping of instance id.
func (l *Ledger) VersionInfo(ctx context.Context, id int64) (*VersionInfo, error) {
	return l.readInfo(ctx, id)
}

// Create stores tree as version 1 of a new instance.
func (l *Ledger) Create(ctx context.Context, tree *content.Tree, opts CommitOptions) (PK, error) {
	id, err := l.backend.NextID(ctx)
	if err != nil {
		return PK{}, fmt.Errorf("could not allocate instance id: %w", err)
	}
	unlock := l.lock(id)
	defer unlock()
	return l.commit(ctx, newVersionInfo(id, tree.Type().ID), tree, opts, "create")
}

// Commit stores tree as a new version of instance id, one above the
// current max version. Values tree holds as NoAccess are taken from the
// max version.
func (l *Ledger) Commit(ctx context.Context, id int64, tree *content.Tree, opts CommitOptions) (PK, error) {
	unlock := l.lock(id)
	defer unlock()
	info, err := l.readInfo(ctx, id)
	if err != nil {
		return PK{}, err
	}
	return l.commit(ctx, info, tree, opts, "commit")
}

func (l *Ledger) commit(ctx context.Context, info *VersionInfo, tree *content.Tree, opts CommitOptions, op string) (PK, error) {
	start := time.Now()
	if err := l.checkLock(ctx, info.ID); err != nil {
		return PK{}, err
	}
	var prev *content.Tree
	if info.Max > 0 {
		p, err := l.load(ctx, info, info.Max)
		if err != nil {
			return PK{}, err
		}
		prev = p
	}
	t, err := l.prepare(tree, info, prev, opts)
	if err != nil {
		return PK{}, err
	}

	now := l.now()
	v := info.Max + 1
	vd := VersionData{
		Step:       opts.Step,
		CreatedBy:  opts.Cap.UserID(),
		CreatedAt:  now,
		ModifiedBy: opts.Cap.UserID(),
		ModifiedAt: now,
	}
	next := info.Clone()
	next.Versions[v] = vd
	if l.liveSteps[opts.Step] {
		next.setLive(v)
	}
	next.derive()
	if err := l.store(ctx, next, v, t, true); err != nil {
		return PK{}, err
	}
	pk := PK{ID: info.ID, Version: v}
	l.metrics.commits.WithLabelValues(op).Inc()
	l.metrics.versions.Inc()
	l.metrics.commitDuration.Observe(time.Since(start).Seconds())
	l.logger.Debug("stored version", "op", op, "pk", pk.String(), "step", opts.Step, "live", next.Live)
	return pk, nil
}

// Save overwrites the version pk resolves to with tree. Creation data of
// the version is kept. The version is live afterwards exactly when the
// step is a live step.
func (l *Ledger) Save(ctx context.Context, pk PK, tree *content.Tree, opts CommitOptions) error {
	unlock := l.lock(pk.ID)
	defer unlock()
	if err := l.checkLock(ctx, pk.ID); err != nil {
		return err
	}
	info, err := l.readInfo(ctx, pk.ID)
	if err != nil {
		return err
	}
	v, err := info.Resolve(pk)
	if err != nil {
		return err
	}
	prev, err := l.load(ctx, info, v)
	if err != nil {
		return err
	}
	t, err := l.prepare(tree, info, prev, opts)
	if err != nil {
		return err
	}
	next := info.Clone()
	vd := next.Versions[v]
	vd.Step = opts.Step
	vd.ModifiedBy = opts.Cap.UserID()
	vd.ModifiedAt = l.now()
	// the live marker follows the step the version is saved in
	live := l.liveSteps[opts.Step]
	if !live {
		vd.Live = false
	}
	next.Versions[v] = vd
	if live {
		next.setLive(v)
	}
	next.derive()
	if err := l.store(ctx, next, v, t, false); err != nil {
		return err
	}
	l.metrics.commits.WithLabelValues("save").Inc()
	l.logger.Debug("saved version", "pk", PK{ID: pk.ID, Version: v}.String(), "step", opts.Step)
	return nil
}

// prepare returns the tree to store: a copy of tree with hidden values
// restored from prev, checked against the writer's permissions and the
// type constraints.
func (l *Ledger) prepare(tree *content.Tree, info *VersionInfo, prev *content.Tree, opts CommitOptions) (*content.Tree, error) {
	typ := tree.Type()
	if typ.ID != info.TypeID {
		return nil, fmt.Errorf("%w: instance %d has type %d, tree has type %d",
			content.ErrTypeMismatch, info.ID, info.TypeID, typ.ID)
	}
	t := tree.Clone()
	t.RestoreHidden(prev)
	if !opts.Cap.IsSystem() {
		base := prev
		if base == nil {
			b, err := content.Initialize(typ)
			if err != nil {
				return nil, err
			}
			base = b
		}
		if err := checkChanges(opts.Cap, base, t); err != nil {
			return nil, err
		}
	}
	if err := t.Validate().Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func checkChanges(c access.Capability, base, t *content.Tree) error {
	d, err := delta.Process(base, t)
	if err != nil {
		return err
	}
	if debug.Ledger() {
		debug.Logf("permission check for %s over %d changes\n", c, d.Len())
	}
	check := func(cs []delta.Change, p access.Permission) error {
		for i := range cs {
			if cs[i].Internal {
				continue
			}
			if err := access.Check(c, t.Type(), cs[i].Path, p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(d.Updates, access.Edit); err != nil {
		return err
	}
	if err := check(d.Adds, access.Create); err != nil {
		return err
	}
	return check(d.Removes, access.Delete)
}

// store writes the snapshot of t as version v followed by info. A fresh
// snapshot is removed again when info cannot be written.
func (l *Ledger) store(ctx context.Context, info *VersionInfo, v int, t *content.Tree, fresh bool) error {
	vd := info.Versions[v]
	t.SetSystemValues(content.SystemValues{
		ID:         info.ID,
		Version:    v,
		TypeID:     info.TypeID,
		Step:       vd.Step,
		CreatedBy:  vd.CreatedBy,
		CreatedAt:  vd.CreatedAt,
		ModifiedBy: vd.ModifiedBy,
		ModifiedAt: vd.ModifiedAt,
	})
	data, err := t.MarshalSnapshot()
	if err != nil {
		return err
	}
	if err := l.backend.Persist(ctx, info.ID, v, data); err != nil {
		return fmt.Errorf("could not persist %d.%d: %w", info.ID, v, err)
	}
	if err := l.writeInfo(ctx, info); err != nil {
		if fresh {
			if derr := l.backend.Delete(ctx, info.ID, v); derr != nil {
				l.logger.Error("could not roll back snapshot", "id", info.ID, "version", v, "error", derr)
			}
		}
		return fmt.Errorf("could not write version info of %d: %w", info.ID, err)
	}
	return nil
}

// RemoveVersion deletes the version pk resolves to. The last remaining
// version of an instance cannot be removed; use Remove instead.
func (l *Ledger) RemoveVersion(ctx context.Context, pk PK) error {
	unlock := l.lock(pk.ID)
	defer unlock()
	if err := l.checkLock(ctx, pk.ID); err != nil {
		return err
	}
	info, err := l.readInfo(ctx, pk.ID)
	if err != nil {
		return err
	}
	v, err := info.Resolve(pk)
	if err != nil {
		return err
	}
	if len(info.Versions) == 1 {
		return fmt.Errorf("%w: %d.%d", ErrLastVersion, pk.ID, v)
	}
	next := info.Clone()
	delete(next.Versions, v)
	next.derive()
	if err := l.writeInfo(ctx, next); err != nil {
		return err
	}
	if err := l.backend.Delete(ctx, pk.ID, v); err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Warn("could not delete snapshot", "id", pk.ID, "version", v, "error", err)
	}
	l.metrics.removals.Inc()
	l.metrics.versions.Dec()
	l.logger.Debug("removed version", "id", pk.ID, "version", v)
	return nil
}

// Remove deletes every version of instance id.
func (l *Ledger) Remove(ctx context.Context, id int64) error {
	unlock := l.lock(id)
	defer unlock()
	if err := l.checkLock(ctx, id); err != nil {
		return err
	}
	info, err := l.readInfo(ctx, id)
	if err != nil {
		return err
	}
	var errs []error
	for _, v := range info.Sorted() {
		if err := l.backend.Delete(ctx, id, v); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		l.metrics.removals.Inc()
		l.metrics.versions.Dec()
	}
	// the version info goes last so a failed removal can be retried
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := l.backend.DeleteMeta(ctx, id); err != nil {
		return err
	}
	l.logger.Debug("removed instance", "id", id, "versions", len(info.Versions))
	return nil
}

// Load returns the version pk resolves to.
func (l *Ledger) Load(ctx context.Context, pk PK) (*content.Tree, error) {
	info, err := l.readInfo(ctx, pk.ID)
	if err != nil {
		return nil, err
	}
	v, err := info.Resolve(pk)
	if err != nil {
		return nil, err
	}
	t, err := l.load(ctx, info, v)
	if err != nil {
		return nil, err
	}
	if l.locker != nil {
		lctx := context.WithoutCancel(ctx)
		t.Guard(func() (bool, error) {
			return l.locker.IsLocked(lctx, pk.ID)
		})
	}
	return t, nil
}

// LoadView returns the version pk resolves to as seen by c.
func (l *Ledger) LoadView(ctx context.Context, pk PK, c access.Capability) (*content.Tree, error) {
	t, err := l.Load(ctx, pk)
	if err != nil {
		return nil, err
	}
	return access.Apply(t, c), nil
}

func (l *Ledger) load(ctx context.Context, info *VersionInfo, v int) (*content.Tree, error) {
	typ, err := l.types.AssignmentTree(ctx, info.TypeID)
	if err != nil {
		return nil, err
	}
	return l.fetch(ctx, typ, info.ID, v)
}

func (l *Ledger) fetch(ctx context.Context, typ *schema.Type, id int64, v int) (*content.Tree, error) {
	data, err := l.backend.Fetch(ctx, id, v)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: snapshot %d.%d", ErrNotFound, id, v)
	}
	if err != nil {
		return nil, err
	}
	t, err := content.UnmarshalSnapshot(data, typ)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d.%d: %w", id, v, err)
	}
	return t, nil
}

// LoadContainer loads every stored version of instance id.
func (l *Ledger) LoadContainer(ctx context.Context, id int64) (*Container, error) {
	info, err := l.readInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	typ, err := l.types.AssignmentTree(ctx, info.TypeID)
	if err != nil {
		return nil, err
	}
	vs := info.Sorted()
	trees := make([]*content.Tree, len(vs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.fetchLimit, 1))
	for i, v := range vs {
		g.Go(func() error {
			t, err := l.fetch(gctx, typ, id, v)
			if err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c := &Container{ID: id, Info: info, Versions: make(map[int]*content.Tree, len(vs))}
	for i, v := range vs {
		c.Versions[v] = trees[i]
	}
	return c, nil
}
