package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signadot/tony-format/contentstore/access"
	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/storage/fsstore"
	"github.com/signadot/tony-format/contentstore/storage/memstore"
	"github.com/signadot/tony-format/contentstore/xpath"
)

var sys = CommitOptions{Cap: access.System()}

func noteType() *schema.Type {
	return schema.NewType(7, "NOTE",
		schema.Property("title", schema.String, schema.Required),
		schema.Property("body", schema.Text, schema.Optional),
		schema.Property("secret", schema.String, schema.Optional),
		schema.Group("tag", schema.Any,
			schema.Property("name", schema.String, schema.Required),
		).WithDefaultMultiplicity(0),
	).WithSystemProperties()
}

type fixture struct {
	typ    *schema.Type
	ledger *Ledger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := schema.NewRegistry()
	typ := noteType()
	if err := reg.Register(typ); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return &fixture{typ: typ, ledger: New(memstore.New(), reg, opts...)}
}

func (f *fixture) note(t *testing.T, kv ...string) *content.Tree {
	t.Helper()
	tree, err := content.Initialize(f.typ)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if err := tree.SetValue(xpath.MustParse(kv[i]), content.String(kv[i+1])); err != nil {
			t.Fatalf("SetValue(%s) error = %v", kv[i], err)
		}
	}
	return tree
}

func (f *fixture) create(t *testing.T, kv ...string) PK {
	t.Helper()
	pk, err := f.ledger.Create(context.Background(), f.note(t, kv...), sys)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return pk
}

func (f *fixture) commit(t *testing.T, id int64, kv ...string) PK {
	t.Helper()
	pk, err := f.ledger.Commit(context.Background(), id, f.note(t, kv...), sys)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return pk
}

func (f *fixture) value(t *testing.T, pk PK, path string) string {
	t.Helper()
	tree, err := f.ledger.Load(context.Background(), pk)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", pk, err)
	}
	v, err := tree.GetValue(xpath.MustParse(path))
	if err != nil {
		t.Fatalf("GetValue(%s) error = %v", path, err)
	}
	return v.Text()
}

func TestCreateCommitLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "one")
	if pk.ID != 1 || pk.Version != 1 {
		t.Fatalf("Create() = %s, want 1.1", pk)
	}
	pk2 := f.commit(t, pk.ID, "/TITLE", "two")
	if pk2.Version != 2 {
		t.Fatalf("Commit() = %s, want 1.2", pk2)
	}
	if got := f.value(t, PK{1, 1}, "/TITLE"); got != "one" {
		t.Errorf("version 1 title = %q", got)
	}
	if got := f.value(t, PK{1, MaxVersion}, "/TITLE"); got != "two" {
		t.Errorf("max title = %q", got)
	}
	if got := f.value(t, pk2, "/VERSION"); got != "2" {
		t.Errorf("VERSION = %q, want 2", got)
	}
	if got := f.value(t, pk2, "/ID"); got != "1" {
		t.Errorf("ID = %q, want 1", got)
	}

	_, err := f.ledger.Load(ctx, PK{1, 9})
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Load(1.9) error = %v, want not found", err)
	}
	_, err = f.ledger.Commit(ctx, 42, f.note(t, "/TITLE", "x"), sys)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Commit(42) error = %v, want ErrNotFound", err)
	}
}

func TestCommitValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Create(context.Background(), f.note(t), sys)
	if !errors.Is(err, content.ErrValidationFailed) {
		t.Fatalf("Create() error = %v, want validation failure", err)
	}
	if _, err := f.ledger.VersionInfo(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("VersionInfo(1) error = %v, want not found", err)
	}
}

func linkType() *schema.Type {
	return schema.NewType(11, "LINKED",
		schema.Property("title", schema.String, schema.Required),
		schema.Group("kind", schema.Optional,
			schema.Group("link", schema.Optional, schema.Property("url", schema.String, schema.Optional)),
			schema.Group("file", schema.Optional, schema.Property("name", schema.String, schema.Optional)),
		).WithMode(schema.OneOf),
	)
}

func TestStoredOneOfConflictRejected(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	typ := linkType()
	if err := reg.Register(typ); err != nil {
		t.Fatal(err)
	}
	backend := memstore.New()
	l := New(backend, reg)

	tree, err := content.Initialize(typ)
	if err != nil {
		t.Fatal(err)
	}
	for path, v := range map[string]string{"/TITLE": "t", "/KIND/LINK/URL": "http://x"} {
		if err := tree.SetValue(xpath.MustParse(path), content.String(v)); err != nil {
			t.Fatalf("SetValue(%s) error = %v", path, err)
		}
	}
	pk, err := l.Create(ctx, tree, sys)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const both = `{"typeId": 11, "type": "LINKED", "children": [
		{"alias": "TITLE", "index": 1, "pos": 1, "value": "t"},
		{"alias": "KIND", "index": 1, "pos": 2, "children": [
			{"alias": "LINK", "index": 1, "pos": 1, "children": [{"alias": "URL", "index": 1, "pos": 1, "value": "http://x"}]},
			{"alias": "FILE", "index": 1, "pos": 2, "children": [{"alias": "NAME", "index": 1, "pos": 1, "value": "x.txt"}]}]}]}`
	if err := backend.Persist(ctx, pk.ID, pk.Version, []byte(both)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(ctx, pk); !errors.Is(err, content.ErrCorruptSnapshot) {
		t.Errorf("Load() error = %v, want ErrCorruptSnapshot", err)
	}
	if _, err := l.Commit(ctx, pk.ID, tree, sys); !errors.Is(err, content.ErrCorruptSnapshot) {
		t.Errorf("Commit() over conflicting version error = %v, want ErrCorruptSnapshot", err)
	}
}

func TestCommitTypeMismatch(t *testing.T) {
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "one")
	other := schema.NewType(8, "OTHER", schema.Property("x", schema.String, schema.Optional))
	tree, err := content.Initialize(other)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.ledger.Commit(context.Background(), pk.ID, tree, sys)
	if !errors.Is(err, content.ErrTypeMismatch) {
		t.Errorf("Commit() error = %v, want type mismatch", err)
	}
}

func TestRemoveVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "v1")
	f.commit(t, pk.ID, "/TITLE", "v2")
	f.commit(t, pk.ID, "/TITLE", "v3")

	if err := f.ledger.RemoveVersion(ctx, PK{pk.ID, 2}); err != nil {
		t.Fatalf("RemoveVersion(2) error = %v", err)
	}
	info, err := f.ledger.VersionInfo(ctx, pk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if info.Min != 1 || info.Max != 3 || len(info.Versions) != 2 {
		t.Errorf("after removing 2: %s", info)
	}

	if err := f.ledger.RemoveVersion(ctx, PK{pk.ID, MaxVersion}); err != nil {
		t.Fatalf("RemoveVersion(MAX) error = %v", err)
	}
	info, _ = f.ledger.VersionInfo(ctx, pk.ID)
	if info.Max != 1 {
		t.Errorf("after removing max: %s", info)
	}
	if _, err := f.ledger.Load(ctx, PK{pk.ID, 3}); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Load(3) error = %v, want not found", err)
	}

	err = f.ledger.RemoveVersion(ctx, PK{pk.ID, 1})
	if !errors.Is(err, ErrLastVersion) {
		t.Errorf("RemoveVersion(last) error = %v, want ErrLastVersion", err)
	}

	if err := f.ledger.Remove(ctx, pk.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := f.ledger.VersionInfo(ctx, pk.ID); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("VersionInfo() after Remove error = %v", err)
	}
}

func TestRemoveLeavesNoInstanceDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := fsstore.Open(root, 022, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()
	reg := schema.NewRegistry()
	typ := noteType()
	if err := reg.Register(typ); err != nil {
		t.Fatal(err)
	}
	f := &fixture{typ: typ, ledger: New(store, reg)}
	pk := f.create(t, "/TITLE", "v1")
	f.commit(t, pk.ID, "/TITLE", "v2")

	if err := f.ledger.Remove(ctx, pk.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	dir := filepath.Join(root, "instances", fsstore.FormatLexInt(pk.ID))
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("instance directory %s still present after Remove: %v", dir, err)
	}
	if _, err := f.ledger.VersionInfo(ctx, pk.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("VersionInfo() after Remove error = %v", err)
	}
}

func TestConcurrentCommits(t *testing.T) {
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "base")

	const n = 10
	var (
		mu   sync.Mutex
		got  []int
		wg   sync.WaitGroup
		errs = make(chan error, n)
	)
	trees := make([]*content.Tree, n)
	for i := range trees {
		trees[i] = f.note(t, "/TITLE", "concurrent")
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.ledger.Commit(context.Background(), pk.ID, trees[i], sys)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			got = append(got, res.Version)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Commit() error = %v", err)
	}
	slices.Sort(got)
	for i, v := range got {
		if v != i+2 {
			t.Fatalf("versions = %v, want 2..%d", got, n+1)
		}
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	var locked atomic.Bool
	f := newFixture(t, WithLocker(LockerFunc(func(_ context.Context, id int64) (bool, error) {
		return locked.Load(), nil
	})))
	pk := f.create(t, "/TITLE", "one")

	tree, err := f.ledger.Load(ctx, pk)
	if err != nil {
		t.Fatal(err)
	}
	locked.Store(true)
	if _, err := f.ledger.Commit(ctx, pk.ID, f.note(t, "/TITLE", "two"), sys); !errors.Is(err, content.ErrLocked) {
		t.Errorf("Commit() error = %v, want ErrLocked", err)
	}
	if err := f.ledger.RemoveVersion(ctx, pk); !errors.Is(err, content.ErrLocked) {
		t.Errorf("RemoveVersion() error = %v, want ErrLocked", err)
	}
	if err := tree.SetValue(xpath.MustParse("/TITLE"), content.String("x")); !errors.Is(err, content.ErrLocked) {
		t.Errorf("SetValue() on loaded tree error = %v, want ErrLocked", err)
	}
	locked.Store(false)
	if err := tree.SetValue(xpath.MustParse("/TITLE"), content.String("x")); err != nil {
		t.Errorf("SetValue() after unlock error = %v", err)
	}
}

func TestLiveSteps(t *testing.T) {
	ctx := context.Background()
	const published = 3
	f := newFixture(t, WithLiveSteps(published))
	pk := f.create(t, "/TITLE", "draft")
	info, _ := f.ledger.VersionInfo(ctx, pk.ID)
	if info.HasLive() {
		t.Fatalf("new instance has live version %d", info.Live)
	}

	pub := CommitOptions{Step: published, Cap: access.System()}
	if _, err := f.ledger.Commit(ctx, pk.ID, f.note(t, "/TITLE", "published"), pub); err != nil {
		t.Fatal(err)
	}
	f.commit(t, pk.ID, "/TITLE", "next draft")

	info, _ = f.ledger.VersionInfo(ctx, pk.ID)
	if info.Live != 2 || info.Max != 3 {
		t.Errorf("info = %s, want live 2 max 3", info)
	}
	if got := f.value(t, PK{pk.ID, LiveVersion}, "/TITLE"); got != "published" {
		t.Errorf("live title = %q", got)
	}
	if got := f.value(t, PK{pk.ID, LiveVersion}, "/STEP"); got != "3" {
		t.Errorf("live STEP = %q", got)
	}

	if err := f.ledger.RemoveVersion(ctx, PK{pk.ID, LiveVersion}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Load(ctx, PK{pk.ID, LiveVersion}); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Load(LIVE) after removal error = %v", err)
	}
}

func TestSaveMovesLiveMarker(t *testing.T) {
	ctx := context.Background()
	const published = 3
	f := newFixture(t, WithLiveSteps(published))
	pk := f.create(t, "/TITLE", "draft")
	pub := CommitOptions{Step: published, Cap: access.System()}
	if _, err := f.ledger.Commit(ctx, pk.ID, f.note(t, "/TITLE", "published"), pub); err != nil {
		t.Fatal(err)
	}

	draft := CommitOptions{Step: 1, Cap: access.System()}
	if err := f.ledger.Save(ctx, PK{pk.ID, 2}, f.note(t, "/TITLE", "withdrawn"), draft); err != nil {
		t.Fatalf("Save(draft step) error = %v", err)
	}
	info, _ := f.ledger.VersionInfo(ctx, pk.ID)
	if info.HasLive() || info.Versions[2].Live {
		t.Errorf("info = %s, want no live version after saving with a draft step", info)
	}
	if _, err := f.ledger.Load(ctx, PK{pk.ID, LiveVersion}); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Load(LIVE) error = %v, want not found", err)
	}

	if err := f.ledger.Save(ctx, PK{pk.ID, 2}, f.note(t, "/TITLE", "republished"), pub); err != nil {
		t.Fatalf("Save(live step) error = %v", err)
	}
	info, _ = f.ledger.VersionInfo(ctx, pk.ID)
	if info.Live != 2 {
		t.Errorf("info = %s, want live 2", info)
	}
	if got := f.value(t, PK{pk.ID, LiveVersion}, "/TITLE"); got != "republished" {
		t.Errorf("live title = %q", got)
	}
}

func TestSaveKeepsCreation(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	clock := func() time.Time {
		return t0.Add(time.Duration(tick.Add(1)) * time.Minute)
	}
	f := newFixture(t, WithClock(clock))
	pk := f.create(t, "/TITLE", "one")

	opts := CommitOptions{Step: 2, Cap: access.User(5, access.PermissionSet{Default: access.All})}
	if err := f.ledger.Save(ctx, pk, f.note(t, "/TITLE", "edited"), opts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, _ := f.ledger.VersionInfo(ctx, pk.ID)
	if len(info.Versions) != 1 {
		t.Fatalf("Save() added a version: %s", info)
	}
	vd := info.Versions[1]
	if !vd.CreatedAt.Equal(t0.Add(time.Minute)) || vd.CreatedBy != 0 {
		t.Errorf("creation data changed: %+v", vd)
	}
	if !vd.ModifiedAt.Equal(t0.Add(2*time.Minute)) || vd.ModifiedBy != 5 || vd.Step != 2 {
		t.Errorf("modification data = %+v", vd)
	}

	tree, err := f.ledger.Load(ctx, pk)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := tree.GetValue(xpath.MustParse("/MODIFIED_AT"))
	if !v.Time.Equal(vd.ModifiedAt) {
		t.Errorf("MODIFIED_AT = %v, want %v", v.Time, vd.ModifiedAt)
	}
	if got := f.value(t, pk, "/TITLE"); got != "edited" {
		t.Errorf("title = %q", got)
	}
}

func TestHiddenValuesSurviveCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "one", "/SECRET", "s3cr3t")

	secret := f.typ.Lookup("/SECRET")
	user := access.User(9, access.PermissionSet{
		Default:      access.All,
		ByAssignment: map[int64]access.Permission{secret.ID: access.None},
	})
	view, err := f.ledger.LoadView(ctx, pk, user)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := view.GetValue(xpath.MustParse("/SECRET")); !v.NoAccess {
		t.Fatalf("secret visible in view: %v", v)
	}
	if err := view.SetValue(xpath.MustParse("/TITLE"), content.String("two")); err != nil {
		t.Fatal(err)
	}
	pk2, err := f.ledger.Commit(ctx, pk.ID, view, CommitOptions{Cap: user})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := f.value(t, pk2, "/SECRET"); got != "s3cr3t" {
		t.Errorf("secret = %q after commit through view", got)
	}
	if got := f.value(t, pk2, "/TITLE"); got != "two" {
		t.Errorf("title = %q", got)
	}
	if got := f.value(t, pk2, "/MODIFIED_BY"); got != "9" {
		t.Errorf("MODIFIED_BY = %q", got)
	}
}

func TestPermissionDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pk := f.create(t, "/TITLE", "one")

	reader := access.User(3, access.PermissionSet{Default: access.Read})
	tree, err := f.ledger.Load(ctx, pk)
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.SetValue(xpath.MustParse("/TITLE"), content.String("two")); err != nil {
		t.Fatal(err)
	}
	_, err = f.ledger.Commit(ctx, pk.ID, tree, CommitOptions{Cap: reader})
	if !errors.Is(err, content.ErrNoAccess) {
		t.Errorf("Commit() error = %v, want ErrNoAccess", err)
	}

	unchanged, err := f.ledger.Load(ctx, pk)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Commit(ctx, pk.ID, unchanged, CommitOptions{Cap: reader}); err != nil {
		t.Errorf("Commit() without changes error = %v", err)
	}

	tagger := access.User(4, access.PermissionSet{Default: access.Read | access.Edit})
	tagged, _ := f.ledger.Load(ctx, pk)
	if _, err := tagged.CreateNew(xpath.Root(), "TAG", content.Bottom); err != nil {
		t.Fatal(err)
	}
	if err := tagged.SetValue(xpath.MustParse("/TAG[1]/NAME"), content.String("x")); err != nil {
		t.Fatal(err)
	}
	_, err = f.ledger.Commit(ctx, pk.ID, tagged, CommitOptions{Cap: tagger})
	if !errors.Is(err, content.ErrNoAccess) {
		t.Errorf("Commit() adding without create error = %v, want ErrNoAccess", err)
	}
}

func TestLoadContainer(t *testing.T) {
	f := newFixture(t, WithFetchConcurrency(2))
	pk := f.create(t, "/TITLE", "a")
	f.commit(t, pk.ID, "/TITLE", "a")
	f.commit(t, pk.ID, "/TITLE", "b")

	c, err := f.ledger.LoadContainer(context.Background(), pk.ID)
	if err != nil {
		t.Fatalf("LoadContainer() error = %v", err)
	}
	if len(c.Versions) != 3 {
		t.Fatalf("container has %d versions", len(c.Versions))
	}
	if !c.Equal(1, 2) {
		t.Errorf("Equal(1, 2) = false")
	}
	if c.Equal(2, 3) {
		t.Errorf("Equal(2, 3) = true")
	}
	if c.Equal(1, 4) {
		t.Errorf("Equal(1, 4) = true for a missing version")
	}
	if c.Live() != nil {
		t.Errorf("Live() != nil without live version")
	}
	if v, _ := c.Latest().GetValue(xpath.MustParse("/TITLE")); v.Text() != "b" {
		t.Errorf("Latest() title = %v", v)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithRegisterer(reg))
	pk := f.create(t, "/TITLE", "a")
	f.commit(t, pk.ID, "/TITLE", "b")
	if err := f.ledger.RemoveVersion(context.Background(), pk); err != nil {
		t.Fatal(err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	want := map[string]float64{
		"contentstore_ledger_commits_total":          2,
		"contentstore_ledger_version_removals_total": 1,
		"contentstore_ledger_stored_versions":        1,
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s = %v, want %v", name, got[name], w)
		}
	}
}
