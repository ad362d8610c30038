package delta

import (
	"errors"
	"strings"
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

func listType() *schema.Type {
	return schema.NewType(4, "LIST",
		schema.Property("title", schema.String, schema.Required),
		schema.Property("item", schema.String, schema.Any),
		schema.Property("tail", schema.String, schema.Optional),
	)
}

func newTree(t *testing.T, kv ...string) *content.Tree {
	t.Helper()
	return newTreeOf(t, listType(), kv...)
}

func newTreeOf(t *testing.T, typ *schema.Type, kv ...string) *content.Tree {
	t.Helper()
	tree, err := content.Initialize(typ)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(kv); i += 2 {
		p := xpath.MustParse(kv[i])
		if _, err := tree.Resolve(p); errors.Is(err, content.ErrNotFound) {
			last := p.Last()
			if _, err := tree.CreateNew(p.Parent(), last.Alias, content.Bottom); err != nil {
				t.Fatal(err)
			}
		}
		if err := tree.SetValue(p, content.String(kv[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func summary(cs []Change) []string {
	res := make([]string, len(cs))
	for i := range cs {
		res[i] = cs[i].String()
	}
	return res
}

func TestProcessInitialized(t *testing.T) {
	d, err := Process(newTree(t), newTree(t))
	if err != nil {
		t.Fatal(err)
	}
	if d.Changed() || !d.IsOnlyInternalPropertyChanges() || d.IsInternalPropertyChanged() {
		t.Errorf("delta of two initialized trees = %s", d)
	}
	if got := d.String(); got != "===> No changes! <===\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestProcess(t *testing.T) {
	a := newTree(t, "/TITLE", "a", "/ITEM[1]", "x", "/ITEM[2]", "y")
	b := newTree(t, "/TITLE", "b", "/ITEM[1]", "y")
	d, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{
		`/TITLE[1]: update "a" -> "b"`,
		`/ITEM[1]: update "x" -> "y"`,
	}, summary(d.Updates)); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`/ITEM[2]: remove "y"`}, summary(d.Removes)); diff != "" {
		t.Errorf("removes mismatch (-want +got):\n%s", diff)
	}
	if len(d.Adds) != 0 {
		t.Errorf("adds = %v", summary(d.Adds))
	}
	if c := d.Find(xpath.MustParse("/ITEM[2]")); c == nil || c.Kind != Remove || c.OldPos != 4 {
		t.Errorf("Find(/ITEM[2]) = %v", c)
	}
}

func TestSymmetry(t *testing.T) {
	a := newTree(t, "/TITLE", "a", "/ITEM[1]", "x", "/ITEM[2]", "y")
	b := newTree(t, "/TITLE", "b", "/ITEM[1]", "y", "/TAIL", "z")
	ab, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Process(b, a)
	if err != nil {
		t.Fatal(err)
	}
	rev := ab.Reverse()
	for _, pair := range []struct {
		name      string
		got, want []Change
	}{
		{"adds", rev.Adds, ba.Adds},
		{"removes", rev.Removes, ba.Removes},
		{"updates", rev.Updates, ba.Updates},
	} {
		if diff := cmp.Diff(summary(pair.want), summary(pair.got)); diff != "" {
			t.Errorf("reversed %s mismatch (-want +got):\n%s", pair.name, diff)
		}
	}
	if len(ab.Adds) != len(ba.Removes) || len(ab.Removes) != len(ba.Adds) {
		t.Errorf("add/remove counts do not swap: %s\n%s", ab, ba)
	}
}

func TestInternalChanges(t *testing.T) {
	a := newTreeOf(t, listType().WithSystemProperties(), "/TITLE", "a")
	b := a.Clone()
	b.SetSystemValues(content.SystemValues{ID: 1, Version: 2, ModifiedAt: time.Unix(10, 0)})
	d, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Changed() || !d.IsOnlyInternalPropertyChanges() || !d.IsInternalPropertyChanged() {
		t.Errorf("system value delta = %s", d)
	}
	if err := b.SetValue(xpath.MustParse("/TITLE"), content.String("b")); err != nil {
		t.Fatal(err)
	}
	d, _ = Process(a, b)
	if d.IsOnlyInternalPropertyChanges() {
		t.Errorf("user change reported as internal only")
	}
}

func TestHiddenValues(t *testing.T) {
	hideTitle := func(r content.Ref) (bool, bool) { return r.Alias() == "TITLE", false }
	a := newTree(t, "/TITLE", "a").Overlay(hideTitle)
	b := newTree(t, "/TITLE", "b").Overlay(hideTitle)
	d, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if d.Changed() {
		t.Errorf("hidden values compared by content: %s", d)
	}
	c := newTree(t).Overlay(hideTitle)
	d, _ = Process(a, c)
	if len(d.Updates) != 1 {
		t.Errorf("hidden to empty = %s", d)
	}
}

func TestTypeMismatch(t *testing.T) {
	other, err := content.Initialize(schema.NewType(9, "OTHER", schema.Property("x", schema.String, schema.Optional)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Process(newTree(t), other); !errors.Is(err, content.ErrTypeMismatch) {
		t.Errorf("Process() error = %v, want ErrTypeMismatch", err)
	}
}

func TestOrdered(t *testing.T) {
	a := newTree(t, "/TITLE", "t", "/ITEM[1]", "x", "/TAIL", "z")
	b := a.Clone()
	if _, err := b.CreateNew(xpath.Root(), "item", content.At(3)); err != nil {
		t.Fatal(err)
	}
	if err := b.SetValue(xpath.MustParse("/ITEM[2]"), content.String("y")); err != nil {
		t.Fatal(err)
	}
	if err := b.SetValue(xpath.MustParse("/TAIL"), content.String("w")); err != nil {
		t.Fatal(err)
	}
	d, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{
		`/ITEM[2]: add "y"`,
		`/TAIL[1]: update "z" -> "w"`,
	}, summary(d.Ordered())); diff != "" {
		t.Errorf("Ordered() mismatch (-want +got):\n%s", diff)
	}
	if !d.Updates[0].PositionChanged() {
		t.Errorf("tail position change not recorded: %+v", d.Updates[0])
	}
}

func TestDump(t *testing.T) {
	a := newTree(t, "/TITLE", "a", "/ITEM[1]", "x")
	b := newTree(t, "/TITLE", "b", "/ITEM[1]", "x", "/ITEM[2]", "y")
	d, err := Process(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"<=== changes start ===>",
		"Updates:",
		`/TITLE[1]: "a" -> "b"`,
		"Adds:",
		`/ITEM[2]: added at position 4: "y"`,
		"<=== changes end ===>",
		"",
	}, "\n")
	sb := &strings.Builder{}
	if err := d.Dump(sb); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("Dump() mismatch (-want +got):\n%s", diff)
	}
	sb.Reset()
	if err := d.Dump(sb, WithColor(true)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "\x1b[") {
		t.Errorf("colored dump has no escapes: %q", sb.String())
	}
}

func TestMergePatch(t *testing.T) {
	a := newTree(t, "/TITLE", "a", "/ITEM[1]", "x")
	b := newTree(t, "/TITLE", "b", "/ITEM[1]", "x", "/ITEM[2]", "y")
	patch, err := MergePatch(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ja, _ := a.ExportJSON()
	jb, _ := b.ExportJSON()
	applied, err := jsonpatch.MergePatch(ja, patch)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(applied, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(jb, &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patched export mismatch (-want +got):\n%s", diff)
	}
}
