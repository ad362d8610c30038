package content

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/signadot/tony-format/contentstore/schema"
)

func valuesType() *schema.Type {
	return schema.NewType(5, "VALS",
		schema.Property("name", schema.String, schema.Required),
		schema.Property("count", schema.Number, schema.Optional),
		schema.Property("ratio", schema.Float, schema.Optional),
		schema.Property("flag", schema.Bool, schema.Optional),
		schema.Property("when", schema.Date, schema.Optional),
		schema.Group("sub", schema.Any,
			schema.Property("v", schema.String, schema.Any),
		),
	).WithSystemProperties()
}

func TestSnapshotRoundTrip(t *testing.T) {
	typ := valuesType()
	tree := mustInit(t, typ)
	mustSet(t, tree, "/NAME", String("n"))
	mustSet(t, tree, "/COUNT", Int(-12))
	mustSet(t, tree, "/RATIO", Float(0.125))
	mustSet(t, tree, "/FLAG", Bool(false))
	mustSet(t, tree, "/WHEN", Time(time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)))
	if _, err := tree.CreateNew(p("/SUB"), "v", Top); err != nil {
		t.Fatal(err)
	}
	mustSet(t, tree, "/SUB/V[2]", String("second"))
	tree.SetSystemValues(SystemValues{ID: 9, Version: 2, TypeID: typ.ID, CreatedAt: time.Unix(100, 0).UTC()})

	data, err := tree.MarshalSnapshot()
	if err != nil {
		t.Fatalf("MarshalSnapshot() error = %v", err)
	}
	if id, err := SnapshotTypeID(data); err != nil || id != 5 {
		t.Errorf("SnapshotTypeID() = %d, %v", id, err)
	}
	back, err := UnmarshalSnapshot(data, typ)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot() error = %v", err)
	}
	if !Equal(tree, back) {
		t.Errorf("round trip differs:\n%s\n%s", data, mustMarshal(t, back))
	}
	if got := mustGet(t, back, "/VERSION"); !got.Equal(Int(2)) {
		t.Errorf("/VERSION = %v", got)
	}
}

func mustMarshal(t *testing.T, tree *Tree) []byte {
	t.Helper()
	data, err := tree.MarshalSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestUnmarshalSnapshotErrors(t *testing.T) {
	typ := valuesType()
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{`, ErrCorruptSnapshot},
		{"wrong type", `{"typeId": 4, "children": []}`, ErrTypeMismatch},
		{"unknown alias", `{"typeId": 5, "children": [{"alias": "NOPE", "index": 1, "pos": 1}]}`, ErrCorruptSnapshot},
		{"index gap", `{"typeId": 5, "children": [{"alias": "SUB", "index": 2, "pos": 1}]}`, ErrCorruptSnapshot},
		{"too many", `{"typeId": 5, "children": [{"alias": "NAME", "index": 1, "pos": 1}, {"alias": "NAME", "index": 2, "pos": 2}]}`, ErrCorruptSnapshot},
		{"bad value", `{"typeId": 5, "children": [{"alias": "COUNT", "index": 1, "pos": 1, "value": "x"}]}`, ErrCorruptSnapshot},
		{"duplicate pos", `{"typeId": 5, "children": [{"alias": "NAME", "index": 1, "pos": 1}, {"alias": "FLAG", "index": 1, "pos": 1}]}`, ErrCorruptSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalSnapshot([]byte(tt.data), typ); !errors.Is(err, tt.want) {
				t.Errorf("UnmarshalSnapshot() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnmarshalSnapshotOneOf(t *testing.T) {
	const both = `{"typeId": 2, "children": [{"alias": "CHOICE", "index": 1, "pos": 1, "children": [
		{"alias": "A", "index": 1, "pos": 1, "children": [{"alias": "X", "index": 1, "pos": 1, "value": "x"}]},
		{"alias": "B", "index": 1, "pos": 2, "children": [{"alias": "Y", "index": 1, "pos": 1, "value": "y"}]}]}]}`
	if _, err := UnmarshalSnapshot([]byte(both), docType()); !errors.Is(err, ErrCorruptSnapshot) {
		t.Errorf("UnmarshalSnapshot(both alternatives) error = %v, want ErrCorruptSnapshot", err)
	}

	const oneWithEmptyOther = `{"typeId": 2, "children": [{"alias": "CHOICE", "index": 1, "pos": 1, "children": [
		{"alias": "A", "index": 1, "pos": 1, "children": [{"alias": "X", "index": 1, "pos": 1, "value": "x"}]},
		{"alias": "B", "index": 1, "pos": 2, "children": [{"alias": "Y", "index": 1, "pos": 1}]}]}]}`
	tree, err := UnmarshalSnapshot([]byte(oneWithEmptyOther), docType())
	if err != nil {
		t.Fatalf("UnmarshalSnapshot(one alternative) error = %v", err)
	}
	if err := tree.SetValue(p("/CHOICE/B/Y"), String("y")); !errors.Is(err, ErrGroupModeViolation) {
		t.Errorf("SetValue(/CHOICE/B/Y) error = %v, want ErrGroupModeViolation", err)
	}
}

func TestExportJSON(t *testing.T) {
	tree := mustInit(t, testGroupType())
	mustSet(t, tree, "/TESTGROUP/PROPB", String("b"))
	data, err := tree.ExportJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"TESTGROUP": []any{
			map[string]any{"PROPA": []any{nil}, "PROPB": []any{"b"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExportJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestOverlay(t *testing.T) {
	tree := mustInit(t, docType())
	mustSet(t, tree, "/TITLE", String("secret"))
	mustSet(t, tree, "/SECTION/BODY", String("b"))

	view := tree.Overlay(func(r Ref) (bool, bool) {
		switch r.Alias() {
		case "TITLE":
			return true, false
		case "BODY":
			return false, true
		}
		return false, false
	})
	v := mustGet(t, view, "/TITLE")
	if !v.NoAccess || v.Str != "" {
		t.Errorf("hidden title = %#v", v)
	}
	if !view.HasHidden() || tree.HasHidden() {
		t.Errorf("HasHidden wrong")
	}
	if err := view.SetValue(p("/TITLE"), String("x")); !errors.Is(err, ErrNoAccess) {
		t.Errorf("SetValue(hidden) error = %v, want ErrNoAccess", err)
	}
	if err := view.SetValue(p("/SECTION/BODY"), String("x")); !errors.Is(err, ErrNoAccess) {
		t.Errorf("SetValue(read only) error = %v, want ErrNoAccess", err)
	}
	mustSet(t, view, "/SECTION/HEADING", String("h"))

	view.RestoreHidden(tree)
	if got := mustGet(t, view, "/TITLE"); !got.Equal(String("secret")) {
		t.Errorf("restored title = %v", got)
	}
	mustSet(t, view, "/SECTION/BODY", String("x"))
	// the source is untouched
	if got := mustGet(t, tree, "/SECTION/HEADING"); !got.Equal(String("untitled")) {
		t.Errorf("source heading = %v", got)
	}
}
