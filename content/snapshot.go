package content

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/signadot/tony-format/contentstore/schema"
)

type snapshot struct {
	TypeID   int64      `json:"typeId"`
	Type     string     `json:"type"`
	Children []snapNode `json:"children"`
}

type snapNode struct {
	Alias    string     `json:"alias"`
	Index    int        `json:"index"`
	Pos      int        `json:"pos"`
	Value    *string    `json:"value,omitempty"`
	NoAccess bool       `json:"noAccess,omitempty"`
	ReadOnly bool       `json:"readOnly,omitempty"`
	Children []snapNode `json:"children,omitempty"`
}

// MarshalSnapshot encodes t as JSON.
func (t *Tree) MarshalSnapshot() ([]byte, error) {
	s := snapshot{
		TypeID:   t.typ.ID,
		Type:     t.typ.Name,
		Children: t.snapChildren(RootID),
	}
	return json.Marshal(s)
}

func (t *Tree) snapChildren(id NodeID) []snapNode {
	cs := t.nodes[id].children
	res := make([]snapNode, 0, len(cs))
	for _, c := range cs {
		n := &t.nodes[c]
		sn := snapNode{
			Alias:    n.asgn.Alias,
			Index:    n.index,
			Pos:      n.pos,
			ReadOnly: n.readOnly,
		}
		switch {
		case n.kind == GroupKind:
			sn.Children = t.snapChildren(c)
		case n.value != nil && n.value.NoAccess:
			sn.NoAccess = true
		case !n.value.IsEmpty():
			text := n.value.Text()
			sn.Value = &text
		}
		res = append(res, sn)
	}
	return res
}

// SnapshotTypeID returns the type id recorded in an encoded snapshot.
func SnapshotTypeID(data []byte) (int64, error) {
	var s struct {
		TypeID int64 `json:"typeId"`
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return s.TypeID, nil
}

// UnmarshalSnapshot decodes a snapshot of type typ. Snapshots with
// unknown aliases, unparseable values, non-dense indices or counts
// outside an assignment's multiplicity are rejected.
func UnmarshalSnapshot(data []byte, typ *schema.Type) (*Tree, error) {
	if err := typ.Finalize(); err != nil {
		return nil, err
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if s.TypeID != typ.ID {
		return nil, fmt.Errorf("%w: snapshot of type %d, want %d", ErrTypeMismatch, s.TypeID, typ.ID)
	}
	t := newTree(typ)
	if err := t.loadChildren(RootID, s.Children); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) loadChildren(parent NodeID, sns []snapNode) error {
	sorted := make([]snapNode, len(sns))
	copy(sorted, sns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	counts := map[string][]int{}
	for i := range sorted {
		sn := &sorted[i]
		a := t.typ.Child(t.nodes[parent].asgn, sn.Alias)
		if a == nil {
			return fmt.Errorf("%w: unknown alias %s under %s", ErrCorruptSnapshot, sn.Alias, t.pathOf(parent))
		}
		if i > 0 && sn.Pos == sorted[i-1].Pos {
			return fmt.Errorf("%w: duplicate position %d under %s", ErrCorruptSnapshot, sn.Pos, t.pathOf(parent))
		}
		counts[a.Alias] = append(counts[a.Alias], sn.Index)
		kind := PropertyKind
		if a.Group {
			kind = GroupKind
		}
		n := node{kind: kind, asgn: a, index: sn.Index, pos: sn.Pos, parent: parent, readOnly: sn.ReadOnly}
		switch {
		case a.Group:
		case sn.NoAccess:
			n.value = hidden(a.DataType)
		case sn.Value != nil:
			v, err := ParseValue(a.DataType, *sn.Value)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
			}
			n.value = v
		}
		id := t.alloc(n)
		t.nodes[parent].children = append(t.nodes[parent].children, id)
		if a.Group {
			if err := t.loadChildren(id, sn.Children); err != nil {
				return err
			}
		}
	}
	if t.oneOfViolated(parent) {
		return fmt.Errorf("%w: %s populates more than one of its alternatives %v",
			ErrCorruptSnapshot, t.pathOf(parent), t.populatedAliases(parent))
	}
	for alias, idxs := range counts {
		sort.Ints(idxs)
		for i, idx := range idxs {
			if idx != i+1 {
				return fmt.Errorf("%w: indices of %s under %s are not dense", ErrCorruptSnapshot, alias, t.pathOf(parent))
			}
		}
		a := t.typ.Child(t.nodes[parent].asgn, alias)
		if !a.Multiplicity.IsUnbounded() && len(idxs) > a.Multiplicity.Max {
			return fmt.Errorf("%w: %d instances of %s exceed %s", ErrCorruptSnapshot, len(idxs), a.XPath(), a.Multiplicity)
		}
	}
	return nil
}

// ExportJSON encodes the values of t as nested objects keyed by alias.
// Every alias maps to an array of its instances in index order; groups are
// objects and empty properties null. Hidden values are omitted.
func (t *Tree) ExportJSON() ([]byte, error) {
	return json.Marshal(t.export(RootID))
}

func (t *Tree) export(gid NodeID) map[string]any {
	res := map[string]any{}
	for _, a := range t.typ.Children(t.nodes[gid].asgn) {
		sibs := t.siblings(gid, a.Alias)
		if len(sibs) == 0 {
			continue
		}
		vals := make([]any, 0, len(sibs))
		for _, id := range sibs {
			n := &t.nodes[id]
			switch {
			case n.kind == GroupKind:
				vals = append(vals, t.export(id))
			case n.value != nil && n.value.NoAccess:
				continue
			case n.value.IsEmpty():
				vals = append(vals, nil)
			default:
				vals = append(vals, n.value.Native())
			}
		}
		res[a.Alias] = vals
	}
	return res
}
