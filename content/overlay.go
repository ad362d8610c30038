package content

import (
	"time"

	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

// Overlay returns a copy of t filtered by f. Properties for which f
// reports hide get their non-empty value replaced by a NoAccess value;
// properties reported readOnly reject SetValue.
func (t *Tree) Overlay(f func(r Ref) (hide, readOnly bool)) *Tree {
	res := t.Clone()
	res.Walk(func(r Ref) bool {
		if r.IsGroup() {
			return true
		}
		hide, ro := f(r)
		n := &res.nodes[r.id]
		if hide && !n.value.IsEmpty() {
			n.value = hidden(n.asgn.DataType)
		}
		n.readOnly = n.readOnly || ro || hide
		return true
	})
	return res
}

// RestoreHidden replaces NoAccess values in t by the values found at the
// same paths in from and drops read-only marks. Hidden values without a
// counterpart in from are cleared.
func (t *Tree) RestoreHidden(from *Tree) {
	t.Walk(func(r Ref) bool {
		n := &t.nodes[r.id]
		n.readOnly = false
		if n.kind != PropertyKind || n.value == nil || !n.value.NoAccess {
			return true
		}
		n.value = nil
		if from == nil {
			return true
		}
		if fid, err := from.resolveKind(r.Path(), PropertyKind); err == nil {
			if fv := from.nodes[fid].value; fv != nil && !fv.NoAccess {
				n.value = fv.Clone()
			}
		}
		return true
	})
}

// HasHidden reports whether any property of t holds a NoAccess value.
func (t *Tree) HasHidden() bool {
	found := false
	t.Walk(func(r Ref) bool {
		if v := r.Value(); v != nil && v.NoAccess {
			found = true
		}
		return !found
	})
	return found
}

// SystemValues are the values of the reserved root properties.
type SystemValues struct {
	ID         int64
	Version    int
	TypeID     int64
	Step       int64
	CreatedBy  int64
	CreatedAt  time.Time
	ModifiedBy int64
	ModifiedAt time.Time
}

// SetSystemValues fills the reserved root properties present in t's type.
// It bypasses locks and access marks.
func (t *Tree) SetSystemValues(sv SystemValues) {
	set := func(alias string, v *Value) {
		id, ok := t.child(RootID, alias, 1)
		if !ok || !t.nodes[id].asgn.SystemInternal {
			return
		}
		v.Type = t.nodes[id].asgn.DataType
		t.nodes[id].value = v
	}
	set(schema.AliasID, Int(sv.ID))
	set(schema.AliasVersion, Int(int64(sv.Version)))
	set(schema.AliasTypeDef, Int(sv.TypeID))
	set(schema.AliasStep, Int(sv.Step))
	set(schema.AliasCreatedBy, Int(sv.CreatedBy))
	set(schema.AliasCreatedAt, Time(sv.CreatedAt))
	set(schema.AliasModifiedBy, Int(sv.ModifiedBy))
	set(schema.AliasModifiedAt, Time(sv.ModifiedAt))
}

// IsSystemPath reports whether p addresses a reserved root property.
func (t *Tree) IsSystemPath(p xpath.Path) bool {
	a := t.typ.LookupPath(p)
	return a != nil && a.SystemInternal
}
