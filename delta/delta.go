// Package delta computes the structural difference of two content trees of
// the same type.
//
// Only properties are reported. Identity is positional: a property at
// /A[2]/B[1] in one tree is compared with the property at the same path in
// the other tree, so reordering instances is seen as updates plus adds or
// removes, never as a move.
package delta

import (
	"fmt"

	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/debug"
	"github.com/signadot/tony-format/contentstore/xpath"
)

type ChangeKind int

const (
	Add ChangeKind = iota
	Remove
	Update
)

func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Update:
		return "update"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is one classified property difference. Old is unset for adds and
// New for removes; likewise OldPos and NewPos are 0 when absent.
type Change struct {
	Kind     ChangeKind
	Path     xpath.Path
	Old, New *content.Value
	OldPos   int
	NewPos   int
	Internal bool
}

// PositionChanged reports whether an update also moved the property.
func (c *Change) PositionChanged() bool {
	return c.Kind == Update && c.OldPos != c.NewPos
}

func (c *Change) String() string {
	switch c.Kind {
	case Add:
		return fmt.Sprintf("%s: add %s", c.Path, c.New)
	case Remove:
		return fmt.Sprintf("%s: remove %s", c.Path, c.Old)
	}
	return fmt.Sprintf("%s: update %s -> %s", c.Path, c.Old, c.New)
}

func (c Change) reverse() Change {
	res := c
	res.Old, res.New = c.New, c.Old
	res.OldPos, res.NewPos = c.NewPos, c.OldPos
	switch c.Kind {
	case Add:
		res.Kind = Remove
	case Remove:
		res.Kind = Add
	}
	return res
}

// Delta holds the changes turning tree A into tree B, each list in the
// document order of the tree the paths come from.
type Delta struct {
	Adds    []Change
	Removes []Change
	Updates []Change

	// property paths of A and B in document order
	from, to []string
}

// Process computes the delta from a to b. It fails with
// content.ErrTypeMismatch unless both trees have the same type.
//
// Hidden values are compared by their hidden state only, so a delta
// between two filtered views never depends on values the caller cannot
// read.
func Process(a, b *content.Tree) (*Delta, error) {
	if a.Type().ID != b.Type().ID {
		return nil, fmt.Errorf("%w: delta between types %s and %s", content.ErrTypeMismatch, a.Type().Name, b.Type().Name)
	}
	from, fromRefs := leaves(a)
	to, toRefs := leaves(b)
	d := &Delta{from: from, to: to}
	for _, k := range from {
		ra := fromRefs[k]
		rb, ok := toRefs[k]
		if !ok {
			d.Removes = append(d.Removes, Change{
				Kind:     Remove,
				Path:     ra.Path(),
				Old:      ra.Value().Clone(),
				OldPos:   ra.Pos(),
				Internal: internal(ra),
			})
			continue
		}
		if ra.Value().Equal(rb.Value()) {
			continue
		}
		d.Updates = append(d.Updates, Change{
			Kind:     Update,
			Path:     ra.Path(),
			Old:      ra.Value().Clone(),
			New:      rb.Value().Clone(),
			OldPos:   ra.Pos(),
			NewPos:   rb.Pos(),
			Internal: internal(ra),
		})
	}
	for _, k := range to {
		if _, ok := fromRefs[k]; ok {
			continue
		}
		rb := toRefs[k]
		d.Adds = append(d.Adds, Change{
			Kind:     Add,
			Path:     rb.Path(),
			New:      rb.Value().Clone(),
			NewPos:   rb.Pos(),
			Internal: internal(rb),
		})
	}
	if debug.Delta() {
		debug.Logf("delta %s: %d adds %d removes %d updates\n", a.Type().Name, len(d.Adds), len(d.Removes), len(d.Updates))
	}
	return d, nil
}

func leaves(t *content.Tree) ([]string, map[string]content.Ref) {
	var order []string
	refs := map[string]content.Ref{}
	t.Walk(func(r content.Ref) bool {
		if r.IsGroup() {
			return true
		}
		k := r.Path().String()
		order = append(order, k)
		refs[k] = r
		return true
	})
	return order, refs
}

func internal(r content.Ref) bool {
	a := r.Assignment()
	return a != nil && a.SystemInternal
}

func (d *Delta) Len() int {
	return len(d.Adds) + len(d.Removes) + len(d.Updates)
}

// Changed reports whether d holds any change.
func (d *Delta) Changed() bool {
	return d.Len() != 0
}

// IsInternalPropertyChanged reports whether any reserved system property
// changed.
func (d *Delta) IsInternalPropertyChanged() bool {
	return d.any(func(c *Change) bool { return c.Internal })
}

// IsOnlyInternalPropertyChanges reports whether every change addresses a
// reserved system property. It holds for an empty delta.
func (d *Delta) IsOnlyInternalPropertyChanges() bool {
	return !d.any(func(c *Change) bool { return !c.Internal })
}

func (d *Delta) any(f func(c *Change) bool) bool {
	for _, cs := range [][]Change{d.Updates, d.Adds, d.Removes} {
		for i := range cs {
			if f(&cs[i]) {
				return true
			}
		}
	}
	return false
}

// Find returns the change at path p, or nil.
func (d *Delta) Find(p xpath.Path) *Change {
	for _, cs := range [][]Change{d.Updates, d.Adds, d.Removes} {
		for i := range cs {
			if cs[i].Path.Equal(p) {
				return &cs[i]
			}
		}
	}
	return nil
}

// Reverse returns the delta from B to A.
func (d *Delta) Reverse() *Delta {
	res := &Delta{from: d.to, to: d.from}
	for _, c := range d.Removes {
		res.Adds = append(res.Adds, c.reverse())
	}
	for _, c := range d.Adds {
		res.Removes = append(res.Removes, c.reverse())
	}
	for _, c := range d.Updates {
		res.Updates = append(res.Updates, c.reverse())
	}
	return res
}
