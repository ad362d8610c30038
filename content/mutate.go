package content

import (
	"fmt"
	"slices"

	"github.com/signadot/tony-format/contentstore/debug"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

// Position places a new node among its parent's children: Bottom, Top or
// At(rank) with a 1-based rank.
type Position int

const (
	Bottom Position = 0
	Top    Position = 1
)

// At returns the position with the given 1-based rank. Ranks beyond the
// last child mean Bottom.
func At(rank int) Position {
	if rank < 1 {
		return Top
	}
	return Position(rank)
}

func (t *Tree) assignmentUnder(pid NodeID, alias string) (*schema.Assignment, error) {
	a := t.typ.Child(t.nodes[pid].asgn, alias)
	if a == nil || !a.Enabled {
		return nil, fmt.Errorf("%w: no assignment %s under %s", ErrNotFound, xpath.NormalizeAlias(alias), t.pathOf(pid))
	}
	return a, nil
}

// CreateNew adds an instance of alias to the group at parent and returns
// its index.
func (t *Tree) CreateNew(parent xpath.Path, alias string, at Position) (int, error) {
	var index int
	err := t.mutate(func(w *Tree) error {
		pid, err := w.resolveKind(parent, GroupKind)
		if err != nil {
			return err
		}
		a, err := w.assignmentUnder(pid, alias)
		if err != nil {
			return err
		}
		n := w.count(pid, a.Alias)
		if !a.Multiplicity.AllowsMore(n) {
			return fmt.Errorf("%w: %s allows %s", ErrMultiplicityExceeded, a.XPath(), a.Multiplicity)
		}
		if w.blockedByOneOf(pid, a.Alias) {
			return fmt.Errorf("%w: %s", ErrGroupModeViolation, a.XPath())
		}
		index = n + 1
		id := w.instantiate(pid, a, index)
		if at != Bottom {
			w.place(pid, id, int(at))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if debug.Mutate() {
		debug.Logf("create %s\n", parent.Append(alias, index))
	}
	return index, nil
}

// place moves child id of pid to the given 1-based rank and renumbers
// the positions of pid's children.
func (t *Tree) place(pid, id NodeID, rank int) {
	cs := t.nodes[pid].children
	i := slices.Index(cs, id)
	cs = slices.Delete(cs, i, i+1)
	rank = min(max(rank, 1), len(cs)+1)
	cs = slices.Insert(cs, rank-1, id)
	t.nodes[pid].children = cs
	t.compact(pid, false)
}

func (t *Tree) compact(gid NodeID, recursive bool) {
	for i, c := range t.nodes[gid].children {
		t.nodes[c].pos = i + 1
		if recursive && t.nodes[c].kind == GroupKind {
			t.compact(c, true)
		}
	}
}

// Remove removes the node at p and closes the index gap among its
// siblings. If the last step of p has no explicit index, all instances of
// its alias are removed.
func (t *Tree) Remove(p xpath.Path) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: cannot remove the root", ErrTypeMismatch)
	}
	err := t.mutate(func(w *Tree) error {
		if p.Last().IndexDefined {
			id, err := w.resolve(p)
			if err != nil {
				return err
			}
			return w.removeNode(id, true)
		}
		pid, err := w.resolveKind(p.Parent(), GroupKind)
		if err != nil {
			return err
		}
		a := w.typ.Child(w.nodes[pid].asgn, p.Last().Alias)
		if a == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		sibs := w.siblings(pid, a.Alias)
		if len(sibs) == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if a.Multiplicity.Min > 0 {
			return fmt.Errorf("%w: %s requires %s", ErrMultiplicityViolated, a.XPath(), a.Multiplicity)
		}
		for _, id := range sibs {
			w.unlink(id)
		}
		return nil
	})
	if err == nil && debug.Mutate() {
		debug.Logf("remove %s\n", p)
	}
	return err
}

func (t *Tree) removeNode(id NodeID, checkMin bool) error {
	n := t.nodes[id]
	if checkMin {
		if c := t.count(n.parent, n.asgn.Alias); c-1 < n.asgn.Multiplicity.Min {
			return fmt.Errorf("%w: %s requires %s", ErrMultiplicityViolated, n.asgn.XPath(), n.asgn.Multiplicity)
		}
	}
	for _, s := range t.siblings(n.parent, n.asgn.Alias) {
		if t.nodes[s].index > n.index {
			t.nodes[s].index--
		}
	}
	t.unlink(id)
	return nil
}

// unlink detaches id from its parent and releases its subtree without
// touching sibling indices.
func (t *Tree) unlink(id NodeID) {
	pid := t.nodes[id].parent
	cs := t.nodes[pid].children
	if i := slices.Index(cs, id); i >= 0 {
		t.nodes[pid].children = slices.Delete(cs, i, i+1)
	}
	t.release(id)
}

// Move places the node at p at the given 1-based rank among all children
// of its parent. Indices are not changed.
func (t *Tree) Move(p xpath.Path, rank int) error {
	return t.mutate(func(w *Tree) error {
		id, err := w.resolveMovable(p)
		if err != nil {
			return err
		}
		w.place(w.nodes[id].parent, id, rank)
		return nil
	})
}

// MoveBy moves the node at p delta ranks down (positive) or up (negative).
func (t *Tree) MoveBy(p xpath.Path, delta int) error {
	return t.mutate(func(w *Tree) error {
		id, err := w.resolveMovable(p)
		if err != nil {
			return err
		}
		pid := w.nodes[id].parent
		rank := slices.Index(w.nodes[pid].children, id) + 1
		w.place(pid, id, rank+delta)
		return nil
	})
}

// MoveIndex moves the node at p delta places within the index order of
// its alias. Positions are not changed.
func (t *Tree) MoveIndex(p xpath.Path, delta int) error {
	return t.mutate(func(w *Tree) error {
		id, err := w.resolveMovable(p)
		if err != nil {
			return err
		}
		n := &w.nodes[id]
		sibs := w.siblings(n.parent, n.asgn.Alias)
		i := n.index - 1
		j := min(max(i+delta, 0), len(sibs)-1)
		sibs = slices.Delete(sibs, i, i+1)
		sibs = slices.Insert(sibs, j, id)
		for k, s := range sibs {
			w.nodes[s].index = k + 1
		}
		return nil
	})
}

func (t *Tree) resolveMovable(p xpath.Path) (NodeID, error) {
	if p.IsRoot() {
		return 0, fmt.Errorf("%w: cannot move the root", ErrTypeMismatch)
	}
	return t.resolve(p)
}

// Explode creates missing child slots throughout the group at p. Without
// autoCreateEmpty every child alias below its maximum gets at least one
// instance; with it, only missing required instances are created.
// Aliases blocked by a populated OneOf alternative are skipped.
func (t *Tree) Explode(p xpath.Path, autoCreateEmpty bool) error {
	return t.mutate(func(w *Tree) error {
		gid, err := w.resolveKind(p, GroupKind)
		if err != nil {
			return err
		}
		w.explode(gid, autoCreateEmpty)
		return nil
	})
}

func (t *Tree) explode(gid NodeID, minOnly bool) {
	for _, a := range t.typ.Children(t.nodes[gid].asgn) {
		if !a.Enabled || a.SystemInternal {
			continue
		}
		target := max(1, a.Multiplicity.Min)
		if minOnly {
			target = a.Multiplicity.Min
		}
		n := t.count(gid, a.Alias)
		if n >= target || t.blockedByOneOf(gid, a.Alias) {
			continue
		}
		for i := n + 1; i <= target; i++ {
			t.instantiate(gid, a, i)
		}
	}
	for _, c := range slices.Clone(t.nodes[gid].children) {
		if t.nodes[c].kind == GroupKind {
			t.explode(c, minOnly)
		}
	}
}

// CompactPositions renumbers the positions of the children of the group at
// p to 1..n, keeping their order.
func (t *Tree) CompactPositions(p xpath.Path, recursive bool) error {
	return t.mutate(func(w *Tree) error {
		gid, err := w.resolveKind(p, GroupKind)
		if err != nil {
			return err
		}
		w.compact(gid, recursive)
		return nil
	})
}

// RemoveEmptyEntries removes empty nodes below from, deepest first. Nodes
// needed to satisfy a minimum are kept and cleared instead. Reserved
// system properties are left alone.
func (t *Tree) RemoveEmptyEntries(from xpath.Path) error {
	return t.mutate(func(w *Tree) error {
		id, err := w.resolve(from)
		if err != nil {
			return err
		}
		if w.nodes[id].kind == PropertyKind {
			if w.isEmpty(id) && !w.nodes[id].asgn.SystemInternal {
				n := w.nodes[id]
				if w.count(n.parent, n.asgn.Alias) > n.asgn.Multiplicity.Min {
					return w.removeNode(id, false)
				}
				w.nodes[id].value = nil
			}
			return nil
		}
		w.removeEmpty(id)
		return nil
	})
}

func (t *Tree) removeEmpty(gid NodeID) {
	for _, c := range slices.Clone(t.nodes[gid].children) {
		if t.nodes[c].kind == GroupKind {
			t.removeEmpty(c)
		}
	}
	for _, a := range t.typ.Children(t.nodes[gid].asgn) {
		if a.SystemInternal {
			continue
		}
		sibs := t.siblings(gid, a.Alias)
		n := len(sibs)
		for i := len(sibs) - 1; i >= 0; i-- {
			id := sibs[i]
			if !t.isEmpty(id) {
				continue
			}
			if n > a.Multiplicity.Min {
				t.removeNode(id, false)
				n--
				continue
			}
			t.clear(id)
		}
	}
}

func (t *Tree) clear(id NodeID) {
	n := &t.nodes[id]
	if n.kind == PropertyKind {
		n.value = nil
		return
	}
	for _, c := range n.children {
		t.clear(c)
	}
}

// CreateableChildren lists the next free slot of every child alias of the
// group at p that is below its maximum, in assignment order. With
// recursive set it descends depth first into existing instances of child
// groups which are themselves below their maximum.
func (t *Tree) CreateableChildren(p xpath.Path, recursive bool) ([]xpath.Path, error) {
	gid, err := t.resolveKind(p, GroupKind)
	if err != nil {
		return nil, err
	}
	var res []xpath.Path
	t.createable(gid, t.pathOf(gid), recursive, &res)
	return res, nil
}

func (t *Tree) createable(gid NodeID, base xpath.Path, recursive bool, res *[]xpath.Path) {
	for _, a := range t.typ.Children(t.nodes[gid].asgn) {
		if !a.Enabled || a.SystemInternal {
			continue
		}
		n := t.count(gid, a.Alias)
		below := a.Multiplicity.AllowsMore(n)
		if below && !t.blockedByOneOf(gid, a.Alias) {
			*res = append(*res, base.Append(a.Alias, n+1))
		}
		if !recursive || !a.Group || !below {
			continue
		}
		for _, c := range t.siblings(gid, a.Alias) {
			t.createable(c, base.Append(a.Alias, t.nodes[c].index), true, res)
		}
	}
}

// CreateableCount returns how many more instances of the alias addressed by
// p may be created under its parent, -1 if unbounded.
func (t *Tree) CreateableCount(p xpath.Path) (int, error) {
	a, n, err := t.aliasCount(p)
	if err != nil {
		return 0, err
	}
	if a.Multiplicity.IsUnbounded() {
		return -1, nil
	}
	return max(a.Multiplicity.Max-n, 0), nil
}

// RemoveableCount returns how many instances of the alias addressed by p
// may be removed without going below its minimum.
func (t *Tree) RemoveableCount(p xpath.Path) (int, error) {
	a, n, err := t.aliasCount(p)
	if err != nil {
		return 0, err
	}
	return max(n-a.Multiplicity.Min, 0), nil
}

func (t *Tree) aliasCount(p xpath.Path) (*schema.Assignment, int, error) {
	if p.IsRoot() {
		return nil, 0, fmt.Errorf("%w: root has no siblings", ErrTypeMismatch)
	}
	pid, err := t.resolveKind(p.Parent(), GroupKind)
	if err != nil {
		return nil, 0, err
	}
	a, err := t.assignmentUnder(pid, p.Last().Alias)
	if err != nil {
		return nil, 0, err
	}
	return a, t.count(pid, a.Alias), nil
}
