package content

import (
	"fmt"
	"slices"

	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

// Detached is a copy of a subtree which can be grafted into another tree
// with ReplaceChild.
type Detached struct {
	t  *Tree
	id NodeID
}

// XPath returns the index-free assignment path of the detached node.
func (d *Detached) XPath() string {
	return d.t.nodes[d.id].asgn.XPath()
}

func (d *Detached) IsEmpty() bool {
	return d.t.isEmpty(d.id)
}

// Detach copies the subtree at p. t is not modified.
func (t *Tree) Detach(p xpath.Path) (*Detached, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("%w: cannot detach the root", ErrTypeMismatch)
	}
	id, err := t.resolve(p)
	if err != nil {
		return nil, err
	}
	d := newTree(t.typ)
	did, err := copySubtree(d, RootID, t, id, func(a *schema.Assignment) (*schema.Assignment, error) {
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return &Detached{t: d, id: did}, nil
}

// copySubtree copies node sid of src under parent in dst, appending it to
// parent's children. rebind maps src assignments to dst assignments.
func copySubtree(dst *Tree, parent NodeID, src *Tree, sid NodeID, rebind func(*schema.Assignment) (*schema.Assignment, error)) (NodeID, error) {
	sn := src.nodes[sid]
	a, err := rebind(sn.asgn)
	if err != nil {
		return 0, err
	}
	id := dst.alloc(node{
		kind:     sn.kind,
		asgn:     a,
		index:    sn.index,
		pos:      sn.pos,
		parent:   parent,
		value:    sn.value.Clone(),
		readOnly: sn.readOnly,
	})
	dst.nodes[parent].children = append(dst.nodes[parent].children, id)
	for _, c := range sn.children {
		if _, err := copySubtree(dst, id, src, c, rebind); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// ReplaceChild replaces the node at p with a copy of d. The copy takes
// over the index and position of the replaced node. d must instantiate the
// same assignment path as the node at p.
func (t *Tree) ReplaceChild(p xpath.Path, d *Detached) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: cannot replace the root", ErrTypeMismatch)
	}
	return t.mutate(func(w *Tree) error {
		tid, err := w.resolve(p)
		if err != nil {
			return err
		}
		old := w.nodes[tid]
		if d.XPath() != old.asgn.XPath() {
			return fmt.Errorf("%w: cannot replace %s with %s", ErrTypeMismatch, old.asgn.XPath(), d.XPath())
		}
		if !d.IsEmpty() && w.oneOfConflict(tid) {
			return fmt.Errorf("%w: %s", ErrGroupModeViolation, p)
		}
		pid := old.parent
		slot := slices.Index(w.nodes[pid].children, tid)
		w.unlink(tid)
		nid, err := copySubtree(w, pid, d.t, d.id, func(a *schema.Assignment) (*schema.Assignment, error) {
			ta := w.typ.Lookup(a.XPath())
			if ta == nil || ta.Group != a.Group {
				return nil, fmt.Errorf("%w: %s not in type %s", ErrTypeMismatch, a.XPath(), w.typ.Name)
			}
			return ta, nil
		})
		if err != nil {
			return err
		}
		cs := w.nodes[pid].children
		cs = slices.Insert(cs[:len(cs)-1], slot, nid)
		w.nodes[pid].children = cs
		w.nodes[nid].index = old.index
		w.nodes[nid].pos = old.pos
		return nil
	})
}
