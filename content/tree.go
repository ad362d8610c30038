package content

import (
	"fmt"
	"slices"
	"sort"

	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

// NodeID identifies a node within one Tree. Ids of removed nodes are
// reused, so a NodeID or Ref is only meaningful until the next mutation.
type NodeID int32

const (
	RootID   NodeID = 0
	noParent NodeID = -1
)

type Kind uint8

const (
	GroupKind Kind = iota + 1
	PropertyKind
)

func (k Kind) String() string {
	switch k {
	case GroupKind:
		return "group"
	case PropertyKind:
		return "property"
	}
	return "invalid"
}

type node struct {
	kind     Kind
	asgn     *schema.Assignment
	index    int
	pos      int
	parent   NodeID
	children []NodeID // ordered by pos
	value    *Value
	readOnly bool
}

// LockChecker reports whether the instance a tree belongs to is held by
// someone else.
type LockChecker func() (bool, error)

// Tree is a content instance of a schema.Type.
type Tree struct {
	typ   *schema.Type
	nodes []node
	free  []NodeID
	guard LockChecker
}

func newTree(typ *schema.Type) *Tree {
	t := &Tree{typ: typ}
	t.nodes = append(t.nodes, node{kind: GroupKind, parent: noParent})
	return t
}

// Initialize creates the minimal tree of typ: every enabled assignment gets
// its initial number of instances and properties receive their defaults.
func Initialize(typ *schema.Type) (*Tree, error) {
	if err := typ.Finalize(); err != nil {
		return nil, err
	}
	t := newTree(typ)
	t.initChildren(RootID)
	return t, nil
}

func (t *Tree) Type() *schema.Type {
	return t.typ
}

// Guard installs a lock checker consulted by every mutating call.
func (t *Tree) Guard(lc LockChecker) {
	t.guard = lc
}

func (t *Tree) checkLock() error {
	if t.guard == nil {
		return nil
	}
	locked, err := t.guard()
	if err != nil {
		return err
	}
	if locked {
		return ErrLocked
	}
	return nil
}

func (t *Tree) alloc(n node) NodeID {
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) release(id NodeID) {
	for _, c := range t.nodes[id].children {
		t.release(c)
	}
	t.nodes[id] = node{}
	t.free = append(t.free, id)
}

func (t *Tree) initChildren(parent NodeID) {
	for _, a := range t.typ.Children(t.nodes[parent].asgn) {
		if !a.Enabled {
			continue
		}
		for i := 1; i <= a.InitialCount(); i++ {
			t.instantiate(parent, a, i)
		}
	}
}

// instantiate appends a new instance of a under parent with the next
// position and builds its initial structure.
func (t *Tree) instantiate(parent NodeID, a *schema.Assignment, index int) NodeID {
	kind := PropertyKind
	if a.Group {
		kind = GroupKind
	}
	pos := t.nextPos(parent)
	id := t.alloc(node{kind: kind, asgn: a, index: index, pos: pos, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	if a.Group {
		t.initChildren(id)
		return id
	}
	if a.Default != nil && !t.oneOfConflict(id) {
		if v, err := ParseValue(a.DataType, *a.Default); err == nil && !v.IsEmpty() {
			t.nodes[id].value = v
		}
	}
	return id
}

func (t *Tree) nextPos(parent NodeID) int {
	cs := t.nodes[parent].children
	if len(cs) == 0 {
		return 1
	}
	return t.nodes[cs[len(cs)-1]].pos + 1
}

func (t *Tree) alias(id NodeID) string {
	if a := t.nodes[id].asgn; a != nil {
		return a.Alias
	}
	return ""
}

func (t *Tree) child(parent NodeID, alias string, index int) (NodeID, bool) {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].index == index && t.alias(c) == alias {
			return c, true
		}
	}
	return 0, false
}

// siblings returns the children of parent with the given alias in index
// order.
func (t *Tree) siblings(parent NodeID, alias string) []NodeID {
	var res []NodeID
	for _, c := range t.nodes[parent].children {
		if t.alias(c) == alias {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return t.nodes[res[i]].index < t.nodes[res[j]].index })
	return res
}

func (t *Tree) count(parent NodeID, alias string) int {
	n := 0
	for _, c := range t.nodes[parent].children {
		if t.alias(c) == alias {
			n++
		}
	}
	return n
}

func (t *Tree) isEmpty(id NodeID) bool {
	n := &t.nodes[id]
	if n.kind == PropertyKind {
		return n.value.IsEmpty()
	}
	for _, c := range n.children {
		if !t.isEmpty(c) {
			return false
		}
	}
	return true
}

// blockedByOneOf reports whether parent is a OneOf group with a non-empty
// child of an alias other than alias.
func (t *Tree) blockedByOneOf(parent NodeID, alias string) bool {
	pa := t.nodes[parent].asgn
	if pa == nil || pa.Mode != schema.OneOf {
		return false
	}
	for _, c := range t.nodes[parent].children {
		if t.alias(c) != alias && !t.isEmpty(c) {
			return true
		}
	}
	return false
}

// populatedAliases returns the distinct aliases of gid's non-empty
// children in child order.
func (t *Tree) populatedAliases(gid NodeID) []string {
	var res []string
	for _, c := range t.nodes[gid].children {
		if t.isEmpty(c) {
			continue
		}
		if al := t.alias(c); !slices.Contains(res, al) {
			res = append(res, al)
		}
	}
	return res
}

// oneOfViolated reports whether gid is a OneOf group with more than one
// populated alternative.
func (t *Tree) oneOfViolated(gid NodeID) bool {
	a := t.nodes[gid].asgn
	return a != nil && a.Mode == schema.OneOf && len(t.populatedAliases(gid)) > 1
}

// oneOfConflict reports whether populating id would break a OneOf group
// among its ancestors.
func (t *Tree) oneOfConflict(id NodeID) bool {
	for cur := id; cur != RootID; cur = t.nodes[cur].parent {
		if t.blockedByOneOf(t.nodes[cur].parent, t.alias(cur)) {
			return true
		}
	}
	return false
}

func (t *Tree) pathOf(id NodeID) xpath.Path {
	depth := 0
	for c := id; c != RootID; c = t.nodes[c].parent {
		depth++
	}
	if depth == 0 {
		return nil
	}
	p := make(xpath.Path, depth)
	for c := id; c != RootID; c = t.nodes[c].parent {
		depth--
		n := &t.nodes[c]
		p[depth] = xpath.Step{Alias: n.asgn.Alias, Index: n.index, IndexDefined: true}
	}
	return p
}

func (t *Tree) resolve(p xpath.Path) (NodeID, error) {
	cur := RootID
	for i, st := range p {
		n := &t.nodes[cur]
		if n.kind != GroupKind {
			return 0, fmt.Errorf("%w: %s is a property", ErrTypeMismatch, p[:i])
		}
		if t.typ.Child(n.asgn, st.Alias) == nil {
			return 0, fmt.Errorf("%w: no assignment %s under %s", ErrNotFound, st.Alias, p[:i])
		}
		next, ok := t.child(cur, st.Alias, st.Index)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p[:i+1])
		}
		cur = next
	}
	return cur, nil
}

func (t *Tree) resolveKind(p xpath.Path, kind Kind) (NodeID, error) {
	id, err := t.resolve(p)
	if err != nil {
		return 0, err
	}
	if t.nodes[id].kind != kind {
		return 0, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, p, t.nodes[id].kind)
	}
	return id, nil
}

// Resolve returns the node at p.
func (t *Tree) Resolve(p xpath.Path) (Ref, error) {
	id, err := t.resolve(p)
	if err != nil {
		return Ref{}, err
	}
	return Ref{t: t, id: id}, nil
}

// ResolveGroup is like Resolve but fails with ErrTypeMismatch if p
// addresses a property.
func (t *Tree) ResolveGroup(p xpath.Path) (Ref, error) {
	id, err := t.resolveKind(p, GroupKind)
	if err != nil {
		return Ref{}, err
	}
	return Ref{t: t, id: id}, nil
}

// ResolveProperty is like Resolve but fails with ErrTypeMismatch if p
// addresses a group.
func (t *Tree) ResolveProperty(p xpath.Path) (Ref, error) {
	id, err := t.resolveKind(p, PropertyKind)
	if err != nil {
		return Ref{}, err
	}
	return Ref{t: t, id: id}, nil
}

// Root returns the root group.
func (t *Tree) Root() Ref {
	return Ref{t: t, id: RootID}
}

// GetValue returns a copy of the value at p, nil if empty.
func (t *Tree) GetValue(p xpath.Path) (*Value, error) {
	id, err := t.resolveKind(p, PropertyKind)
	if err != nil {
		return nil, err
	}
	return t.nodes[id].value.Clone(), nil
}

// SetValue sets the value of the existing property at p. A nil or empty v
// clears it. SetValue never creates nodes.
func (t *Tree) SetValue(p xpath.Path, v *Value) error {
	if err := t.checkLock(); err != nil {
		return err
	}
	id, err := t.resolveKind(p, PropertyKind)
	if err != nil {
		return err
	}
	n := &t.nodes[id]
	if n.readOnly || n.value != nil && n.value.NoAccess {
		return fmt.Errorf("%w: %s", ErrNoAccess, p)
	}
	if v.IsEmpty() {
		n.value = nil
		return nil
	}
	if v.NoAccess {
		return fmt.Errorf("%w: cannot set a hidden value at %s", ErrNoAccess, p)
	}
	if !compatible(n.asgn.DataType, v.Type) {
		return fmt.Errorf("%w: %s value for %s property %s", ErrTypeMismatch, v.Type, n.asgn.DataType, p)
	}
	if t.oneOfConflict(id) {
		return fmt.Errorf("%w: %s", ErrGroupModeViolation, p)
	}
	nv := v.Clone()
	nv.Type = n.asgn.DataType
	n.value = nv
	return nil
}

// Clone returns a deep copy of t sharing only the read-only type.
func (t *Tree) Clone() *Tree {
	res := &Tree{
		typ:   t.typ,
		guard: t.guard,
		nodes: make([]node, len(t.nodes)),
		free:  slices.Clone(t.free),
	}
	for i := range t.nodes {
		n := t.nodes[i]
		n.children = slices.Clone(n.children)
		n.value = n.value.Clone()
		res.nodes[i] = n
	}
	return res
}

// mutate runs f on a copy of t and adopts the copy only if f succeeds.
func (t *Tree) mutate(f func(w *Tree) error) error {
	if err := t.checkLock(); err != nil {
		return err
	}
	w := t.Clone()
	if err := f(w); err != nil {
		return err
	}
	t.nodes, t.free = w.nodes, w.free
	return nil
}

// Equal reports whether a and b are of the same type and structurally
// equal node by node: alias, index, position and value.
func Equal(a, b *Tree) bool {
	if a.typ.ID != b.typ.ID {
		return false
	}
	return equalNode(a, RootID, b, RootID)
}

func equalNode(a *Tree, ai NodeID, b *Tree, bi NodeID) bool {
	an, bn := &a.nodes[ai], &b.nodes[bi]
	if an.kind != bn.kind || an.index != bn.index || an.pos != bn.pos {
		return false
	}
	if a.alias(ai) != b.alias(bi) {
		return false
	}
	if an.kind == PropertyKind {
		return an.value.Equal(bn.value)
	}
	if len(an.children) != len(bn.children) {
		return false
	}
	for i := range an.children {
		if !equalNode(a, an.children[i], b, bn.children[i]) {
			return false
		}
	}
	return true
}

// Walk visits every node but the root depth first in position order.
// Returning false from f skips the children of the visited node.
func (t *Tree) Walk(f func(r Ref) bool) {
	t.walk(RootID, f)
}

func (t *Tree) walk(id NodeID, f func(r Ref) bool) {
	for _, c := range t.nodes[id].children {
		if f(Ref{t: t, id: c}) && t.nodes[c].kind == GroupKind {
			t.walk(c, f)
		}
	}
}

// AllPaths lists the paths of all properties, and of groups if
// includeGroups is set, in document order.
func (t *Tree) AllPaths(includeGroups bool) []xpath.Path {
	var res []xpath.Path
	t.Walk(func(r Ref) bool {
		if includeGroups || !r.IsGroup() {
			res = append(res, r.Path())
		}
		return true
	})
	return res
}

func (t *Tree) PropertyPaths() []xpath.Path {
	return t.AllPaths(false)
}

// Values returns the values of all siblings sharing the alias of the
// property at p, in index order. The index of p's last step is ignored.
func (t *Tree) Values(p xpath.Path) ([]*Value, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("%w: root has no value", ErrTypeMismatch)
	}
	pid, err := t.resolveKind(p.Parent(), GroupKind)
	if err != nil {
		return nil, err
	}
	alias := p.Last().Alias
	a := t.typ.Child(t.nodes[pid].asgn, alias)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if a.Group {
		return nil, fmt.Errorf("%w: %s is a group", ErrTypeMismatch, p.NoIndex())
	}
	sibs := t.siblings(pid, alias)
	res := make([]*Value, len(sibs))
	for i, id := range sibs {
		res[i] = t.nodes[id].value.Clone()
	}
	return res, nil
}

// ContainsValue reports whether any sibling of the property at p holds v.
func (t *Tree) ContainsValue(p xpath.Path, v *Value) bool {
	vs, err := t.Values(p)
	if err != nil {
		return false
	}
	for _, x := range vs {
		if !x.IsEmpty() && x.Equal(v) {
			return true
		}
	}
	return false
}

// Count returns the number of children of the group at parent with the
// given alias.
func (t *Tree) Count(parent xpath.Path, alias string) (int, error) {
	pid, err := t.resolveKind(parent, GroupKind)
	if err != nil {
		return 0, err
	}
	alias = xpath.NormalizeAlias(alias)
	if t.typ.Child(t.nodes[pid].asgn, alias) == nil {
		return 0, fmt.Errorf("%w: no assignment %s under %s", ErrNotFound, alias, parent)
	}
	return t.count(pid, alias), nil
}

// Ref is a read-only view of a node.
type Ref struct {
	t  *Tree
	id NodeID
}

func (r Ref) Valid() bool    { return r.t != nil }
func (r Ref) ID() NodeID     { return r.id }
func (r Ref) Kind() Kind     { return r.t.nodes[r.id].kind }
func (r Ref) IsGroup() bool  { return r.Kind() == GroupKind }
func (r Ref) IsRoot() bool   { return r.id == RootID }
func (r Ref) Index() int     { return r.t.nodes[r.id].index }
func (r Ref) Pos() int       { return r.t.nodes[r.id].pos }
func (r Ref) ReadOnly() bool { return r.t.nodes[r.id].readOnly }
func (r Ref) Alias() string  { return r.t.alias(r.id) }

// Assignment returns the assignment r instantiates, nil for the root.
func (r Ref) Assignment() *schema.Assignment {
	return r.t.nodes[r.id].asgn
}

// Value returns the node's value; the result must not be modified.
func (r Ref) Value() *Value {
	return r.t.nodes[r.id].value
}

func (r Ref) Path() xpath.Path {
	return r.t.pathOf(r.id)
}

// IsEmpty reports whether the node holds no non-empty value transitively.
func (r Ref) IsEmpty() bool {
	return r.t.isEmpty(r.id)
}

func (r Ref) Parent() Ref {
	p := r.t.nodes[r.id].parent
	if p == noParent {
		return Ref{}
	}
	return Ref{t: r.t, id: p}
}

func (r Ref) Children() []Ref {
	cs := r.t.nodes[r.id].children
	res := make([]Ref, len(cs))
	for i, c := range cs {
		res[i] = Ref{t: r.t, id: c}
	}
	return res
}
