package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/signadot/tony-format/contentstore/xpath"
)

// Aliases of the reserved root properties added by WithSystemProperties.
const (
	AliasID         = "ID"
	AliasVersion    = "VERSION"
	AliasTypeDef    = "TYPEDEF"
	AliasStep       = "STEP"
	AliasCreatedBy  = "CREATED_BY"
	AliasCreatedAt  = "CREATED_AT"
	AliasModifiedBy = "MODIFIED_BY"
	AliasModifiedAt = "MODIFIED_AT"
)

// SystemAssignments returns fresh copies of the reserved root properties.
func SystemAssignments() []*Assignment {
	defs := []struct {
		alias string
		dt    DataType
	}{
		{AliasID, Number},
		{AliasVersion, Number},
		{AliasTypeDef, Number},
		{AliasStep, Number},
		{AliasCreatedBy, Number},
		{AliasCreatedAt, Date},
		{AliasModifiedBy, Number},
		{AliasModifiedAt, Date},
	}
	res := make([]*Assignment, len(defs))
	for i, d := range defs {
		a := Property(d.alias, d.dt, Optional).WithPosition(i - len(defs))
		a.SystemInternal = true
		res[i] = a
	}
	return res
}

// Type is a finalized, read-only assignment tree.
//
// A Type must not be modified after Finalize; it may then be shared between
// goroutines and content trees.
type Type struct {
	ID   int64
	Name string
	Root []*Assignment

	finalized bool
	byPath    map[string]*Assignment
	byID      map[int64]*Assignment
}

// NewType creates an unfinalized type.
func NewType(id int64, name string, root ...*Assignment) *Type {
	return &Type{ID: id, Name: xpath.NormalizeAlias(name), Root: root}
}

// WithSystemProperties prepends the reserved root properties unless they are
// already present.
func (t *Type) WithSystemProperties() *Type {
	for _, a := range t.Root {
		if a.SystemInternal {
			return t
		}
	}
	t.Root = append(SystemAssignments(), t.Root...)
	return t
}

func (t *Type) Finalized() bool {
	return t.finalized
}

// Finalize normalizes and indexes the assignment tree:
//   - aliases are upper-cased and checked
//   - ids are assigned to assignments with ID 0
//   - parents are linked and children sorted by Position
//   - bounds, group modes, defaults and checks are validated
//
// Finalize is idempotent.
func (t *Type) Finalize() error {
	if t.finalized {
		return nil
	}
	t.Name = xpath.NormalizeAlias(t.Name)
	if !xpath.ValidAlias(t.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidType, t.Name)
	}
	t.byPath = make(map[string]*Assignment)
	t.byID = make(map[int64]*Assignment)

	var maxID int64
	var all []*Assignment
	var walk func(parent *Assignment, as []*Assignment, prefix string) error
	walk = func(parent *Assignment, as []*Assignment, prefix string) error {
		sort.SliceStable(as, func(i, j int) bool { return as[i].Position < as[j].Position })
		for _, a := range as {
			if err := t.finalizeOne(parent, a, prefix); err != nil {
				return fmt.Errorf("%w %s: %w", ErrInvalidType, t.Name, err)
			}
			all = append(all, a)
			maxID = max(maxID, a.ID)
			if err := walk(a, a.Children, a.xpath); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nil, t.Root, ""); err != nil {
		return err
	}
	for _, a := range all {
		if a.ID == 0 {
			maxID++
			a.ID = maxID
		}
		if _, dup := t.byID[a.ID]; dup {
			return fmt.Errorf("%w %s: duplicate assignment id %d", ErrInvalidType, t.Name, a.ID)
		}
		t.byID[a.ID] = a
	}
	t.finalized = true
	return nil
}

func (t *Type) finalizeOne(parent, a *Assignment, prefix string) error {
	a.Alias = xpath.NormalizeAlias(a.Alias)
	if !xpath.ValidAlias(a.Alias) {
		return fmt.Errorf("bad alias %q under %q", a.Alias, prefix)
	}
	a.Parent = parent
	a.xpath = prefix + "/" + a.Alias
	if _, dup := t.byPath[a.xpath]; dup {
		return fmt.Errorf("duplicate alias %s", a.xpath)
	}
	t.byPath[a.xpath] = a
	if err := a.Multiplicity.Validate(); err != nil {
		return fmt.Errorf("%s: %w", a.xpath, err)
	}
	a.DefaultMultiplicity = a.Multiplicity.Clamp(a.DefaultMultiplicity)
	if a.Group {
		if a.DataType != "" || a.Default != nil || a.Check != "" {
			return fmt.Errorf("%s: group with value settings", a.xpath)
		}
		return nil
	}
	if a.Mode == OneOf {
		return fmt.Errorf("%s: oneof mode on a property", a.xpath)
	}
	if len(a.Children) != 0 {
		return fmt.Errorf("%s: property with children", a.xpath)
	}
	if a.DataType == "" {
		a.DataType = String
	}
	if !a.DataType.Valid() {
		return fmt.Errorf("%s: unknown data type %q", a.xpath, string(a.DataType))
	}
	if a.Default != nil {
		if _, err := a.DataType.ParseNative(*a.Default); err != nil {
			return fmt.Errorf("%s default: %w", a.xpath, err)
		}
	}
	return a.compileCheck()
}

// Lookup returns the assignment at an index-free path such as "/A/B", or nil.
func (t *Type) Lookup(noIndexPath string) *Assignment {
	return t.byPath[noIndexPath]
}

// LookupPath returns the assignment instantiated by nodes at p, or nil.
func (t *Type) LookupPath(p xpath.Path) *Assignment {
	return t.byPath[p.NoIndex()]
}

func (t *Type) ByID(id int64) *Assignment {
	return t.byID[id]
}

// Children returns the child assignments of parent; nil denotes the root.
func (t *Type) Children(parent *Assignment) []*Assignment {
	if parent == nil {
		return t.Root
	}
	return parent.Children
}

// Child returns the child of parent (nil for root) with the given alias.
func (t *Type) Child(parent *Assignment, alias string) *Assignment {
	alias = xpath.NormalizeAlias(alias)
	for _, c := range t.Children(parent) {
		if c.Alias == alias {
			return c
		}
	}
	return nil
}

// Walk visits assignments depth first in position order. Returning false
// from f skips the children of the visited assignment.
func (t *Type) Walk(f func(a *Assignment) bool) {
	var walk func(as []*Assignment)
	walk = func(as []*Assignment) {
		for _, a := range as {
			if f(a) {
				walk(a.Children)
			}
		}
	}
	walk(t.Root)
}

// Provider supplies finalized types by id.
type Provider interface {
	AssignmentTree(ctx context.Context, typeID int64) (*Type, error)
}
