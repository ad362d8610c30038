// Package access filters content trees by a caller's permissions.
//
// The caller's rights travel as an explicit [Capability] value. A
// [System] capability sees and edits everything; a [User] capability
// applies a [PermissionSet] per assignment. [Apply] produces the filtered
// view handed to callers: unreadable values are hidden and non-editable
// properties become read-only.
package access

import (
	"fmt"
	"strings"

	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/xpath"
)

type Permission uint8

const (
	Read Permission = 1 << iota
	Edit
	Create
	Delete

	None Permission = 0
	All             = Read | Edit | Create | Delete
)

var permNames = []struct {
	p    Permission
	name string
}{
	{Read, "read"},
	{Edit, "edit"},
	{Create, "create"},
	{Delete, "delete"},
}

// Has reports whether p contains every bit of q.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

func (p Permission) String() string {
	if p == None {
		return "none"
	}
	var parts []string
	for _, pn := range permNames {
		if p.Has(pn.p) {
			parts = append(parts, pn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParsePermission parses a "|" or "," separated list of permission names.
// "all" and "none" are accepted.
func ParsePermission(s string) (Permission, error) {
	res := None
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case "all":
			res |= All
			continue
		case "none", "":
			continue
		}
		found := false
		for _, pn := range permNames {
			if pn.name == f {
				res |= pn.p
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown permission %q", f)
		}
	}
	return res, nil
}

// PermissionSet maps assignment ids to permissions. Assignments without an
// entry inherit the entry of their base assignment, then Default.
type PermissionSet struct {
	Default      Permission
	ByAssignment map[int64]Permission
}

func (ps PermissionSet) For(a *schema.Assignment) Permission {
	if a == nil {
		return ps.Default
	}
	if p, ok := ps.ByAssignment[a.ID]; ok {
		return p
	}
	if a.BaseID != 0 {
		if p, ok := ps.ByAssignment[a.BaseID]; ok {
			return p
		}
	}
	return ps.Default
}

// Capability carries a caller's identity and rights through calls.
type Capability struct {
	system bool
	user   int64
	perms  PermissionSet
}

// System returns the capability which bypasses every permission check.
func System() Capability {
	return Capability{system: true}
}

// User returns the capability of user id holding ps.
func User(id int64, ps PermissionSet) Capability {
	return Capability{user: id, perms: ps}
}

func (c Capability) IsSystem() bool { return c.system }
func (c Capability) UserID() int64  { return c.user }

func (c Capability) String() string {
	if c.system {
		return "system"
	}
	return fmt.Sprintf("user(%d)", c.user)
}

// Allows reports whether c grants p on a.
func (c Capability) Allows(a *schema.Assignment, p Permission) bool {
	if c.system {
		return true
	}
	return c.perms.For(a).Has(p)
}

func CanEdit(c Capability, a *schema.Assignment) bool {
	return c.Allows(a, Edit)
}

// Check returns an error wrapping content.ErrNoAccess when c does not grant
// p on the assignment addressed by path in typ.
func Check(c Capability, typ *schema.Type, path xpath.Path, p Permission) error {
	if c.system {
		return nil
	}
	a := typ.LookupPath(path)
	if a == nil {
		return fmt.Errorf("%w: %s", content.ErrNotFound, path)
	}
	if !c.Allows(a, p) {
		return fmt.Errorf("%w: %s lacks %s on %s", content.ErrNoAccess, c, p, path)
	}
	return nil
}

// Apply returns the view of t visible to c. The result is always a copy.
func Apply(t *content.Tree, c Capability) *content.Tree {
	if c.system {
		return t.Clone()
	}
	return t.Overlay(func(r content.Ref) (bool, bool) {
		a := r.Assignment()
		return !c.Allows(a, Read), !c.Allows(a, Edit)
	})
}
