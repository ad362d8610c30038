package content

import (
	"fmt"
	"strings"

	"github.com/signadot/tony-format/contentstore/xpath"
)

// Violation codes.
const (
	CodeRequired = "required"
	CodeMissing  = "missing"
	CodeCheck    = "check"
	CodeOneOf    = "oneof"
)

// Violation is one problem found by Validate.
type Violation struct {
	Path    xpath.Path
	Code    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Violations is the list of problems found by Validate. A non-empty
// Violations is an error matching ErrValidationFailed.
type Violations []Violation

func (vs Violations) Error() string {
	if len(vs) == 0 {
		return "no violations"
	}
	const show = 3
	var b strings.Builder
	b.WriteString(ErrValidationFailed.Error())
	b.WriteString(": ")
	for i, v := range vs {
		if i == show {
			fmt.Fprintf(&b, " (and %d more)", len(vs)-show)
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(v.String())
	}
	return b.String()
}

func (vs Violations) Is(target error) bool {
	return target == ErrValidationFailed
}

// Err returns vs as an error, nil if empty.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return vs
}

// Validate reports every required property lacking both a value and a
// default, every required alias with too few instances and every value
// failing its assignment's check, and every OneOf group populating more
// than one alternative. Empty group instances beyond their
// assignment's minimum are not descended into.
func (t *Tree) Validate() Violations {
	var vs Violations
	t.validate(RootID, &vs)
	return vs
}

func (t *Tree) validate(gid NodeID, vs *Violations) {
	base := t.pathOf(gid)
	if t.oneOfViolated(gid) {
		*vs = append(*vs, Violation{
			Path:    base,
			Code:    CodeOneOf,
			Message: fmt.Sprintf("more than one alternative populated: %s", strings.Join(t.populatedAliases(gid), ", ")),
		})
	}
	for _, a := range t.typ.Children(t.nodes[gid].asgn) {
		if !a.Enabled {
			continue
		}
		sibs := t.siblings(gid, a.Alias)
		if len(sibs) < a.Multiplicity.Min {
			*vs = append(*vs, Violation{
				Path:    base.Append(a.Alias, len(sibs)+1),
				Code:    CodeMissing,
				Message: fmt.Sprintf("%d of %s instances", len(sibs), a.Multiplicity),
			})
		}
		for _, id := range sibs {
			n := &t.nodes[id]
			p := base.Append(a.Alias, n.index)
			if n.kind == GroupKind {
				if n.index > a.Multiplicity.Min && t.isEmpty(id) {
					continue
				}
				t.validate(id, vs)
				continue
			}
			if n.value.IsEmpty() {
				if n.index <= a.Multiplicity.Min && a.Default == nil {
					*vs = append(*vs, Violation{Path: p, Code: CodeRequired, Message: "required value missing"})
				}
				continue
			}
			if a.Check == "" || n.value.NoAccess {
				continue
			}
			ok, err := a.Evaluate(n.value.Native())
			switch {
			case err != nil:
				*vs = append(*vs, Violation{Path: p, Code: CodeCheck, Message: err.Error()})
			case !ok:
				*vs = append(*vs, Violation{Path: p, Code: CodeCheck, Message: fmt.Sprintf("%s fails %q", n.value, a.Check)})
			}
		}
	}
}
