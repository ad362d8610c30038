package schema

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/signadot/tony-format/contentstore/xpath"
)

// GroupMode restricts which children of a group may be populated together.
type GroupMode int

const (
	AnyOf GroupMode = iota
	OneOf
)

func (m GroupMode) String() string {
	if m == OneOf {
		return "oneof"
	}
	return "anyof"
}

// Assignment is a node of a Type's assignment tree.
type Assignment struct {
	ID    int64
	Alias string
	Group bool

	Multiplicity Multiplicity
	// DefaultMultiplicity is the number of instances created when the
	// parent is initialized; Finalize clamps it into Multiplicity.
	DefaultMultiplicity int
	Mode                GroupMode
	Enabled             bool
	// BaseID is the id of the assignment this one was derived from, 0 if
	// none.
	BaseID   int64
	Position int

	DataType DataType
	Default  *string
	Check    string

	// SystemInternal marks reserved properties maintained by the ledger.
	SystemInternal bool

	Children []*Assignment
	Parent   *Assignment

	xpath string
	check *vm.Program
}

// Property creates a property assignment.
func Property(alias string, dt DataType, m Multiplicity) *Assignment {
	return &Assignment{
		Alias:               xpath.NormalizeAlias(alias),
		DataType:            dt,
		Multiplicity:        m,
		DefaultMultiplicity: 1,
		Enabled:             true,
	}
}

// Group creates a group assignment with the given children.
func Group(alias string, m Multiplicity, children ...*Assignment) *Assignment {
	return &Assignment{
		Alias:               xpath.NormalizeAlias(alias),
		Group:               true,
		Multiplicity:        m,
		DefaultMultiplicity: 1,
		Enabled:             true,
		Children:            children,
	}
}

func (a *Assignment) WithDefault(text string) *Assignment {
	a.Default = &text
	return a
}

func (a *Assignment) WithDefaultMultiplicity(n int) *Assignment {
	a.DefaultMultiplicity = n
	return a
}

func (a *Assignment) WithMode(m GroupMode) *Assignment {
	a.Mode = m
	return a
}

func (a *Assignment) WithCheck(src string) *Assignment {
	a.Check = src
	return a
}

func (a *Assignment) WithPosition(pos int) *Assignment {
	a.Position = pos
	return a
}

func (a *Assignment) WithID(id int64) *Assignment {
	a.ID = id
	return a
}

func (a *Assignment) Disabled() *Assignment {
	a.Enabled = false
	return a
}

func (a *Assignment) Derived(baseID int64) *Assignment {
	a.BaseID = baseID
	return a
}

// XPath returns the index-free path of the assignment, e.g. "/A/B".
// It is set by Type.Finalize.
func (a *Assignment) XPath() string {
	return a.xpath
}

// InitialCount is the number of instances created on initialization.
func (a *Assignment) InitialCount() int {
	return a.Multiplicity.Clamp(a.DefaultMultiplicity)
}

// Child returns the child assignment with the given alias, or nil.
func (a *Assignment) Child(alias string) *Assignment {
	alias = xpath.NormalizeAlias(alias)
	for _, c := range a.Children {
		if c.Alias == alias {
			return c
		}
	}
	return nil
}

func (a *Assignment) String() string {
	kind := "property"
	if a.Group {
		kind = "group"
	}
	return fmt.Sprintf("%s %s %s", kind, a.xpath, a.Multiplicity)
}

type checkEnv struct {
	Value any `expr:"value"`
}

func (a *Assignment) compileCheck() error {
	if a.Check == "" {
		a.check = nil
		return nil
	}
	prg, err := expr.Compile(a.Check, expr.Env(checkEnv{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("check of %s: %w", a.xpath, err)
	}
	a.check = prg
	return nil
}

// Evaluate runs the assignment's check against a native value. An
// assignment without a check accepts every value.
func (a *Assignment) Evaluate(native any) (bool, error) {
	if a.Check == "" {
		return true, nil
	}
	if a.check == nil {
		if err := a.compileCheck(); err != nil {
			return false, err
		}
	}
	out, err := expr.Run(a.check, checkEnv{Value: native})
	if err != nil {
		return false, fmt.Errorf("check of %s: %w", a.xpath, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
