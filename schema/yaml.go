package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type typesFile struct {
	Types []typeDef `yaml:"types"`
}

type typeDef struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	System      bool            `yaml:"system"`
	Assignments []assignmentDef `yaml:"assignments"`
}

type assignmentDef struct {
	ID                  int64           `yaml:"id"`
	Alias               string          `yaml:"alias"`
	Group               bool            `yaml:"group"`
	Multiplicity        string          `yaml:"multiplicity"`
	DefaultMultiplicity *int            `yaml:"defaultMultiplicity"`
	Mode                string          `yaml:"mode"`
	Type                string          `yaml:"type"`
	Default             *string         `yaml:"default"`
	Check               string          `yaml:"check"`
	Enabled             *bool           `yaml:"enabled"`
	Base                int64           `yaml:"base"`
	Position            *int            `yaml:"position"`
	Children            []assignmentDef `yaml:"children"`
}

// LoadYAML reads and finalizes type definitions.
func LoadYAML(r io.Reader) ([]*Type, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	var f typesFile
	if err := yaml.Unmarshal(buf.Bytes(), &f); err != nil {
		return nil, fmt.Errorf("could not decode types: %w", err)
	}
	res := make([]*Type, 0, len(f.Types))
	for i := range f.Types {
		td := &f.Types[i]
		root := make([]*Assignment, 0, len(td.Assignments))
		for j := range td.Assignments {
			a, err := td.Assignments[j].build(j)
			if err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrInvalidType, td.Name, err)
			}
			root = append(root, a)
		}
		t := NewType(td.ID, td.Name, root...)
		if td.System {
			t.WithSystemProperties()
		}
		if err := t.Finalize(); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// LoadFile reads type definitions from a YAML file.
func LoadFile(path string) ([]*Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

func (d *assignmentDef) build(pos int) (*Assignment, error) {
	m := Required
	if d.Multiplicity != "" {
		var err error
		m, err = ParseMultiplicity(d.Multiplicity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Alias, err)
		}
	}
	var a *Assignment
	if d.Group {
		children := make([]*Assignment, 0, len(d.Children))
		for i := range d.Children {
			c, err := d.Children[i].build(i)
			if err != nil {
				return nil, fmt.Errorf("%s/%w", d.Alias, err)
			}
			children = append(children, c)
		}
		a = Group(d.Alias, m, children...)
	} else {
		dt := String
		if d.Type != "" {
			var err error
			dt, err = ParseDataType(d.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Alias, err)
			}
		}
		a = Property(d.Alias, dt, m)
		a.Default = d.Default
		a.Check = d.Check
	}
	switch strings.ToLower(d.Mode) {
	case "", "anyof":
	case "oneof":
		a.Mode = OneOf
	default:
		return nil, fmt.Errorf("%s: unknown mode %q", d.Alias, d.Mode)
	}
	a.ID = d.ID
	a.BaseID = d.Base
	a.Position = pos
	if d.Position != nil {
		a.Position = *d.Position
	}
	if d.DefaultMultiplicity != nil {
		a.DefaultMultiplicity = *d.DefaultMultiplicity
	}
	if d.Enabled != nil {
		a.Enabled = *d.Enabled
	}
	return a, nil
}
