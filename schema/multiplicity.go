package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Unbounded is the Max of a Multiplicity without an upper bound.
const Unbounded = -1

// Multiplicity bounds the number of sibling instances of an assignment.
type Multiplicity struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

var (
	Optional   = Multiplicity{Min: 0, Max: 1}
	Required   = Multiplicity{Min: 1, Max: 1}
	Any        = Multiplicity{Min: 0, Max: Unbounded}
	AtLeastOne = Multiplicity{Min: 1, Max: Unbounded}
)

// M returns the multiplicity [min, max].
func M(min, max int) Multiplicity {
	return Multiplicity{Min: min, Max: max}
}

func (m Multiplicity) IsOptional() bool  { return m.Min == 0 }
func (m Multiplicity) IsRequired() bool  { return m.Min > 0 }
func (m Multiplicity) IsUnbounded() bool { return m.Max == Unbounded }

// Allows reports whether n instances are within bounds.
func (m Multiplicity) Allows(n int) bool {
	if n < m.Min {
		return false
	}
	return m.IsUnbounded() || n <= m.Max
}

// AllowsMore reports whether one more instance can be added to n existing.
func (m Multiplicity) AllowsMore(n int) bool {
	return m.IsUnbounded() || n < m.Max
}

// Clamp returns n moved into [Min, Max].
func (m Multiplicity) Clamp(n int) int {
	if n < m.Min {
		n = m.Min
	}
	if !m.IsUnbounded() && n > m.Max {
		n = m.Max
	}
	return n
}

func (m Multiplicity) Validate() error {
	if m.Min < 0 {
		return fmt.Errorf("negative minimum in %s", m)
	}
	if m.IsUnbounded() {
		return nil
	}
	if m.Max < 1 || m.Max < m.Min {
		return fmt.Errorf("bad maximum in %s", m)
	}
	return nil
}

func (m Multiplicity) String() string {
	if m.IsUnbounded() {
		return strconv.Itoa(m.Min) + "..N"
	}
	return strconv.Itoa(m.Min) + ".." + strconv.Itoa(m.Max)
}

// ParseMultiplicity parses "min..max", where max may be "N" or "*" for
// Unbounded. A single number n means n..n.
func ParseMultiplicity(s string) (Multiplicity, error) {
	s = strings.TrimSpace(s)
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Multiplicity{}, fmt.Errorf("invalid multiplicity %q", s)
		}
		m := M(n, n)
		return m, m.Validate()
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Multiplicity{}, fmt.Errorf("invalid multiplicity %q", s)
	}
	max := Unbounded
	switch hi = strings.TrimSpace(hi); hi {
	case "N", "n", "*":
	default:
		max, err = strconv.Atoi(hi)
		if err != nil {
			return Multiplicity{}, fmt.Errorf("invalid multiplicity %q", s)
		}
	}
	m := M(min, max)
	return m, m.Validate()
}
