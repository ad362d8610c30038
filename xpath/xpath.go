package xpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrMalformedPath = errors.New("malformed path")

// Step is a single alias/index pair of a Path.
type Step struct {
	Alias string
	Index int
	// IndexDefined reports whether the index was explicit in the parsed
	// text. Operations such as removal treat "/A" (all A) differently from
	// "/A[1]".
	IndexDefined bool
}

// S returns a step with an explicit index.
func S(alias string, index int) Step {
	return Step{Alias: NormalizeAlias(alias), Index: index, IndexDefined: true}
}

func (s Step) String() string {
	return s.Alias + "[" + strconv.Itoa(s.Index) + "]"
}

// Equal compares alias and index, ignoring IndexDefined.
func (s Step) Equal(o Step) bool {
	return s.Alias == o.Alias && s.Index == o.Index
}

// Path is an ordered sequence of steps from the root. The empty path
// addresses the root group.
type Path []Step

// Root returns the root path.
func Root() Path {
	return nil
}

// Parse parses a path.
//
// Examples:
//   - "/A/B[2]" → [A[1] B[2]]
//   - "/a[3]" → [A[3]]
//   - "/" → root
//   - "" → root
//   - "TYPE/A" → [A[1]] (type qualifier stripped)
//   - "/A/" → [A[1]] (one trailing slash tolerated)
//   - "A" → error (a bare type name is only accepted by ParseQualified)
//
// Returns an error wrapping ErrMalformedPath for empty aliases, illegal
// alias characters and non-positive or non-numeric indices.
func Parse(text string) (Path, error) {
	q, err := ParseQualified(text)
	if err != nil {
		return nil, err
	}
	if q.Type != "" && !strings.Contains(text, "/") {
		return nil, fmt.Errorf("%w %q: missing leading /", ErrMalformedPath, text)
	}
	return q.Path, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) Path {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Qualified is a path with its optional type qualifier and instance
// selector.
type Qualified struct {
	Type string
	// PK is the raw selector of "TYPE[@pk=...]", without the "@pk=" prefix.
	PK   string
	Path Path
}

var pkPattern = regexp.MustCompile(`^@PK=(NEW|\d+\.(LIVE|MAX|\d+))$`)

// ParseQualified parses a path which may start with a type qualifier.
//
// Examples:
//   - "ARTICLE/TITLE" → {Type: "ARTICLE", Path: [TITLE[1]]}
//   - "article[@pk=12.MAX]/TITLE" → {Type: "ARTICLE", PK: "12.MAX", Path: [TITLE[1]]}
//   - "ARTICLE" → {Type: "ARTICLE", Path: root}
//   - "/TITLE" → {Path: [TITLE[1]]}
func ParseQualified(text string) (*Qualified, error) {
	res := &Qualified{}
	if text == "" || text == "/" {
		return res, nil
	}
	rest := text
	if text[0] != '/' {
		head := text
		if i := strings.IndexByte(text, '/'); i >= 0 {
			head, rest = text[:i], text[i:]
		} else {
			rest = ""
		}
		if err := parseQualifier(head, res); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrMalformedPath, text, err)
		}
		if rest == "" || rest == "/" {
			return res, nil
		}
	}
	rest = rest[1:]
	if strings.HasSuffix(rest, "/") {
		rest = rest[:len(rest)-1]
	}
	frags := strings.Split(rest, "/")
	res.Path = make(Path, 0, len(frags))
	for _, frag := range frags {
		st, err := parseStep(frag)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrMalformedPath, text, err)
		}
		res.Path = append(res.Path, st)
	}
	return res, nil
}

func parseQualifier(head string, q *Qualified) error {
	name := head
	if i := strings.IndexByte(head, '['); i >= 0 {
		if !strings.HasSuffix(head, "]") {
			return errors.New("unterminated type selector")
		}
		name = head[:i]
		sel := strings.ToUpper(head[i+1 : len(head)-1])
		m := pkPattern.FindStringSubmatch(sel)
		if m == nil {
			return fmt.Errorf("invalid instance selector %q", head[i+1:len(head)-1])
		}
		q.PK = m[1]
	}
	name = NormalizeAlias(name)
	if !ValidAlias(name) {
		return fmt.Errorf("invalid type name %q", name)
	}
	q.Type = name
	return nil
}

func parseStep(frag string) (Step, error) {
	if frag == "" {
		return Step{}, errors.New("empty alias")
	}
	alias, index, defined := frag, 1, false
	if i := strings.IndexByte(frag, '['); i >= 0 {
		if !strings.HasSuffix(frag, "]") {
			return Step{}, fmt.Errorf("unterminated index in %q", frag)
		}
		alias = frag[:i]
		n, err := strconv.Atoi(frag[i+1 : len(frag)-1])
		if err != nil {
			return Step{}, fmt.Errorf("invalid index in %q", frag)
		}
		if n < 1 {
			return Step{}, fmt.Errorf("index must be positive in %q", frag)
		}
		index, defined = n, true
	}
	alias = NormalizeAlias(alias)
	if alias == "" {
		return Step{}, errors.New("empty alias")
	}
	if !ValidAlias(alias) {
		return Step{}, fmt.Errorf("invalid alias %q", alias)
	}
	return Step{Alias: alias, Index: index, IndexDefined: defined}, nil
}

// NormalizeAlias returns the canonical (upper case) form of an alias.
func NormalizeAlias(alias string) string {
	return strings.ToUpper(alias)
}

// ValidAlias reports whether a normalized alias matches [A-Z_][A-Z0-9_]*.
func ValidAlias(alias string) bool {
	if alias == "" {
		return false
	}
	for i := 0; i < len(alias); i++ {
		c := alias[i]
		switch {
		case c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// String returns the canonical form with explicit indices, "/" for the root.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, st := range p {
		b.WriteByte('/')
		b.WriteString(st.Alias)
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(st.Index))
		b.WriteByte(']')
	}
	return b.String()
}

// NoIndex returns the path without indices, e.g. "/A/B". This is the
// address of the schema assignment a node instantiates.
func (p Path) NoIndex() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, st := range p {
		b.WriteByte('/')
		b.WriteString(st.Alias)
	}
	return b.String()
}

func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns the path without its last step. The parent of the root
// is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[: len(p)-1 : len(p)-1]
}

// Last returns the last step, or the zero Step for the root.
func (p Path) Last() Step {
	if len(p) == 0 {
		return Step{}
	}
	return p[len(p)-1]
}

// Append returns a new path with a step added. p is not modified.
func (p Path) Append(alias string, index int) Path {
	res := make(Path, len(p), len(p)+1)
	copy(res, p)
	return append(res, S(alias, index))
}

// WithIndex returns a copy of p whose last step has the given index.
func (p Path) WithIndex(index int) Path {
	if len(p) == 0 {
		return nil
	}
	res := p.Clone()
	res[len(res)-1].Index = index
	res[len(res)-1].IndexDefined = true
	return res
}

func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	res := make(Path, len(p))
	copy(res, p)
	return res
}

// Equal compares paths step by step, ignoring IndexDefined.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if !p[i].Equal(q[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether a's steps are a leading subsequence of b's.
// Every path is a prefix of itself and the root is a prefix of all paths.
func IsPrefixOf(a, b Path) bool {
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Compare orders paths step by step by alias then index. A path sorts
// before its descendants.
func Compare(a, b Path) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := strings.Compare(a[i].Alias, b[i].Alias); c != 0 {
			return c
		}
		switch {
		case a[i].Index < b[i].Index:
			return -1
		case a[i].Index > b[i].Index:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Build joins path fragments with single slashes and normalizes case.
//
// Examples:
//   - Build("/A", "B[2]") → "/A/B[2]"
//   - Build("/A/", "/B") → "/A/B"
//   - Build() → "/"
func Build(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(part)
	}
	if b.Len() == 0 {
		return "/"
	}
	return strings.ToUpper(b.String())
}
