package delta

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type dumpOpts struct {
	color bool
}

type DumpOption func(*dumpOpts)

// WithColor enables ANSI colors: green for adds, red for removes and
// yellow for updates.
func WithColor(v bool) DumpOption {
	return func(o *dumpOpts) { o.color = v }
}

func paint(attr color.Attribute, on bool) func(string, ...any) string {
	c := color.New(attr)
	if on {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintfFunc()
}

// Dump writes a human readable report of d to w.
func (d *Delta) Dump(w io.Writer, opts ...DumpOption) error {
	o := &dumpOpts{}
	for _, opt := range opts {
		opt(o)
	}
	_, err := io.WriteString(w, d.report(o))
	return err
}

func (d *Delta) String() string {
	return d.report(&dumpOpts{})
}

func (d *Delta) report(o *dumpOpts) string {
	if !d.Changed() {
		return "===> No changes! <===\n"
	}
	upd := paint(color.FgYellow, o.color)
	add := paint(color.FgGreen, o.color)
	rem := paint(color.FgRed, o.color)

	sb := &strings.Builder{}
	sb.WriteString("<=== changes start ===>\n")
	if len(d.Updates) > 0 {
		sb.WriteString("Updates:\n")
		for i := range d.Updates {
			c := &d.Updates[i]
			line := fmt.Sprintf("%s: %s -> %s", c.Path, c.Old, c.New)
			if c.PositionChanged() {
				line += fmt.Sprintf(" (position %d -> %d)", c.OldPos, c.NewPos)
			}
			sb.WriteString(upd("%s%s", line, internalMark(c)) + "\n")
		}
	}
	if len(d.Adds) > 0 {
		sb.WriteString("Adds:\n")
		for i := range d.Adds {
			c := &d.Adds[i]
			sb.WriteString(add("%s: added at position %d: %s%s", c.Path, c.NewPos, c.New, internalMark(c)) + "\n")
		}
	}
	if len(d.Removes) > 0 {
		sb.WriteString("Removes:\n")
		for i := range d.Removes {
			c := &d.Removes[i]
			sb.WriteString(rem("%s: removed at position %d: %s%s", c.Path, c.OldPos, c.Old, internalMark(c)) + "\n")
		}
	}
	sb.WriteString("<=== changes end ===>\n")
	return sb.String()
}

func internalMark(c *Change) string {
	if c.Internal {
		return " [internal]"
	}
	return ""
}
