package ledger

import (
	"github.com/signadot/tony-format/contentstore/content"
)

// Container holds every stored version of one instance.
type Container struct {
	ID       int64
	Versions map[int]*content.Tree
	Info     *VersionInfo
}

// Equal reports whether versions v1 and v2 hold the same content,
// ignoring the reserved root properties. Missing versions are never
// equal.
func (c *Container) Equal(v1, v2 int) bool {
	a, b := c.Versions[v1], c.Versions[v2]
	if a == nil || b == nil {
		return false
	}
	a, b = a.Clone(), b.Clone()
	a.SetSystemValues(content.SystemValues{})
	b.SetSystemValues(content.SystemValues{})
	return content.Equal(a, b)
}

// Live returns the live version, or nil when none is live.
func (c *Container) Live() *content.Tree {
	return c.Versions[c.Info.Live]
}

// Latest returns the max version.
func (c *Container) Latest() *content.Tree {
	return c.Versions[c.Info.Max]
}
