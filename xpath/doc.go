// Package xpath provides parsing and formatting of content paths.
//
// A content path addresses a node in a content tree as a sequence of
// alias/index steps:
//
//	/ARTICLE[1]/AUTHOR[2]/NAME[1]
//
// Aliases are matched case-insensitively and normalized to upper case.
// An omitted index means 1, so "/article/author" and "/ARTICLE[1]/AUTHOR[1]"
// address the same node.
//
// # Usage
//
//	p, err := xpath.Parse("/article/author[2]")
//	p.String()          // "/ARTICLE[1]/AUTHOR[2]"
//	p.NoIndex()         // "/ARTICLE/AUTHOR"
//	p.Parent().String() // "/ARTICLE[1]"
//	xpath.IsPrefixOf(p.Parent(), p) // true
//
// # Qualified Paths
//
// A path may be prefixed with a type name and an optional instance
// selector, as in "ARTICLE[@pk=12.MAX]/TITLE". Parse strips the type;
// ParseQualified returns it.
//
// # Related Packages
//
//   - github.com/signadot/tony-format/contentstore/content - content trees addressed by paths
package xpath
