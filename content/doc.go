// Package content provides typed, hierarchical content trees shaped by a
// schema.Type.
//
// A Tree holds group and property nodes in an arena. Every node instantiates
// a schema.Assignment and is addressed by an xpath.Path of alias/index steps:
//
//	typ, _ := reg.ByName("ARTICLE")
//	tree, _ := content.Initialize(typ)
//	tree.SetValue(xpath.MustParse("/TITLE"), content.String("Hello"))
//	idx, _ := tree.CreateNew(xpath.MustParse("/"), "AUTHOR", content.Bottom)
//
// # Invariants
//
// After every completed call:
//   - indices of the nodes sharing a parent and alias are 1..n
//   - n lies within the assignment's multiplicity
//   - a OneOf group has at most one non-empty child alias
//   - sibling positions are strictly increasing in child order
//
// Mutating operations are atomic: on error the tree is unchanged.
//
// # Concurrency
//
// A Tree is not safe for concurrent use. Callers load a private copy,
// mutate it and hand it to the ledger.
//
// # Snapshots
//
// MarshalSnapshot and UnmarshalSnapshot encode trees as JSON for storage.
// ExportJSON produces a plain alias map of the values.
package content
