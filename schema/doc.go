// Package schema provides the read-only assignment trees which shape content
// instances.
//
// A Type is a tree of Assignments. Each assignment is either a property
// (carrying a value of a DataType) or a group (carrying child assignments),
// and declares how many sibling instances it may have:
//
//	types:
//	  - id: 1
//	    name: ARTICLE
//	    system: true
//	    assignments:
//	      - alias: TITLE
//	        type: string
//	        multiplicity: "1..1"
//	      - alias: AUTHOR
//	        group: true
//	        multiplicity: "0..N"
//	        defaultMultiplicity: 0
//	        children:
//	          - alias: NAME
//	            type: string
//	            check: len(value) < 80
//
// # Group Modes
//
// A group in OneOf mode allows at most one of its child aliases to hold a
// non-empty value at any time. AnyOf (the default) places no such
// restriction.
//
// # Checks
//
// A property may carry a check, a boolean expr-lang expression over the
// variable value. Checks are compiled when the Type is finalized.
//
// # Usage
//
//	reg := schema.NewRegistry()
//	types, _ := schema.LoadFile("types.yaml")
//	for _, t := range types {
//	    reg.Register(t)
//	}
//	typ, _ := reg.ByName("ARTICLE")
//	a := typ.Lookup("/AUTHOR/NAME")
package schema
