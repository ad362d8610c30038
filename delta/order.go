package delta

import (
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Ordered returns every change of d in document order. The property
// sequences of both trees are merged by a sequence diff so that removed
// properties appear where they used to be and added ones where they are
// now.
func (d *Delta) Ordered() []Change {
	byPath := make(map[string]*Change, d.Len())
	for _, cs := range [][]Change{d.Updates, d.Adds, d.Removes} {
		for i := range cs {
			byPath[cs[i].Path.String()] = &cs[i]
		}
	}
	m := map[string]rune{}
	im := map[rune]string{}
	fromRunes := mapPaths(m, im, d.from)
	toRunes := mapPaths(m, im, d.to)
	diffs := diffpatch.New().DiffMainRunes(fromRunes, toRunes, false)

	res := make([]Change, 0, d.Len())
	for i := range diffs {
		for _, r := range diffs[i].Text {
			p := im[r]
			if c, ok := byPath[p]; ok {
				res = append(res, *c)
				delete(byPath, p)
			}
		}
	}
	return res
}

// mapPaths maps each path to a rune so that path sequences can be diffed
// as strings. Surrogate code points are skipped, they do not survive a
// round trip through string.
func mapPaths(m map[string]rune, im map[rune]string, paths []string) []rune {
	rs := make([]rune, len(paths))
	for i, p := range paths {
		r, ok := m[p]
		if !ok {
			r = rune(len(m))
			if r >= 0xD800 {
				r += 0x800
			}
			m[p] = r
			im[r] = p
		}
		rs[i] = r
	}
	return rs
}
