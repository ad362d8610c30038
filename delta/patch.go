package delta

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/signadot/tony-format/contentstore/content"
)

// MergePatch returns the JSON merge patch (RFC 7386) which turns the JSON
// export of a into the JSON export of b.
func MergePatch(a, b *content.Tree) ([]byte, error) {
	if a.Type().ID != b.Type().ID {
		return nil, fmt.Errorf("%w: merge patch between types %s and %s", content.ErrTypeMismatch, a.Type().Name, b.Type().Name)
	}
	ja, err := a.ExportJSON()
	if err != nil {
		return nil, err
	}
	jb, err := b.ExportJSON()
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(ja, jb)
}
