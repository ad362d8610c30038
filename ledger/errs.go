package ledger

import (
	"errors"
	"fmt"

	"github.com/signadot/tony-format/contentstore/content"
)

var (
	// ErrNotFound matches content.ErrNotFound as well.
	ErrNotFound    = fmt.Errorf("ledger: %w", content.ErrNotFound)
	ErrLastVersion = errors.New("cannot remove the last version")
)
