package memstore

import (
	"testing"

	"github.com/signadot/tony-format/contentstore/storage"
	"github.com/signadot/tony-format/contentstore/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return New()
	})
}
