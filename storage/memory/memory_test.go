package memory

import (
	"testing"

	"xdao.co/identity/storage"
	"xdao.co/identity/storage/testkit"
)

func TestMemory_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store { return New() })
}
