package memory

import (
	"context"
	"testing"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	blockstesting "github.com/kestrelfs/kestrel/pkg/blocks/testing"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// TestMemoryBlockStore runs the block store test suite against the
// in-memory implementation.
func TestMemoryBlockStore(t *testing.T) {
	suite := &blockstesting.StoreTestSuite{
		NewStore: func(t *testing.T) blocks.Store {
			store, err := NewMemoryBlockStore(context.Background(), crypto.NewSuite().Hasher)
			if err != nil {
				t.Fatalf("failed to create memory block store: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}
