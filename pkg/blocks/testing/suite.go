// Package testing provides a reusable test suite for blocks.Store
// implementations. It tests the interface contract, not implementation
// details, so the same suite runs against the memory, badger, and s3
// backends.
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelfs/kestrel/pkg/blocks"
)

// StoreTestSuite exercises the blocks.Store contract.
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test, ensuring isolation.
	NewStore func(t *testing.T) blocks.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.TestPutGet)
	t.Run("PutIdempotent", suite.TestPutIdempotent)
	t.Run("GetMissing", suite.TestGetMissing)
	t.Run("Has", suite.TestHas)
	t.Run("Roots", suite.TestRoots)
	t.Run("RootLastWriterWins", suite.TestRootLastWriterWins)
}

// TestPutGet verifies stored blocks round-trip byte-for-byte.
func (suite *StoreTestSuite) TestPutGet(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "small block", data: []byte("hello kestrel")},
		{name: "empty block", data: []byte{}},
		{name: "binary block", data: []byte{0x00, 0xff, 0x10, 0x80, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cid, err := store.Put(ctx, tt.data)
			require.NoError(t, err)
			require.NotEmpty(t, cid)

			got, err := store.Get(ctx, cid)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

// TestPutIdempotent verifies that storing the same bytes twice yields the
// same content identifier.
func (suite *StoreTestSuite) TestPutIdempotent(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	data := []byte("same bytes, same address")

	first, err := store.Put(ctx, data)
	require.NoError(t, err)

	second, err := store.Put(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestGetMissing verifies that missing blocks surface ErrBlockNotFound.
func (suite *StoreTestSuite) TestGetMissing(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, blocks.Cid("0000000000000000000000000000000000000000000000000000000000000000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, blocks.ErrBlockNotFound)
}

// TestHas verifies existence checks for present and absent blocks.
func (suite *StoreTestSuite) TestHas(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	cid, err := store.Put(ctx, []byte("present"))
	require.NoError(t, err)

	exists, err := store.Has(ctx, cid)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, blocks.Cid("1111111111111111111111111111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestRoots verifies root pointers: absent owners report ok=false, set
// pointers read back.
func (suite *StoreTestSuite) TestRoots(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	_, found, err := store.GetRoot(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	cid, err := store.Put(ctx, []byte("root node"))
	require.NoError(t, err)

	require.NoError(t, store.SetRoot(ctx, "alice", cid))

	got, found, err := store.GetRoot(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cid, got)
}

// TestRootLastWriterWins verifies that a second SetRoot fully replaces the
// first.
func (suite *StoreTestSuite) TestRootLastWriterWins(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, []byte("first"))
	require.NoError(t, err)

	second, err := store.Put(ctx, []byte("second"))
	require.NoError(t, err)

	require.NoError(t, store.SetRoot(ctx, "alice", first))
	require.NoError(t, store.SetRoot(ctx, "alice", second))

	got, found, err := store.GetRoot(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, got)
}
