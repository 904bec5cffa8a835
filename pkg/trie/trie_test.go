package trie_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelfs/kestrel/pkg/blocks/memory"
	"github.com/kestrelfs/kestrel/pkg/crypto"
	"github.com/kestrelfs/kestrel/pkg/fs"
	"github.com/kestrelfs/kestrel/pkg/trie"
)

// fixture builds a store with an owner tree:
//
//	/alice/docs/report.pdf
//	/alice/docs/work/plan.txt
//
// and returns the store plus an entry point granting the whole tree.
func fixture(t *testing.T) (*fs.Store, fs.EntryPoint) {
	t.Helper()
	ctx := context.Background()

	suite := crypto.NewSuite()
	backend, err := memory.NewMemoryBlockStore(ctx, suite.Hasher)
	require.NoError(t, err)

	store := fs.NewStore(backend, suite)
	key, err := suite.NewKey()
	require.NoError(t, err)
	store.RegisterKey("alice", key)
	require.NoError(t, store.InitOwner(ctx, "alice"))

	root, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	root, err = root.Mkdir(ctx, "docs")
	require.NoError(t, err)
	docs, _, err := root.Child(ctx, "docs")
	require.NoError(t, err)

	docs, err = docs.WriteNew(ctx, "report.pdf", []byte("quarterly numbers"))
	require.NoError(t, err)
	docs, err = docs.Mkdir(ctx, "work")
	require.NoError(t, err)
	work, _, err := docs.Child(ctx, "work")
	require.NoError(t, err)
	_, err = work.WriteNew(ctx, "plan.txt", []byte("the plan"))
	require.NoError(t, err)

	return store, fs.EntryPoint{Owner: "alice", Root: "/alice", Key: key, Writable: true}
}

func TestPutAndGetByPath(t *testing.T) {
	store, entry := fixture(t)
	ctx := context.Background()

	root := trie.New().Put("/alice", entry)

	file, found, err := root.GetByPath(ctx, "/alice/docs/report.pdf", store)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fs.Path("/alice/docs/report.pdf"), file.Path())

	// Unindexed paths miss without error.
	_, found, err = root.GetByPath(ctx, "/bob/whatever", store)
	require.NoError(t, err)
	assert.False(t, found)

	// Paths that pass the entry point but miss in the store also miss.
	_, found, err = root.GetByPath(ctx, "/alice/docs/nope.txt", store)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutIsPure(t *testing.T) {
	_, entry := fixture(t)

	before := trie.New()
	after := before.Put("/alice", entry)

	assert.True(t, before.IsEmpty(), "Put must not modify the receiver")
	assert.False(t, after.IsEmpty())
}

func TestPutNodeComposition(t *testing.T) {
	store, entry := fixture(t)
	ctx := context.Background()

	// t2 is an independently built trie with the capability at its root
	// segment; t1 indexes something unrelated.
	t2 := trie.New().Put("/alice", entry)
	t1 := trie.New()

	mounted := t1.PutNode("/mnt", t2)

	viaMount, foundMount, err := mounted.GetByPath(ctx, "/mnt/alice/docs/report.pdf", store)
	require.NoError(t, err)
	require.True(t, foundMount)

	direct, foundDirect, err := t2.GetByPath(ctx, "/alice/docs/report.pdf", store)
	require.NoError(t, err)
	require.True(t, foundDirect)

	assert.Equal(t, direct.Path(), viaMount.Path())

	// t1 itself is unmodified by the PutNode call.
	assert.True(t, t1.IsEmpty())
	_, found, err := t1.GetByPath(ctx, "/mnt/alice/docs/report.pdf", store)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveEntry(t *testing.T) {
	store, entry := fixture(t)
	ctx := context.Background()

	root := trie.New().Put("/alice", entry)
	removed := root.RemoveEntry("/alice")

	assert.True(t, removed.IsEmpty())
	_, found, err := removed.GetByPath(ctx, "/alice/docs/report.pdf", store)
	require.NoError(t, err)
	assert.False(t, found)

	// The original trie still resolves: removal is copy-on-write.
	_, found, err = root.GetByPath(ctx, "/alice/docs/report.pdf", store)
	require.NoError(t, err)
	assert.True(t, found)

	// Removing a missing path is a no-op.
	same := root.RemoveEntry("/never/there")
	_, found, err = same.GetByPath(ctx, "/alice/docs/report.pdf", store)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestHasWriteAccess(t *testing.T) {
	_, entry := fixture(t)

	readOnly := entry
	readOnly.Writable = false

	root := trie.New().Put("/alice", readOnly)
	assert.False(t, root.HasWriteAccess())

	root = root.Put("/alice/docs", entry)
	assert.True(t, root.HasWriteAccess(), "write access anywhere in the subtree counts")
}

func TestChildNames(t *testing.T) {
	_, entry := fixture(t)

	root := trie.New().
		Put("/zoe", entry).
		Put("/alice", entry).
		Put("/mid/deep", entry)

	assert.Equal(t, []string{"alice", "mid", "zoe"}, root.ChildNames())
}

func TestGetChildrenThroughEntryPoint(t *testing.T) {
	store, entry := fixture(t)
	ctx := context.Background()

	root := trie.New().Put("/alice", entry)

	children, err := root.GetChildren(ctx, "/alice/docs", store)
	require.NoError(t, err)

	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	assert.Equal(t, []string{"report.pdf", "work"}, names)
}
