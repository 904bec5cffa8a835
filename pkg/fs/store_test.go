package fs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelfs/kestrel/pkg/blocks/memory"
	"github.com/kestrelfs/kestrel/pkg/crypto"
	"github.com/kestrelfs/kestrel/pkg/fs"
)

// newTestStore builds a file store over an in-memory block backend with one
// initialized owner.
func newTestStore(t *testing.T, owner string) *fs.Store {
	t.Helper()
	ctx := context.Background()

	suite := crypto.NewSuite()
	backend, err := memory.NewMemoryBlockStore(ctx, suite.Hasher)
	require.NoError(t, err)

	store := fs.NewStore(backend, suite)

	key, err := suite.NewKey()
	require.NoError(t, err)
	store.RegisterKey(owner, key)
	require.NoError(t, store.InitOwner(ctx, owner))

	return store
}

func TestResolveMissingPath(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	_, found, err := store.Resolve(ctx, "/alice/never/created")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveUnknownOwner(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	_, _, err := store.Resolve(ctx, "/bob/anything")
	require.Error(t, err)

	var storeErr *fs.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, fs.ErrNoKey, storeErr.Code)
}

func TestMkdirAndChild(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	root, found, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, root.IsDir())

	// Mkdir returns the updated parent, not the child.
	updated, err := root.Mkdir(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, fs.Path("/alice"), updated.Path())

	child, found, err := updated.Child(ctx, "docs")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, child.IsDir())
	assert.Equal(t, fs.Path("/alice/docs"), child.Path())

	// Repeating the mkdir is a no-op.
	_, err = updated.Mkdir(ctx, "docs")
	require.NoError(t, err)
}

func TestWriteAndReadBack(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	root, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	content := []byte("hello encrypted world")
	updated, err := root.WriteNew(ctx, "note.txt", content)
	require.NoError(t, err)

	file, found, err := updated.Child(ctx, "note.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, file.IsDir())
	assert.Equal(t, uint64(len(content)), file.Size())

	got, err := file.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestOverwrite(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	root, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	_, err = root.WriteNew(ctx, "note.txt", []byte("v1"))
	require.NoError(t, err)

	file, found, err := store.Resolve(ctx, "/alice/note.txt")
	require.NoError(t, err)
	require.True(t, found)

	fresh, err := file.Overwrite(ctx, []byte("v2"))
	require.NoError(t, err)

	got, err := fresh.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// The old handle still reads its snapshot.
	old, err := file.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), old)

	// A new resolution sees the committed content.
	resolved, found, err := store.Resolve(ctx, "/alice/note.txt")
	require.NoError(t, err)
	require.True(t, found)
	got, err = resolved.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestDeepDirectoryChain(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	dir, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		dir, err = dir.Mkdir(ctx, name)
		require.NoError(t, err)
		child, found, err := dir.Child(ctx, name)
		require.NoError(t, err)
		require.True(t, found)
		dir = child
	}

	_, err = dir.WriteNew(ctx, "leaf.txt", []byte("deep"))
	require.NoError(t, err)

	leaf, found, err := store.Resolve(ctx, "/alice/a/b/c/leaf.txt")
	require.NoError(t, err)
	require.True(t, found)

	got, err := leaf.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), got)
}

func TestChildrenSorted(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	root, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		root, err = root.WriteNew(ctx, name, []byte(name))
		require.NoError(t, err)
	}

	children, err := root.Children(ctx)
	require.NoError(t, err)

	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestResolveInEntryPoint(t *testing.T) {
	store := newTestStore(t, "alice")
	ctx := context.Background()

	root, _, err := store.Resolve(ctx, "/alice")
	require.NoError(t, err)

	updated, err := root.Mkdir(ctx, "shared")
	require.NoError(t, err)
	shared, _, err := updated.Child(ctx, "shared")
	require.NoError(t, err)
	_, err = shared.WriteNew(ctx, "doc.txt", []byte("for bob"))
	require.NoError(t, err)

	key, _ := store.Key("alice")
	entry := fs.EntryPoint{
		Owner:    "alice",
		Root:     "/alice/shared",
		Key:      key,
		Writable: false,
	}

	file, found, err := store.ResolveIn(ctx, entry, "doc.txt")
	require.NoError(t, err)
	require.True(t, found)

	got, err := file.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("for bob"), got)

	// The capability is read-only; writes through it must fail.
	_, err = file.Overwrite(ctx, []byte("tampered"))
	require.Error(t, err)

	var storeErr *fs.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, fs.ErrReadOnly, storeErr.Code)
}
