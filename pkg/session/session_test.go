package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelfs/kestrel/pkg/blocks/memory"
	"github.com/kestrelfs/kestrel/pkg/crypto"
	"github.com/kestrelfs/kestrel/pkg/fs"
	"github.com/kestrelfs/kestrel/pkg/session"
)

func newTestStore(t *testing.T) (*fs.Store, *crypto.Suite) {
	t.Helper()

	suite := crypto.NewSuite()
	backend, err := memory.NewMemoryBlockStore(context.Background(), suite.Hasher)
	require.NoError(t, err)

	return fs.NewStore(backend, suite), suite
}

func newTestSession(t *testing.T, store *fs.Store, suite *crypto.Suite, owner string) *session.Session {
	t.Helper()

	key, err := suite.NewKey()
	require.NoError(t, err)

	sess, err := session.New(context.Background(), store, owner, key)
	require.NoError(t, err)
	return sess
}

func TestNewSessionInitializesOwnerTree(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")
	ctx := context.Background()

	assert.Equal(t, "alice", sess.Owner())
	assert.NotEmpty(t, sess.ID())

	root, found, err := sess.Resolve(ctx, "/alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, root.IsDir())
	assert.True(t, root.Writable())
}

func TestSessionIDsAreUnique(t *testing.T) {
	store, suite := newTestStore(t)

	a := newTestSession(t, store, suite, "alice")
	b := newTestSession(t, store, suite, "bob")
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestGrantAndSharedWith(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")
	ctx := context.Background()

	require.NoError(t, sess.GrantRead(ctx, "/alice/docs/report.pdf", "bob"))
	require.NoError(t, sess.GrantWrite(ctx, "/alice/docs/report.pdf", "carol"))

	state, err := sess.SharedWith(ctx, "/alice/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, state.ReadAccess)
	assert.Equal(t, []string{"carol"}, state.WriteAccess)
}

func TestGrantNoNamesIsNoOp(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")
	ctx := context.Background()

	require.NoError(t, sess.GrantRead(ctx, "/alice/docs/report.pdf"))

	// Nothing was materialized.
	_, found, err := sess.Resolve(ctx, "/alice/.capabilitycache")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRevoke(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")
	ctx := context.Background()

	require.NoError(t, sess.GrantRead(ctx, "/alice/notes.txt", "bob", "carol"))
	require.NoError(t, sess.RevokeRead(ctx, "/alice/notes.txt", "bob"))

	state, err := sess.SharedWith(ctx, "/alice/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, state.ReadAccess)

	require.NoError(t, sess.RevokeAll(ctx, "/alice/notes.txt"))

	state, err = sess.SharedWith(ctx, "/alice/notes.txt")
	require.NoError(t, err)
	assert.True(t, state.IsEmpty())
}

func TestShareProjections(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")
	ctx := context.Background()

	require.NoError(t, sess.GrantRead(ctx, "/alice/docs/a.txt", "bob"))
	require.NoError(t, sess.GrantWrite(ctx, "/alice/docs/b.txt", "carol"))

	reads, err := sess.ReadShares(ctx, "/alice/docs")
	require.NoError(t, err)
	assert.Equal(t, map[fs.Path][]string{"/alice/docs/a.txt": {"bob"}}, reads)

	writes, err := sess.WriteShares(ctx, "/alice/docs")
	require.NoError(t, err)
	assert.Equal(t, map[fs.Path][]string{"/alice/docs/b.txt": {"carol"}}, writes)
}

func TestMountForeignCapability(t *testing.T) {
	store, suite := newTestStore(t)
	alice := newTestSession(t, store, suite, "alice")
	bob := newTestSession(t, store, suite, "bob")
	ctx := context.Background()

	// Bob writes a file and hands alice a read-only capability to his tree.
	bobRoot, found, err := bob.Resolve(ctx, "/bob")
	require.NoError(t, err)
	require.True(t, found)
	updatedRoot, err := bobRoot.Mkdir(ctx, "docs")
	require.NoError(t, err)
	docs, _, err := updatedRoot.Child(ctx, "docs")
	require.NoError(t, err)
	_, err = docs.WriteNew(ctx, "plan.txt", []byte("attack at dawn"))
	require.NoError(t, err)

	bobKey, ok := store.Key("bob")
	require.True(t, ok)
	alice.Mount("/friends/bob", fs.EntryPoint{
		Owner: "bob",
		Root:  "/bob/docs",
		Key:   bobKey,
	})

	file, found, err := alice.Resolve(ctx, "/friends/bob/plan.txt")
	require.NoError(t, err)
	require.True(t, found)
	data, err := file.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("attack at dawn"), data)

	// The capability is read-only.
	assert.False(t, file.Writable())

	alice.Unmount("/friends/bob")
	_, found, err = alice.Resolve(ctx, "/friends/bob/plan.txt")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTrieSnapshotSurvivesMount(t *testing.T) {
	store, suite := newTestStore(t)
	sess := newTestSession(t, store, suite, "alice")

	before := sess.Trie()
	sess.Mount("/mnt/x", fs.EntryPoint{Owner: "alice", Root: "/alice"})

	assert.Equal(t, []string{"alice"}, before.ChildNames(),
		"earlier snapshot must not see later mounts")
	assert.Equal(t, []string{"alice", "mnt"}, sess.Trie().ChildNames())
}
