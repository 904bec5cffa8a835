// Package session ties the pieces together for one signed-in principal: the
// capability trie, the encrypted file store, and the sharing cache.
//
// State is explicit and per-session. Nothing here is a process-wide
// singleton: two sessions over the same store see independent tries and can
// mount different foreign capabilities.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelfs/kestrel/internal/logger"
	"github.com/kestrelfs/kestrel/pkg/fs"
	"github.com/kestrelfs/kestrel/pkg/sharing"
	"github.com/kestrelfs/kestrel/pkg/trie"
)

// Session is the signed-in view of one principal. It owns the root trie
// (guarded by mu; the trie itself is immutable, mutations swap the root) and
// the single sharing cache for the principal's outbound grants.
type Session struct {
	id    string
	owner string
	store *fs.Store
	cache *sharing.Cache

	mu   sync.RWMutex
	root *trie.Node
}

// New opens a session for owner with its root key. The owner's tree is
// created on first sign-in; the session's trie starts with the owner's own
// entry point mounted at /<owner>.
func New(ctx context.Context, store *fs.Store, owner string, key []byte) (*Session, error) {
	if owner == "" {
		return nil, &fs.StoreError{Code: fs.ErrInvalidArgument, Message: "empty owner"}
	}

	store.RegisterKey(owner, key)
	if err := store.InitOwner(ctx, owner); err != nil {
		return nil, fmt.Errorf("initializing owner tree: %w", err)
	}

	ownRoot := fs.NewPath(owner)
	entry := fs.EntryPoint{
		Owner:    owner,
		Root:     ownRoot,
		Key:      key,
		Writable: true,
	}

	s := &Session{
		id:    uuid.NewString(),
		owner: owner,
		store: store,
		root:  trie.New().Put(ownRoot, entry),
	}
	s.cache = sharing.NewCache(s.Resolve, owner)

	logger.Debug("session %s opened for %s", s.id, owner)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Owner returns the signed-in principal's name.
func (s *Session) Owner() string {
	return s.owner
}

// Cache returns the session's sharing cache.
func (s *Session) Cache() *sharing.Cache {
	return s.cache
}

// Trie returns the current trie root. The returned snapshot stays valid and
// consistent regardless of later mounts.
func (s *Session) Trie() *trie.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Mount grafts a capability into the session's namespace at p. Used for
// entry points received from other principals.
func (s *Session) Mount(p fs.Path, entry fs.EntryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = s.root.Put(p, entry)
}

// MountNode grafts an independently built trie at p.
func (s *Session) MountNode(p fs.Path, node *trie.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = s.root.PutNode(p, node)
}

// Unmount detaches whatever is mounted at p. Unknown paths are a no-op.
func (s *Session) Unmount(p fs.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = s.root.RemoveEntry(p)
}

// Resolve looks p up through the session's trie. A miss is ok=false with no
// error.
func (s *Session) Resolve(ctx context.Context, p fs.Path) (*fs.File, bool, error) {
	return s.Trie().GetByPath(ctx, p, s.store)
}

// Children lists the entries visible at p, static mounts and store contents
// combined.
func (s *Session) Children(ctx context.Context, p fs.Path) ([]*fs.File, error) {
	return s.Trie().GetChildren(ctx, p, s.store)
}

// GrantRead records that names may read the entry at p.
func (s *Session) GrantRead(ctx context.Context, p fs.Path, names ...string) error {
	return s.grant(ctx, sharing.AccessRead, p, names)
}

// GrantWrite records that names may write the entry at p.
func (s *Session) GrantWrite(ctx context.Context, p fs.Path, names ...string) error {
	return s.grant(ctx, sharing.AccessWrite, p, names)
}

func (s *Session) grant(ctx context.Context, access sharing.Access, p fs.Path, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, err := s.cache.AddSharedWith(ctx, access, p, names); err != nil {
		return fmt.Errorf("recording %s grant on %s: %w", access, p, err)
	}
	logger.Info("granted %s on %s to %v", access, p, names)
	return nil
}

// RevokeRead records that names lost read access to the entry at p.
func (s *Session) RevokeRead(ctx context.Context, p fs.Path, names ...string) error {
	return s.revoke(ctx, sharing.AccessRead, p, names)
}

// RevokeWrite records that names lost write access to the entry at p.
func (s *Session) RevokeWrite(ctx context.Context, p fs.Path, names ...string) error {
	return s.revoke(ctx, sharing.AccessWrite, p, names)
}

func (s *Session) revoke(ctx context.Context, access sharing.Access, p fs.Path, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, err := s.cache.RemoveSharedWith(ctx, access, p, names); err != nil {
		return fmt.Errorf("recording %s revocation on %s: %w", access, p, err)
	}
	logger.Info("revoked %s on %s from %v", access, p, names)
	return nil
}

// RevokeAll drops every recorded grant on the entry at p.
func (s *Session) RevokeAll(ctx context.Context, p fs.Path) error {
	if _, err := s.cache.ClearSharedWith(ctx, p); err != nil {
		return fmt.Errorf("clearing grants on %s: %w", p, err)
	}
	logger.Info("revoked all grants on %s", p)
	return nil
}

// SharedWith returns the grant state of the entry at p.
func (s *Session) SharedWith(ctx context.Context, p fs.Path) (sharing.FileShareState, error) {
	return s.cache.GetSharedWith(ctx, p)
}

// ReadShares returns every read grant in or below start, keyed by the full
// path of the shared entry.
func (s *Session) ReadShares(ctx context.Context, start fs.Path) (map[fs.Path][]string, error) {
	return s.cache.GetAllReadShares(ctx, start)
}

// WriteShares returns every write grant in or below start, keyed by the
// full path of the shared entry.
func (s *Session) WriteShares(ctx context.Context, start fs.Path) (map[fs.Path][]string, error) {
	return s.cache.GetAllWriteShares(ctx, start)
}
