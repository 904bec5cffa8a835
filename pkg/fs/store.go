// Package fs implements the encrypted, content-addressed file and directory
// layer of Kestrel on top of a blocks.Store.
//
// Every node (directory listing or file content) is CBOR-serialized where
// structured, sealed with the owning tree's symmetric key, and stored as an
// immutable block addressed by the hash of its ciphertext. Mutations are
// copy-on-write: changing any node produces new blocks along the path up to
// the tree root, followed by a single root-pointer swap, which is the unit
// of atomicity for the whole store. Readers observe either the tree before
// the swap or after it, never a partial state.
//
// Concurrent writers to the same owner tree race on that swap; the last one
// wins and the earlier writer's blocks become garbage. This layer
// deliberately adds no locking on top (see the sharing cache's documented
// lost-update hazard).
package fs

import (
	"context"
	"sort"
	"sync"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// Store resolves paths to files across per-owner encrypted trees.
type Store struct {
	blocks blocks.Store
	suite  *crypto.Suite

	// keys holds the tree key for each owner this process can read.
	// A signed-in principal registers its own key at session start;
	// foreign subtrees are reached through entry points, which carry
	// their key inline.
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewStore creates a file store over the given block backend.
func NewStore(blockStore blocks.Store, suite *crypto.Suite) *Store {
	return &Store{
		blocks: blockStore,
		suite:  suite,
		keys:   make(map[string][]byte),
	}
}

// Blocks exposes the underlying block store.
func (s *Store) Blocks() blocks.Store {
	return s.blocks
}

// RegisterKey makes owner's tree readable and writable through Resolve.
func (s *Store) RegisterKey(owner string, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[owner] = key
}

// Key returns the registered tree key for owner.
func (s *Store) Key(owner string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[owner]
	return key, ok
}

// InitOwner materializes an empty root directory for owner if none exists.
// The owner's key must already be registered. Idempotent.
func (s *Store) InitOwner(ctx context.Context, owner string) error {
	key, ok := s.Key(owner)
	if !ok {
		return &StoreError{Code: ErrNoKey, Message: "no key registered for owner", Path: NewPath(owner)}
	}

	_, found, err := s.blocks.GetRoot(ctx, owner)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	rootCid, err := s.sealNode(ctx, key, newDirNode())
	if err != nil {
		return err
	}

	return s.blocks.SetRoot(ctx, owner, rootCid)
}

// Resolve walks p from its owner's root. A missing path is reported as
// ok=false with no error; only structural or backend failures return one.
func (s *Store) Resolve(ctx context.Context, p Path) (*File, bool, error) {
	p = NewPath(string(p))

	owner := p.Owner()
	if owner == "" {
		return nil, false, nil
	}

	key, ok := s.Key(owner)
	if !ok {
		return nil, false, &StoreError{Code: ErrNoKey, Message: "no key registered for owner", Path: p}
	}

	return s.resolveWithKey(ctx, owner, key, p, true)
}

// ResolveIn walks rel inside the subtree granted by the entry point,
// using the key material the capability carries.
func (s *Store) ResolveIn(ctx context.Context, entry EntryPoint, rel Path) (*File, bool, error) {
	full := entry.Root.ResolvePath(rel)
	return s.resolveWithKey(ctx, entry.Owner, entry.Key, full, entry.Writable)
}

func (s *Store) resolveWithKey(ctx context.Context, owner string, key []byte, p Path, writable bool) (*File, bool, error) {
	rootCid, found, err := s.blocks.GetRoot(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	current := &File{
		store:    s,
		owner:    owner,
		key:      key,
		writable: writable,
		path:     NewPath(owner),
		dir:      true,
		cid:      rootCid,
	}

	segments := p.Segments()
	for _, segment := range segments[1:] {
		if !current.dir {
			// A path component routes through a regular file: the
			// target cannot exist.
			return nil, false, nil
		}

		node, err := s.loadNode(ctx, key, current.cid, current.path)
		if err != nil {
			return nil, false, err
		}

		ref, ok := node.Children[segment]
		if !ok {
			return nil, false, nil
		}

		current = &File{
			store:    s,
			owner:    owner,
			key:      key,
			writable: writable,
			path:     current.path.Resolve(segment),
			dir:      ref.Dir,
			size:     ref.Size,
			cid:      ref.Cid,
		}
	}

	return current, true, nil
}

// updateDir applies mutate to the directory node at dirPath and commits the
// rewritten chain: the mutated node and every ancestor get new blocks, then
// the owner's root pointer is swapped in a single call.
func (s *Store) updateDir(ctx context.Context, owner string, key []byte, dirPath Path, mutate func(*dirNode) error) error {
	rootCid, found, err := s.blocks.GetRoot(ctx, owner)
	if err != nil {
		return err
	}
	if !found {
		return &StoreError{Code: ErrNotFound, Message: "owner has no root", Path: dirPath}
	}

	segments := dirPath.Segments()
	if len(segments) == 0 || segments[0] != owner {
		return &StoreError{Code: ErrInvalidArgument, Message: "path outside owner tree", Path: dirPath}
	}

	// Load the chain of directory nodes from the root down to dirPath.
	chain := make([]*dirNode, 0, len(segments))
	walked := NewPath(owner)

	node, err := s.loadNode(ctx, key, rootCid, walked)
	if err != nil {
		return err
	}
	chain = append(chain, node)

	for _, segment := range segments[1:] {
		ref, ok := node.Children[segment]
		if !ok {
			return &StoreError{Code: ErrNotFound, Message: "directory not found", Path: walked.Resolve(segment)}
		}
		if !ref.Dir {
			return &StoreError{Code: ErrNotDirectory, Message: "not a directory", Path: walked.Resolve(segment)}
		}

		walked = walked.Resolve(segment)
		node, err = s.loadNode(ctx, key, ref.Cid, walked)
		if err != nil {
			return err
		}
		chain = append(chain, node)
	}

	if err := mutate(chain[len(chain)-1]); err != nil {
		return err
	}

	// Reseal bottom-up, rewiring each parent's child pointer.
	newCid, err := s.sealNode(ctx, key, chain[len(chain)-1])
	if err != nil {
		return err
	}
	for i := len(chain) - 2; i >= 0; i-- {
		parent := chain[i]
		parent.Children[segments[i+1]] = childRef{Cid: newCid, Dir: true}
		newCid, err = s.sealNode(ctx, key, parent)
		if err != nil {
			return err
		}
	}

	return s.blocks.SetRoot(ctx, owner, newCid)
}

func sortedNames(node *dirNode) []string {
	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
