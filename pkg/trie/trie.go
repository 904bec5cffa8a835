// Package trie provides the persistent path trie that indexes entry points
// (capabilities) by filesystem path.
//
// A Node is an immutable value: Put, PutNode, and RemoveEntry return a new
// root and never modify the receiver, copying only the nodes along the
// affected path and sharing every untouched subtree. Snapshots can therefore
// be read concurrently without locks — callers thread the latest root
// through their own state.
//
// Lookups combine two sources: static trie structure (segments inserted via
// Put/PutNode) and dynamic resolution through a mounted entry point, which
// delegates the remaining path segments to the file store.
package trie

import (
	"context"
	"sort"

	"github.com/kestrelfs/kestrel/pkg/fs"
)

// Node is one path segment of the trie. The zero value is unusable; build
// tries from New.
type Node struct {
	entry    *fs.EntryPoint
	children map[string]*Node
}

// New returns an empty trie.
func New() *Node {
	return &Node{}
}

// Entry returns the entry point mounted at this exact node, if any.
func (n *Node) Entry() (fs.EntryPoint, bool) {
	if n.entry == nil {
		return fs.EntryPoint{}, false
	}
	return *n.entry, true
}

// IsEmpty reports whether no entry point exists anywhere in the subtree.
func (n *Node) IsEmpty() bool {
	if n.entry != nil {
		return false
	}
	for _, child := range n.children {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

// HasWriteAccess reports whether any entry point in the subtree grants
// write access.
func (n *Node) HasWriteAccess() bool {
	if n.entry != nil && n.entry.Writable {
		return true
	}
	for _, child := range n.children {
		if child.HasWriteAccess() {
			return true
		}
	}
	return false
}

// ChildNames returns the names of the immediate static children, sorted.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put returns a new trie in which path resolves to entry. Intermediate
// segments are created as needed; everything off the inserted path is
// shared with the receiver.
func (n *Node) Put(path fs.Path, entry fs.EntryPoint) *Node {
	return n.put(path.Segments(), func(target *Node) *Node {
		return &Node{entry: &entry, children: target.children}
	})
}

// PutNode returns a new trie with sub mounted at path, replacing whatever
// was there. Mounting lets independently built tries compose, e.g. grafting
// another user's shared subtree into the caller's namespace.
func (n *Node) PutNode(path fs.Path, sub *Node) *Node {
	return n.put(path.Segments(), func(*Node) *Node {
		return sub
	})
}

func (n *Node) put(segments []string, replace func(*Node) *Node) *Node {
	if len(segments) == 0 {
		return replace(n)
	}

	child, ok := n.children[segments[0]]
	if !ok {
		child = New()
	}

	copied := n.copyChildren()
	copied[segments[0]] = child.put(segments[1:], replace)

	return &Node{entry: n.entry, children: copied}
}

// RemoveEntry returns a new trie with whatever is mounted at path detached.
// Removing a path that resolves to nothing is a no-op returning an
// equivalent trie. Emptied intermediate nodes are pruned.
func (n *Node) RemoveEntry(path fs.Path) *Node {
	return n.remove(path.Segments())
}

func (n *Node) remove(segments []string) *Node {
	if len(segments) == 0 {
		// Detach the node entirely: the parent drops it below.
		return nil
	}

	child, ok := n.children[segments[0]]
	if !ok {
		return n
	}

	copied := n.copyChildren()
	replacement := child.remove(segments[1:])
	if replacement == nil || (replacement.entry == nil && len(replacement.children) == 0) {
		delete(copied, segments[0])
	} else {
		copied[segments[0]] = replacement
	}

	return &Node{entry: n.entry, children: copied}
}

func (n *Node) copyChildren() map[string]*Node {
	copied := make(map[string]*Node, len(n.children)+1)
	for name, child := range n.children {
		copied[name] = child
	}
	return copied
}

// GetByPath resolves path to a file handle. At each hop a static child
// match wins; when the static trie runs out, the deepest entry point on the
// walked path resolves the remaining segments through the store. A miss is
// reported as ok=false with no error.
func (n *Node) GetByPath(ctx context.Context, path fs.Path, store *fs.Store) (*fs.File, bool, error) {
	return n.getByPath(ctx, path.Segments(), store)
}

func (n *Node) getByPath(ctx context.Context, segments []string, store *fs.Store) (*fs.File, bool, error) {
	if len(segments) == 0 {
		if n.entry == nil {
			return nil, false, nil
		}
		return store.ResolveIn(ctx, *n.entry, "/")
	}

	if child, ok := n.children[segments[0]]; ok {
		return child.getByPath(ctx, segments[1:], store)
	}

	if n.entry != nil {
		return store.ResolveIn(ctx, *n.entry, fs.Join(segments...))
	}

	return nil, false, nil
}

// GetChildren returns the immediate children visible at path: the union of
// static trie children (each resolved through its own entry point) and the
// dynamically enumerable children of an entry point mounted at the resolved
// node.
func (n *Node) GetChildren(ctx context.Context, path fs.Path, store *fs.Store) ([]*fs.File, error) {
	return n.getChildren(ctx, path.Segments(), store)
}

func (n *Node) getChildren(ctx context.Context, segments []string, store *fs.Store) ([]*fs.File, error) {
	if len(segments) == 0 {
		var out []*fs.File

		for _, name := range n.ChildNames() {
			file, found, err := n.children[name].getByPath(ctx, nil, store)
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, file)
			}
		}

		if n.entry != nil {
			dir, found, err := store.ResolveIn(ctx, *n.entry, "/")
			if err != nil {
				return nil, err
			}
			if found && dir.IsDir() {
				dynamic, err := dir.Children(ctx)
				if err != nil {
					return nil, err
				}
				out = append(out, dynamic...)
			}
		}

		return out, nil
	}

	if child, ok := n.children[segments[0]]; ok {
		return child.getChildren(ctx, segments[1:], store)
	}

	if n.entry != nil {
		dir, found, err := store.ResolveIn(ctx, *n.entry, fs.Join(segments...))
		if err != nil || !found {
			return nil, err
		}
		if !dir.IsDir() {
			return nil, nil
		}
		return dir.Children(ctx)
	}

	return nil, nil
}
