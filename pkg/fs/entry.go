package fs

// EntryPoint is a capability granting access to a file or directory subtree:
// the owner whose tree contains it, the absolute path of the subtree root,
// and the key material needed to decrypt (and, when Writable, rewrite) it.
//
// Entry points are immutable values. They are handed between principals when
// a subtree is shared and mounted into the recipient's PathTrie; whoever
// presents one can exercise it.
type EntryPoint struct {
	// Owner is the principal whose root pointer anchors this subtree.
	Owner string `cbor:"owner"`

	// Root is the absolute path of the granted subtree inside the owner's
	// tree, e.g. "/alice/shared/projects".
	Root Path `cbor:"root"`

	// Key is the symmetric key for the owner's tree nodes.
	Key []byte `cbor:"key"`

	// Writable reports whether this capability grants write access.
	Writable bool `cbor:"writable"`
}
