package fs

import (
	"context"
	"fmt"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	"github.com/kestrelfs/kestrel/pkg/codec"
)

// childRef is a directory node's pointer to one child: the content address
// of the child's (encrypted) block, its kind, and the plaintext size for
// files.
type childRef struct {
	Cid  blocks.Cid `cbor:"cid"`
	Dir  bool       `cbor:"dir"`
	Size uint64     `cbor:"size"`
}

// dirNode is the serialized form of one directory: a mapping from child
// name to childRef. Nodes are CBOR-encoded, sealed with the owner's tree
// key, and stored as blocks; the block's content address therefore changes
// on every modification, which is what forces the copy-on-write rewrite up
// to the root.
type dirNode struct {
	Children map[string]childRef `cbor:"children"`
}

func newDirNode() *dirNode {
	return &dirNode{Children: make(map[string]childRef)}
}

// sealNode serializes and encrypts node, stores it, and returns its address.
func (s *Store) sealNode(ctx context.Context, key []byte, node *dirNode) (blocks.Cid, error) {
	plain, err := codec.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("failed to serialize directory node: %w", err)
	}

	sealed, err := s.suite.Box.Seal(key, plain)
	if err != nil {
		return "", fmt.Errorf("failed to seal directory node: %w", err)
	}

	return s.blocks.Put(ctx, sealed)
}

// loadNode fetches, decrypts, and deserializes the directory node at cid.
// Decryption or decoding failures mean the stored structure is corrupt.
func (s *Store) loadNode(ctx context.Context, key []byte, cid blocks.Cid, p Path) (*dirNode, error) {
	sealed, err := s.blocks.Get(ctx, cid)
	if err != nil {
		return nil, err
	}

	plain, err := s.suite.Box.Open(key, sealed)
	if err != nil {
		return nil, &StoreError{Code: ErrCorrupted, Message: "undecryptable directory node", Path: p}
	}

	node := newDirNode()
	if err := codec.Unmarshal(plain, node); err != nil {
		return nil, &StoreError{Code: ErrCorrupted, Message: "malformed directory node", Path: p}
	}
	if node.Children == nil {
		node.Children = make(map[string]childRef)
	}

	return node, nil
}

// sealContent encrypts and stores raw file content.
func (s *Store) sealContent(ctx context.Context, key, data []byte) (blocks.Cid, error) {
	sealed, err := s.suite.Box.Seal(key, data)
	if err != nil {
		return "", fmt.Errorf("failed to seal file content: %w", err)
	}

	return s.blocks.Put(ctx, sealed)
}

// openContent fetches and decrypts file content at cid.
func (s *Store) openContent(ctx context.Context, key []byte, cid blocks.Cid, p Path) ([]byte, error) {
	sealed, err := s.blocks.Get(ctx, cid)
	if err != nil {
		return nil, err
	}

	plain, err := s.suite.Box.Open(key, sealed)
	if err != nil {
		return nil, &StoreError{Code: ErrCorrupted, Message: "undecryptable file content", Path: p}
	}

	return plain, nil
}
