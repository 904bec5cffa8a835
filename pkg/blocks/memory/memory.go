// Package memory implements an in-memory block store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// MemoryBlockStore implements blocks.Store using in-memory maps.
//
// Designed for tests and development. All data is lost when the process
// exits. Thread-safe: reads take a shared lock, writes an exclusive one.
// Block bytes are copied on Put and Get so callers can never alias the
// store's internal buffers.
type MemoryBlockStore struct {
	hasher crypto.Hasher

	mu     sync.RWMutex
	blocks map[blocks.Cid][]byte
	roots  map[string]blocks.Cid
}

// NewMemoryBlockStore creates an empty in-memory block store.
func NewMemoryBlockStore(ctx context.Context, hasher crypto.Hasher) (*MemoryBlockStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryBlockStore{
		hasher: hasher,
		blocks: make(map[blocks.Cid][]byte),
		roots:  make(map[string]blocks.Cid),
	}, nil
}

// Put stores data under its content identifier.
func (s *MemoryBlockStore) Put(ctx context.Context, data []byte) (blocks.Cid, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cid := blocks.NewCid(s.hasher, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blocks[cid]; !exists {
		copied := make([]byte, len(data))
		copy(copied, data)
		s.blocks[cid] = copied
	}

	return cid, nil
}

// Get returns a copy of the block bytes for cid.
func (s *MemoryBlockStore) Get(ctx context.Context, cid blocks.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.blocks[cid]
	if !exists {
		return nil, fmt.Errorf("block %s: %w", cid, blocks.ErrBlockNotFound)
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Has reports whether the block exists.
func (s *MemoryBlockStore) Has(ctx context.Context, cid blocks.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blocks[cid]
	return exists, nil
}

// GetRoot returns the root pointer for owner.
func (s *MemoryBlockStore) GetRoot(ctx context.Context, owner string) (blocks.Cid, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cid, exists := s.roots[owner]
	return cid, exists, nil
}

// SetRoot updates the root pointer for owner. Last writer wins.
func (s *MemoryBlockStore) SetRoot(ctx context.Context, owner string, cid blocks.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots[owner] = cid
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryBlockStore) Close() error {
	return nil
}
