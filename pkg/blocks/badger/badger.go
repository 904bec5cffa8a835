// Package badger implements a persistent block store backed by BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// Database Key Namespaces
//
// BadgerDB is a flat key-value store, so the two kinds of state are kept
// apart with key prefixes:
//
//	Data Type      Prefix   Key Format    Value
//	=============================================
//	Blocks         "b:"     b:<cid>       raw block bytes
//	Root pointers  "r:"     r:<owner>     cid (text)
//
// Blocks are immutable so "b:" entries are write-once; "r:" entries are the
// only keys ever overwritten.
const (
	blockPrefix = "b:"
	rootPrefix  = "r:"
)

// BadgerBlockStore implements blocks.Store using BadgerDB for persistence.
//
// Suitable when block data must survive restarts without an external
// service. BadgerDB's transactions give each Put/SetRoot atomicity; no
// additional locking is layered on top, so concurrent SetRoot calls for the
// same owner keep their last-writer-wins semantics.
type BadgerBlockStore struct {
	db     *badger.DB
	hasher crypto.Hasher
}

// NewBadgerBlockStore opens (or creates) a Badger database at path.
func NewBadgerBlockStore(ctx context.Context, path string, hasher crypto.Hasher) (*BadgerBlockStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", path, err)
	}

	return &BadgerBlockStore{db: db, hasher: hasher}, nil
}

func keyBlock(cid blocks.Cid) []byte {
	return []byte(blockPrefix + string(cid))
}

func keyRoot(owner string) []byte {
	return []byte(rootPrefix + owner)
}

// Put stores data under its content identifier.
func (s *BadgerBlockStore) Put(ctx context.Context, data []byte) (blocks.Cid, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cid := blocks.NewCid(s.hasher, data)

	err := s.db.Update(func(txn *badger.Txn) error {
		key := keyBlock(cid)

		// Blocks are content-addressed: if the key exists the bytes are
		// already identical, so skip the write.
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(key, data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store block: %w", err)
	}

	return cid, nil
}

// Get returns the block bytes for cid.
func (s *BadgerBlockStore) Get(ctx context.Context, cid blocks.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBlock(cid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("block %s: %w", cid, blocks.ErrBlockNotFound)
		}
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Has reports whether the block exists.
func (s *BadgerBlockStore) Has(ctx context.Context, cid blocks.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists := false

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyBlock(cid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}

	return exists, nil
}

// GetRoot returns the root pointer for owner.
func (s *BadgerBlockStore) GetRoot(ctx context.Context, owner string) (blocks.Cid, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var cid blocks.Cid
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRoot(owner))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		cid = blocks.Cid(val)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get root for %s: %w", owner, err)
	}

	return cid, found, nil
}

// SetRoot updates the root pointer for owner. Last writer wins.
func (s *BadgerBlockStore) SetRoot(ctx context.Context, owner string, cid blocks.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyRoot(owner), []byte(cid))
	})
	if err != nil {
		return fmt.Errorf("failed to set root for %s: %w", owner, err)
	}

	return nil
}

// Close closes the underlying database.
func (s *BadgerBlockStore) Close() error {
	return s.db.Close()
}
