// Package blocks defines the content-addressed block layer that backs the
// Kestrel file store.
//
// A block store holds two kinds of state:
//
//   - Immutable blocks, addressed by the BLAKE3 digest of their (already
//     encrypted) bytes. Blocks are never updated or deleted by this layer;
//     writing the same bytes twice yields the same Cid.
//   - Mutable root pointers, one per owner name. A root pointer is the only
//     mutable cell in the whole system: updating a file rewrites blocks
//     bottom-up and finishes with a single SetRoot, which is therefore the
//     commit point. Two concurrent writers race on SetRoot and the last one
//     wins; nothing below this layer serializes them.
//
// Backends live in subpackages (memory, badger, s3) and are selected via
// pkg/config factories.
package blocks

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// Cid is a content identifier: the lowercase hex BLAKE3-256 digest of the
// block's bytes. Treated as opaque by callers.
type Cid string

// NewCid computes the content identifier for data using the given hasher.
func NewCid(hasher crypto.Hasher, data []byte) Cid {
	return Cid(hex.EncodeToString(hasher.Sum(data)))
}

// ErrBlockNotFound indicates the requested block does not exist in the store.
var ErrBlockNotFound = errors.New("block not found")

// Store is the minimal contract a block backend must satisfy.
//
// Implementations must be safe for concurrent use. Get on a missing block
// returns ErrBlockNotFound; GetRoot on a missing owner returns ok=false with
// no error, since an owner with no tree yet is a normal condition.
type Store interface {
	// Put stores data and returns its content identifier. Storing bytes
	// that already exist is a no-op returning the same Cid.
	Put(ctx context.Context, data []byte) (Cid, error)

	// Get returns the block bytes for cid, or ErrBlockNotFound.
	Get(ctx context.Context, cid Cid) ([]byte, error)

	// Has reports whether the block exists without fetching it.
	Has(ctx context.Context, cid Cid) (bool, error)

	// GetRoot returns the current root pointer for owner. A missing
	// pointer is reported as ok=false, not as an error.
	GetRoot(ctx context.Context, owner string) (Cid, bool, error)

	// SetRoot updates the root pointer for owner. This is the atomic
	// commit point: concurrent callers race and the last write wins.
	SetRoot(ctx context.Context, owner string, cid Cid) error

	// Close releases backend resources.
	Close() error
}
