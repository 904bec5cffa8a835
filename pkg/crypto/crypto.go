// Package crypto bundles the primitive services the rest of Kestrel treats
// as opaque: content hashing, randomness, and symmetric sealing.
//
// The sharing layer never inspects these services; it only threads them
// through to the store. Keeping them behind small interfaces lets tests
// substitute deterministic implementations without touching the store code.
package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the symmetric key length used throughout the store.
const KeySize = chacha20poly1305.KeySize

// Hasher computes content addresses.
type Hasher interface {
	// Sum returns the digest of data. The digest length is fixed per
	// implementation (32 bytes for the default BLAKE3 hasher).
	Sum(data []byte) []byte
}

// Random produces cryptographically secure random bytes.
type Random interface {
	// Bytes returns n random bytes.
	Bytes(n int) ([]byte, error)
}

// SecretBox seals and opens byte payloads with a symmetric key.
type SecretBox interface {
	// Seal encrypts plaintext with key. The nonce is generated internally
	// and prepended to the returned ciphertext.
	Seal(key, plaintext []byte) ([]byte, error)

	// Open decrypts ciphertext produced by Seal with the same key.
	Open(key, ciphertext []byte) ([]byte, error)
}

// Suite groups the primitive services. One Suite is constructed at process
// start and shared by every store and session.
type Suite struct {
	Hasher Hasher
	Random Random
	Box    SecretBox
}

// NewSuite returns the production suite: BLAKE3 hashing, crypto/rand
// randomness, and XChaCha20-Poly1305 sealing.
func NewSuite() *Suite {
	return &Suite{
		Hasher: blake3Hasher{},
		Random: systemRandom{},
		Box:    xchachaBox{},
	}
}

// NewKey generates a fresh symmetric key.
func (s *Suite) NewKey() ([]byte, error) {
	return s.Random.Bytes(KeySize)
}

type blake3Hasher struct{}

func (blake3Hasher) Sum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

type systemRandom struct{}

func (systemRandom) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

type xchachaBox struct{}

func (xchachaBox) Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (xchachaBox) Open(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed box: %w", err)
	}

	return plaintext, nil
}
