package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion byte = 1
	keySize          = chacha20poly1305.KeySize

	minKDFMemoryKB uint32 = 8 * 1024
)

var (
	// ErrSealedCorrupt is returned when a stored value fails authentication.
	ErrSealedCorrupt = errors.New("sealed credential corrupt")
	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("sealing key must be 32 bytes")
)

// Sealer encrypts entry values at rest. The entry name is bound as associated
// data, so a value sealed for one entry does not open under another.
type Sealer interface {
	Seal(entry string, plaintext []byte) ([]byte, error)
	Open(entry string, sealed []byte) ([]byte, error)
}

// KDFParams tunes argon2id key derivation for passphrase sealers.
type KDFParams struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
}

// DefaultKDFParams matches the interactive argon2id profile.
func DefaultKDFParams() KDFParams {
	return KDFParams{Memory: 64 * 1024, Time: 1, Parallelism: 4}
}

// AEADSealer seals values with XChaCha20-Poly1305.
type AEADSealer struct {
	key [keySize]byte
}

// NewSealer builds a sealer from a raw 32-byte key.
func NewSealer(key []byte) (*AEADSealer, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	s := &AEADSealer{}
	copy(s.key[:], key)
	return s, nil
}

// NewPassphraseSealer derives the sealing key from passphrase with argon2id.
// The salt must be stable across runs for the same namespace; it is hashed so
// callers may pass a readable label.
func NewPassphraseSealer(passphrase string, salt []byte, params KDFParams) (*AEADSealer, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	if params.Memory < minKDFMemoryKB || params.Time < 1 || params.Parallelism < 1 {
		return nil, errors.New("argon2 parameters below minimum")
	}
	sum := sha256.Sum256(salt)
	key := argon2.IDKey([]byte(passphrase), sum[:16], params.Time, params.Memory, params.Parallelism, keySize)
	return NewSealer(key)
}

// GenerateKey returns a fresh random sealing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate sealing key: %w", err)
	}
	return key, nil
}

// Seal returns version || nonce || ciphertext.
func (s *AEADSealer) Seal(entry string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = sealVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, fmt.Errorf("seal nonce: %w", err)
	}
	return aead.Seal(out, out[1:], plaintext, associatedData(entry)), nil
}

// Open reverses Seal.
func (s *AEADSealer) Open(entry string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}

	headerLen := 1 + aead.NonceSize()
	if len(sealed) < headerLen+aead.Overhead() || sealed[0] != sealVersion {
		return nil, ErrSealedCorrupt
	}
	plain, err := aead.Open(nil, sealed[1:headerLen], sealed[headerLen:], associatedData(entry))
	if err != nil {
		return nil, ErrSealedCorrupt
	}
	return plain, nil
}

func associatedData(entry string) []byte {
	return []byte("authsession/" + entry)
}
