// Package seal provides at-rest protection for client storage values.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Params
const (
	KeyLen  = 32
	SaltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// ErrShort is returned when a sealed blob is shorter than a nonce.
var ErrShort = errors.New("sealed blob too short")

// Rand returns n random bytes.
func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives a master key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// Sealer encrypts values with a per-name subkey; the name is also bound as AAD,
// so a blob copied under another name fails to open.
type Sealer struct {
	master []byte
}

// New returns a Sealer for a KeyLen master key.
func New(master []byte) (*Sealer, error) {
	if len(master) != KeyLen {
		return nil, errors.New("seal: bad master key length")
	}
	return &Sealer{master: append([]byte(nil), master...)}, nil
}

func (s *Sealer) subkey(name string) ([]byte, error) {
	r := hkdf.New(sha256.New, s.master, nil, []byte(name))
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

// Seal encrypts plaintext under name using XChaCha20-Poly1305 with a random nonce.
func (s *Sealer) Seal(name string, plaintext []byte) ([]byte, error) {
	key, err := s.subkey(name)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, []byte(name))...)
	return out, nil
}

// Open decrypts a blob produced by Seal for the same name.
func (s *Sealer) Open(name string, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, ErrShort
	}
	key, err := s.subkey(name)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, []byte(name))
}
