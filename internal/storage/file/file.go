// Package file stores client state as one file per key under the user's config directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/and161185/learnhub-client/internal/crypto/seal"
	"github.com/and161185/learnhub-client/internal/errs"
)

const saltFile = "salt.bin"

// ErrCorruptSalt is returned by NewSealed when the stored salt is unreadable as one.
// Values sealed with the lost salt cannot be opened, so it is never regenerated.
var ErrCorruptSalt = errors.New("corrupt storage salt")

// Store is a directory-backed storage. Values are sealed when a passphrase is configured.
type Store struct {
	dir    string
	sealer *seal.Sealer
}

// DefaultDir returns $XDG_CONFIG_HOME/learnhub or ~/.config/learnhub.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "learnhub")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "learnhub")
}

// New opens (and creates) a plain store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewSealed opens a store whose values are encrypted with a key derived from passphrase.
// The salt is generated on first use and kept next to the values.
func NewSealed(dir, passphrase string) (*Store, error) {
	s, err := New(dir)
	if err != nil {
		return nil, err
	}
	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	sealer, err := seal.New(seal.DeriveKey([]byte(passphrase), salt))
	if err != nil {
		return nil, err
	}
	s.sealer = sealer
	return s, nil
}

func (s *Store) loadOrCreateSalt() ([]byte, error) {
	p := filepath.Join(s.dir, saltFile)
	b, err := os.ReadFile(p)
	switch {
	case err == nil && len(b) == seal.SaltLen:
		return b, nil
	case err == nil:
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", ErrCorruptSalt, p, len(b), seal.SaltLen)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	salt, err := seal.Rand(seal.SaltLen)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(s.dir, p, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".val")
}

// Get reads the value of key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if s.sealer == nil {
		return b, nil
	}
	pt, err := s.sealer.Open(key, b)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return pt, nil
}

// Set writes the value of key atomically with 0600 permissions.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(key, value)
		if err != nil {
			return fmt.Errorf("seal %q: %w", key, err)
		}
		value = sealed
	}
	return writeAtomic(s.dir, s.path(key), value)
}

// Delete removes key; a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
