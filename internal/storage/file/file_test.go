package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/stretchr/testify/require"
)

var _ storage.Storage = (*Store)(nil)

func TestDefaultDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "learnhub"), DefaultDir())
}

func TestStore_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "lh"))
	require.NoError(t, err)

	_, err = s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyToken, []byte("tok")))
	got, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok", string(got))

	key := storage.CompletedKey(3)
	require.NoError(t, s.Set(ctx, key, []byte("[1,2]")))
	fi, err := os.Stat(s.path(key))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	require.False(t, strings.Contains(filepath.Base(s.path(key)), ":"))

	require.NoError(t, s.Delete(ctx, storage.KeyToken))
	require.NoError(t, s.Delete(ctx, storage.KeyToken))
	_, err = s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSealedStore_EncryptsAtRest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewSealed(dir, "correct horse")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, storage.KeySession, []byte(`{"token":"secret-token"}`)))

	raw, err := os.ReadFile(s.path(storage.KeySession))
	require.NoError(t, err)
	require.False(t, bytes.Contains(raw, []byte("secret-token")))

	// reopen with the same passphrase reuses the salt
	s2, err := NewSealed(dir, "correct horse")
	require.NoError(t, err)
	got, err := s2.Get(ctx, storage.KeySession)
	require.NoError(t, err)
	require.Equal(t, `{"token":"secret-token"}`, string(got))

	s3, err := NewSealed(dir, "wrong")
	require.NoError(t, err)
	_, err = s3.Get(ctx, storage.KeySession)
	require.Error(t, err)
}

func TestSealedStore_CorruptSaltIsKept(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewSealed(dir, "correct horse")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, storage.KeyToken, []byte("tok")))

	saltPath := filepath.Join(dir, saltFile)
	require.NoError(t, os.WriteFile(saltPath, []byte("short"), 0o600))

	_, err = NewSealed(dir, "correct horse")
	require.ErrorIs(t, err, ErrCorruptSalt)

	b, err := os.ReadFile(saltPath)
	require.NoError(t, err)
	require.Equal(t, "short", string(b), "salt must not be replaced")
}
