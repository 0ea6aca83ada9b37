package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_ContainsGooseMigrations(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		b, err := fs.ReadFile(FS, f)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(b), "-- +goose Up"), f)
		require.True(t, strings.Contains(string(b), "-- +goose Down"), f)
	}
}
