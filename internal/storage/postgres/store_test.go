package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var _ storage.Storage = (*Store)(nil)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestStore_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, "default")
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM client_storage WHERE namespace=\$1 AND key=\$2`).
		WithArgs("default", storage.KeyToken).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("tok")))
	v, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok", string(v))

	mock.ExpectQuery(`SELECT value FROM client_storage WHERE namespace=\$1 AND key=\$2`).
		WithArgs("default", storage.KeySession).
		WillReturnError(pgx.ErrNoRows)
	_, err = s.Get(ctx, storage.KeySession)
	require.ErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`SELECT value FROM client_storage WHERE namespace=\$1 AND key=\$2`).
		WithArgs("default", storage.KeySession).
		WillReturnError(boom)
	_, err = s.Get(ctx, storage.KeySession)
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewStore(db, "profile-a")
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO client_storage \(namespace, key, value, updated_at\)`).
		WithArgs("profile-a", storage.KeyToken, []byte("tok")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Set(ctx, storage.KeyToken, []byte("tok")))

	mock.ExpectExec(`DELETE FROM client_storage WHERE namespace=\$1 AND key=\$2`).
		WithArgs("profile-a", storage.KeyToken).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, s.Delete(ctx, storage.KeyToken))

	require.NoError(t, mock.ExpectationsWereMet())
}
