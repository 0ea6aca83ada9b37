package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/gateway"
	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/routes"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/and161185/learnhub-client/internal/storage/memory"
	"github.com/and161185/learnhub-client/internal/testutil/fakeapi"
	"github.com/and161185/learnhub-client/internal/ui"
)

func setup(t *testing.T) (*Client, *fakeapi.API, *memory.Store) {
	t.Helper()
	fa := fakeapi.New()
	srv := fakeapi.Start(t, fa)
	st := memory.New()
	rec := &ui.Recorder{}
	gw, err := gateway.New(srv.URL, st, routes.Default(), gateway.WithNotifier(rec), gateway.WithNavigator(rec))
	require.NoError(t, err)
	return New(gw), fa, st
}

func TestClient_Login(t *testing.T) {
	t.Parallel()
	c, fa, _ := setup(t)
	fa.AddUser(fakeapi.User{Name: "Ann", Email: "a@b.com", Roles: []string{"student"}}, "secret")
	ctx := context.Background()

	res, err := c.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Ann", res.User.Name)
	assert.Equal(t, []string{"student"}, res.User.Roles)

	_, err = c.Login(ctx, "a@b.com", "wrong")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, gateway.StatusOf(err))

	_, err = c.Login(ctx, "", "")
	var ge *gateway.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gateway.KindValidation, ge.Kind)
	assert.Contains(t, ge.Fields, "email")
	assert.Contains(t, ge.Fields, "password")
}

func TestClient_Register(t *testing.T) {
	t.Parallel()
	c, fa, _ := setup(t)
	ctx := context.Background()
	p := model.RegisterProfile{Name: "Bob", Email: "bob@x.io", Password: "pw12345", PasswordConfirmation: "pw12345", Occupation: "dev"}

	res, err := c.Register(ctx, p, model.Photo{Filename: "/tmp/avatar.png", Content: strings.NewReader("IMG")})
	require.NoError(t, err)
	assert.Equal(t, "bob@x.io", res.User.Email)
	assert.Equal(t, "photos/avatar.png", res.User.Photo)
	assert.Equal(t, "IMG", string(fa.Photo("bob@x.io")))

	_, err = c.Register(ctx, p, model.Photo{})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = c.Register(ctx, p, model.Photo{Filename: "a.png", Content: strings.NewReader("x")})
	var ge *gateway.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnprocessableEntity, ge.Status)
	assert.Contains(t, ge.Fields, "email")
}

func TestClient_CurrentUser_BothEnvelopes(t *testing.T) {
	t.Parallel()
	c, fa, st := setup(t)
	fa.AddUser(fakeapi.User{Name: "Ann", Email: "a@b.com"}, "pw")
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, storage.KeyToken, []byte(fa.IssueToken("a@b.com"))))

	u, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)

	fa.SetWrapped(true)
	u, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)

	fa.Force("/user", http.StatusOK, `{"data":null}`)
	_, err = c.CurrentUser(ctx)
	require.ErrorIs(t, err, errs.ErrEnvelope)
}

func TestClient_Logout(t *testing.T) {
	t.Parallel()
	c, fa, st := setup(t)
	fa.AddUser(fakeapi.User{Name: "Ann", Email: "a@b.com"}, "pw")
	ctx := context.Background()
	tok := fa.IssueToken("a@b.com")
	require.NoError(t, st.Set(ctx, storage.KeyToken, []byte(tok)))

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, 1, fa.Calls("/logout"))

	// the token is now unknown to the server
	_, err := c.CurrentUser(ctx)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestClient_Course(t *testing.T) {
	t.Parallel()
	c, fa, _ := setup(t)
	fa.AddCourse(fakeapi.Course{ID: 1, Slug: "go-basics", Name: "Go basics", Sections: []fakeapi.Section{
		{ID: 10, Name: "Intro", Contents: []fakeapi.Content{{ID: 100, Name: "Hello"}, {ID: 101, Name: "Tooling"}}},
		{ID: 11, Name: "Types", Contents: []fakeapi.Content{{ID: 110, Name: "Structs"}}},
	}})
	fa.SetWrapped(true)
	ctx := context.Background()

	course, err := c.Course(ctx, "go-basics")
	require.NoError(t, err)
	require.Len(t, course.Sections, 2)
	assert.Equal(t, int64(101), course.Sections[0].Contents[1].ID)
	assert.Equal(t, int64(110), course.Sections[1].Contents[0].ID)

	_, err = c.Course(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = c.Course(ctx, "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}
