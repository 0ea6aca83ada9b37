package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/learnhub-client/internal/config"
	"github.com/and161185/learnhub-client/internal/testutil/fakeapi"
)

type harness struct {
	api *fakeapi.API
	cfg config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fa := fakeapi.New()
	srv := fakeapi.Start(t, fa)
	cfg, err := config.FromMap(map[string]string{
		"API_URL":         srv.URL,
		"RATE_LIMIT":      "0",
		"LOG_LEVEL":       "fatal",
		"STORAGE_BACKEND": config.BackendFile,
		"STORAGE_DIR":     t.TempDir(),
	})
	require.NoError(t, err)
	fa.AddCourse(fakeapi.Course{
		ID:   7,
		Slug: "go-basics",
		Name: "Go basics",
		Sections: []fakeapi.Section{
			{ID: 1, Name: "Intro", Contents: []fakeapi.Content{{ID: 10, Name: "Hello"}, {ID: 11, Name: "Tooling"}}},
			{ID: 2, Name: "Types", Contents: []fakeapi.Content{{ID: 20, Name: "Structs"}}},
		},
	})
	return &harness{api: fa, cfg: cfg}
}

func (h *harness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), h.cfg, args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code, _, stderr := h.run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Commands:")

	code, _, _ = h.run(t, "frobnicate")
	assert.Equal(t, 2, code)

	code, out, _ := h.run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "lh dev")
}

func TestRun_LoginWhoamiLogout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.api.AddUser(fakeapi.User{Name: "Ann", Email: "ann@example.com", Roles: []string{"student"}}, "secret")

	code, out, stderr := h.run(t, "login", "-e", "ann@example.com", "-p", "secret")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "ok\n", out)

	code, out, _ = h.run(t, "whoami")
	require.Equal(t, 0, code)
	s := decode[sessionJSON](t, out)
	assert.True(t, s.Authenticated)
	require.NotNil(t, s.User)
	assert.Equal(t, "Ann", s.User.Name)

	code, _, _ = h.run(t, "logout")
	require.Equal(t, 0, code)
	assert.Equal(t, 1, h.api.Calls("/logout"))

	_, out, _ = h.run(t, "whoami")
	assert.False(t, decode[sessionJSON](t, out).Authenticated)
}

func TestRun_LoginRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.api.AddUser(fakeapi.User{Name: "Ann", Email: "ann@example.com"}, "secret")

	code, _, stderr := h.run(t, "login", "-e", "ann@example.com", "-p", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Invalid credentials")

	code, _, _ = h.run(t, "login", "-e", "ann@example.com")
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, h.api.Calls("/login"), "a missing password never reaches the API")
}

func TestRun_Register(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	photo := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(photo, []byte("png-bytes"), 0o600))

	code, _, stderr := h.run(t, "register", "-name", "Bo", "-e", "bo@example.com", "-p", "pw", "-occupation", "dev", "-photo", photo)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, []byte("png-bytes"), h.api.Photo("bo@example.com"))

	_, out, _ := h.run(t, "whoami")
	assert.True(t, decode[sessionJSON](t, out).Authenticated)

	code, _, stderr = h.run(t, "register", "-name", "Bo", "-e", "bo@example.com", "-p", "pw", "-occupation", "dev", "-photo", photo)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "email: The email has already been taken.")
}

func TestRun_GuardAndCheck(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.api.AddUser(fakeapi.User{Name: "Ann", Email: "ann@example.com", Roles: []string{"student"}}, "secret")

	_, out, _ := h.run(t, "guard", "/dashboard")
	d := decode[decisionJSON](t, out)
	assert.Equal(t, "redirect", d.Action)
	assert.Equal(t, "/signin", d.Target)

	_, out, _ = h.run(t, "guard", "/pricing")
	d = decode[decisionJSON](t, out)
	assert.Equal(t, "allow", d.Action)
	assert.Equal(t, "public", d.Class)

	code, _, _ := h.run(t, "login", "-e", "ann@example.com", "-p", "secret")
	require.Equal(t, 0, code)

	_, out, _ = h.run(t, "guard", "/signin")
	d = decode[decisionJSON](t, out)
	assert.Equal(t, "redirect", d.Action)
	assert.Equal(t, "/dashboard", d.Target)

	_, out, _ = h.run(t, "guard", "/mentor/courses")
	assert.Equal(t, "/dashboard", decode[decisionJSON](t, out).Target)

	_, out, _ = h.run(t, "guard", "/dashboard")
	assert.Equal(t, "allow", decode[decisionJSON](t, out).Action)

	h.api.RevokeAll()
	code, out, stderr := h.run(t, "check")
	assert.Equal(t, 0, code)
	assert.False(t, decode[sessionJSON](t, out).Authenticated)
	assert.Contains(t, stderr, "! ")
}

func TestRun_Progress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, out, _ := h.run(t, "next", "-course", "go-basics")
	assert.Equal(t, "/learning/7/1/10", decode[nextJSON](t, out).Next)

	_, out, _ = h.run(t, "-path", "/learning/7/1/11", "visit", "-course", "go-basics")
	n := decode[nextJSON](t, out)
	assert.Equal(t, "/learning/7/2/20", n.Next)
	assert.Equal(t, 1, n.Done)
	assert.Equal(t, 3, n.Total)

	_, out, _ = h.run(t, "visit", "-course", "go-basics", "-content", "20")
	n = decode[nextJSON](t, out)
	assert.True(t, n.Finished)
	assert.Empty(t, n.Next)

	_, out, _ = h.run(t, "progress", "-course", "go-basics")
	p := decode[progressJSON](t, out)
	assert.Equal(t, []int64{11, 20}, p.Completed)
	assert.Equal(t, 2, p.Done)

	code, _, _ := h.run(t, "reset", "-course", "go-basics")
	require.Equal(t, 0, code)
	_, out, _ = h.run(t, "progress", "-course", "go-basics")
	assert.Empty(t, decode[progressJSON](t, out).Completed)

	code, _, _ = h.run(t, "next", "-course", "go-basics", "-content", "99")
	assert.Equal(t, 1, code)

	code, _, stderr := h.run(t, "-path", "/learning/7/2/10", "visit", "-course", "go-basics")
	assert.Equal(t, 1, code, "content 10 is not in section 2")
	assert.Contains(t, stderr, "position not found")
	_, out, _ = h.run(t, "progress", "-course", "go-basics")
	assert.Empty(t, decode[progressJSON](t, out).Completed)

	code, _, stderr = h.run(t, "progress", "-course", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error:")
}
