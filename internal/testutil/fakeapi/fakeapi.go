// Package fakeapi is an in-process stand-in for the learnhub REST API, used by tests.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

// User is the wire shape of a principal.
type User struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Occupation           string   `json:"occupation"`
	Photo                string   `json:"photo"`
	Roles                []string `json:"roles"`
	IsSubscriptionActive bool     `json:"is_subscription_active"`
}

// Course is the wire shape of a course tree.
type Course struct {
	ID       int64     `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Sections []Section `json:"course_sections"`
}

// Section is the wire shape of a course section.
type Section struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Contents []Content `json:"section_contents"`
}

// Content is the wire shape of a lesson.
type Content struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type account struct {
	user     User
	password string
}

type forced struct {
	status int
	body   string
}

// API keeps accounts, tokens and courses in memory and counts calls per route.
type API struct {
	mu       sync.Mutex
	wrapped  bool
	nextID   int64
	accounts map[string]*account
	tokens   map[string]string
	courses  map[string]Course
	calls    map[string]int
	forced   map[string]forced
	photos   map[string][]byte
}

// New returns an empty API.
func New() *API {
	return &API{
		accounts: map[string]*account{},
		tokens:   map[string]string{},
		courses:  map[string]Course{},
		calls:    map[string]int{},
		forced:   map[string]forced{},
		photos:   map[string][]byte{},
	}
}

// Start serves the API on an httptest server closed at test cleanup.
func Start(t interface{ Cleanup(func()) }, a *API) *httptest.Server {
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv
}

// Router builds the chi router.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(a.count, a.force)
	r.Post("/login", a.login)
	r.Post("/register", a.register)
	r.Post("/logout", a.logout)
	r.Get("/user", a.currentUser)
	r.Get("/courses/{slug}", a.course)
	return r
}

// SetWrapped makes GET endpoints answer with {"data": ...}.
func (a *API) SetWrapped(v bool) {
	a.mu.Lock()
	a.wrapped = v
	a.mu.Unlock()
}

// AddUser registers an account and returns its id.
func (a *API) AddUser(u User, password string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	u.ID = a.nextID
	a.accounts[u.Email] = &account{user: u, password: password}
	return u.ID
}

// IssueToken returns a valid bearer token for email.
func (a *API) IssueToken(email string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issue(email)
}

// RevokeAll invalidates every issued token.
func (a *API) RevokeAll() {
	a.mu.Lock()
	a.tokens = map[string]string{}
	a.mu.Unlock()
}

// AddCourse publishes a course under its slug.
func (a *API) AddCourse(c Course) {
	a.mu.Lock()
	a.courses[c.Slug] = c
	a.mu.Unlock()
}

// Force makes every request to path answer with status and body until Clear.
func (a *API) Force(path string, status int, body string) {
	a.mu.Lock()
	a.forced[path] = forced{status: status, body: body}
	a.mu.Unlock()
}

// Clear removes a forced response.
func (a *API) Clear(path string) {
	a.mu.Lock()
	delete(a.forced, path)
	a.mu.Unlock()
}

// Calls returns how many requests reached path.
func (a *API) Calls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

// TotalCalls returns how many requests reached the API.
func (a *API) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		n += c
	}
	return n
}

// Photo returns the uploaded photo stored for email.
func (a *API) Photo(email string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.photos[email]
}

func (a *API) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.calls[r.URL.Path]++
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *API) force(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		f, ok := a.forced[r.URL.Path]
		a.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	})
}

func (a *API) issue(email string) string {
	id := uuid.Must(uuid.NewV4())
	tok := id.String()
	a.tokens[tok] = email
	return tok
}

func (a *API) bearer(r *http.Request) (*account, bool) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	email, ok := a.tokens[tok]
	if !ok {
		return nil, false
	}
	acc, ok := a.accounts[email]
	return acc, ok
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed JSON."})
		return
	}
	fields := map[string][]string{}
	if in.Email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if in.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "The given data was invalid.", "errors": fields})
		return
	}

	a.mu.Lock()
	acc, ok := a.accounts[in.Email]
	if !ok || acc.password != in.Password {
		a.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	tok := a.issue(in.Email)
	u := acc.user
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "token": tok})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Expected multipart form."})
		return
	}
	fields := map[string][]string{}
	for _, k := range []string{"name", "email", "password", "password_confirmation", "occupation"} {
		if r.FormValue(k) == "" {
			fields[k] = []string{"The " + strings.ReplaceAll(k, "_", " ") + " field is required."}
		}
	}
	if r.FormValue("password") != r.FormValue("password_confirmation") {
		fields["password"] = append(fields["password"], "The password field confirmation does not match.")
	}
	photo, hdr, err := r.FormFile("photo")
	var img []byte
	if err != nil {
		fields["photo"] = []string{"The photo field is required."}
	} else {
		img, _ = io.ReadAll(photo)
		_ = photo.Close()
	}

	email := r.FormValue("email")
	a.mu.Lock()
	if _, taken := a.accounts[email]; taken {
		fields["email"] = append(fields["email"], "The email has already been taken.")
	}
	if len(fields) > 0 {
		a.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "The given data was invalid.", "errors": fields})
		return
	}
	a.nextID++
	u := User{
		ID:         a.nextID,
		Name:       r.FormValue("name"),
		Email:      email,
		Occupation: r.FormValue("occupation"),
		Photo:      "photos/" + hdr.Filename,
		Roles:      []string{"student"},
	}
	a.accounts[email] = &account{user: u, password: r.FormValue("password")}
	a.photos[email] = img
	tok := a.issue(email)
	a.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "token": tok})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.bearer(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	a.mu.Lock()
	delete(a.tokens, tok)
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (a *API) currentUser(w http.ResponseWriter, r *http.Request) {
	acc, ok := a.bearer(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	a.mu.Lock()
	u := acc.user
	a.mu.Unlock()
	a.writeData(w, u)
}

func (a *API) course(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	a.mu.Lock()
	c, ok := a.courses[slug]
	a.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Course not found."})
		return
	}
	a.writeData(w, c)
}

func (a *API) writeData(w http.ResponseWriter, v any) {
	a.mu.Lock()
	wrapped := a.wrapped
	a.mu.Unlock()
	if wrapped {
		writeJSON(w, http.StatusOK, map[string]any{"data": v})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
