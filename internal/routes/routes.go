// Package routes holds the one Route Classification table shared by the session store,
// the request gateway and the route guard.
package routes

import (
	"net/url"
	"strings"
)

// Class partitions client paths.
type Class int

const (
	// Protected paths need an authenticated session.
	Protected Class = iota
	// Public paths never need a session.
	Public
	// AuthOnly paths are the sign-in/sign-up family.
	AuthOnly
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case AuthOnly:
		return "auth-only"
	default:
		return "protected"
	}
}

// Open reports whether the class never requires a session (Public or AuthOnly).
func (c Class) Open() bool { return c == Public || c == AuthOnly }

// Well-known targets.
const (
	SignInPath    = "/signin"
	DashboardPath = "/dashboard"
)

// RoleRule gates a path prefix behind a role.
type RoleRule struct {
	Prefix string
	Role   string
}

// Table is a static classification. Patterns are matched per segment; a segment written
// as {name} matches any single non-empty segment.
type Table struct {
	public   []pattern
	authOnly []pattern
	roles    []RoleRule
	signIn   string
	home     string
}

type pattern []string

// New builds a table from public and auth-only patterns.
func New(public, authOnly []string, roles []RoleRule) *Table {
	t := &Table{signIn: SignInPath, home: DashboardPath, roles: roles}
	for _, p := range public {
		t.public = append(t.public, split(p))
	}
	for _, p := range authOnly {
		t.authOnly = append(t.authOnly, split(p))
	}
	return t
}

// Default returns the learnhub classification.
func Default() *Table {
	return New(
		[]string{
			"/",
			"/features",
			"/pricing",
			"/testimonials",
			"/courses",
			"/courses/{slug}",
			"/course/{slug}",
			"/category/{slug}",
		},
		[]string{
			"/signin",
			"/signup",
			"/forgot-password",
			"/reset-password",
			"/reset-password/{token}",
			"/verify-email",
			"/verify-email/{id}/{hash}",
		},
		[]RoleRule{{Prefix: "/mentor", Role: "mentor"}},
	)
}

// Classify returns the class of a path. Query strings, fragments and trailing slashes are ignored.
func (t *Table) Classify(path string) Class {
	segs := split(path)
	for _, p := range t.authOnly {
		if p.match(segs) {
			return AuthOnly
		}
	}
	for _, p := range t.public {
		if p.match(segs) {
			return Public
		}
	}
	return Protected
}

// RequiredRole returns the role a path needs beyond authentication, or "".
func (t *Table) RequiredRole(path string) string {
	clean := "/" + strings.Join(split(path), "/")
	for _, r := range t.roles {
		if clean == r.Prefix || strings.HasPrefix(clean, strings.TrimSuffix(r.Prefix, "/")+"/") {
			return r.Role
		}
	}
	return ""
}

// SignIn is the redirect target after a session expires.
func (t *Table) SignIn() string { return t.signIn }

// Home is the landing route for authenticated users.
func (t *Table) Home() string { return t.home }

func split(path string) []string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p pattern) match(segs []string) bool {
	if len(p) != len(segs) {
		return false
	}
	for i, s := range p {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			continue
		}
		if s != segs[i] {
			return false
		}
	}
	return true
}
