// Package model defines domain entities shared by the session, gateway and progress layers.
package model

import (
	"io"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleMentor is the role that unlocks course-authoring routes.
const RoleMentor = "mentor"

// Principal is the authenticated user's profile as returned by the remote API.
type Principal struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Occupation           string   `json:"occupation,omitempty"`
	Photo                string   `json:"photo,omitempty"`
	Roles                []string `json:"roles,omitempty"`
	IsSubscriptionActive bool     `json:"is_subscription_active"`
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// Credential is an opaque bearer token. ExpiresAt is zero when the token carries no readable expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// CredentialFromToken builds a Credential, peeking at the JWT exp claim when the token is a JWT.
// The signature is not verified: the server stays the authority.
func CredentialFromToken(token string) Credential {
	c := Credential{Token: token}
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, &claims)
	if err == nil && claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c
}

// Expired reports whether the credential has a known expiry in the past.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Snapshot is the observable Session Store state.
type Snapshot struct {
	Credential      *Credential
	User            *Principal
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Consistent reports whether credential, principal and the authenticated flag move together.
func (s Snapshot) Consistent() bool {
	return (s.Credential != nil) == s.IsAuthenticated && (s.User != nil) == s.IsAuthenticated
}

// Token returns the credential token or "".
func (s Snapshot) Token() string {
	if s.Credential == nil {
		return ""
	}
	return s.Credential.Token
}

// AuthResult is the payload of a successful login or registration.
type AuthResult struct {
	User  Principal
	Token string
}

// RegisterProfile carries the required registration fields.
type RegisterProfile struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
	Occupation           string
}

// Photo is the image uploaded with a registration.
type Photo struct {
	Filename string
	Content  io.Reader
}

// Course is the ordered course tree used by the learning viewer.
type Course struct {
	ID       int64     `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// Section is an ordered group of contents.
type Section struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Contents []Content `json:"contents"`
}

// Content is a single lesson.
type Content struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Position identifies the learner's location in a course.
type Position struct {
	CourseID  int64 `json:"course_id"`
	SectionID int64 `json:"section_id"`
	ContentID int64 `json:"content_id"`
}

// Next is the result of computing the following lesson.
// Position is nil when IsFinished is true.
type Next struct {
	Position   *Position
	IsFinished bool
}
