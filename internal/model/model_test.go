package model

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestCredentialFromToken_JWT(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c := CredentialFromToken(makeJWT(t, exp))
	require.True(t, c.ExpiresAt.Equal(exp), "exp=%v want %v", c.ExpiresAt, exp)
	require.False(t, c.Expired(time.Now()))
	require.True(t, c.Expired(exp.Add(time.Second)))
}

func TestCredentialFromToken_Opaque(t *testing.T) {
	t.Parallel()

	c := CredentialFromToken("12|plain-sanctum-token")
	require.Equal(t, "12|plain-sanctum-token", c.Token)
	require.True(t, c.ExpiresAt.IsZero())
	require.False(t, c.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestSnapshot_Consistent(t *testing.T) {
	t.Parallel()

	require.True(t, Snapshot{}.Consistent())
	require.True(t, Snapshot{Credential: &Credential{Token: "t"}, User: &Principal{ID: 1}, IsAuthenticated: true}.Consistent())
	require.False(t, Snapshot{Credential: &Credential{Token: "t"}}.Consistent())
	require.False(t, Snapshot{User: &Principal{ID: 1}, IsAuthenticated: true}.Consistent())
	require.Equal(t, "", Snapshot{}.Token())
}

func TestPrincipal_HasRole(t *testing.T) {
	t.Parallel()

	var nilP *Principal
	require.False(t, nilP.HasRole(RoleMentor))
	require.True(t, (&Principal{Roles: []string{"student", RoleMentor}}).HasRole(RoleMentor))
	require.False(t, (&Principal{}).HasRole(RoleMentor))
}
