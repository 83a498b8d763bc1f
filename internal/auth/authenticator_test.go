package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store/memory"
)

func newTestAuthenticator(t *testing.T) (*CredentialAuthenticator, *TokenManager) {
	t.Helper()

	owners := memory.NewOwnerStore()

	hash, err := HashPassword("secret")
	require.NoError(t, err)

	_, err = owners.PutOwner(context.Background(), &models.Owner{
		Name:           "alice",
		CredentialHash: hash,
		Roles:          []string{models.RoleManager},
	})
	require.NoError(t, err)

	_, _, err = owners.InsertOwnerIfAbsent(context.Background(), &models.Owner{
		Name:           "carol",
		CredentialHash: models.PlaceholderCredential,
		Roles:          []string{models.RoleManager},
	})
	require.NoError(t, err)

	tokens, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	return NewCredentialAuthenticator(owners, tokens), tokens
}

func TestCredentialAuthenticator(t *testing.T) {
	a, tokens := newTestAuthenticator(t)

	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.SetBasicAuth("alice", "secret")

		principal, err := a.Authenticate(req)
		require.NoError(t, err)
		require.Equal(t, "alice", principal.Name)
		require.True(t, principal.HasRole(models.RoleManager))
	})

	t.Run("basic auth wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.SetBasicAuth("alice", "wrong")

		_, err := a.Authenticate(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("basic auth unknown owner", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.SetBasicAuth("mallory", "secret")

		_, err := a.Authenticate(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("placeholder credential cannot log in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.SetBasicAuth("carol", models.PlaceholderCredential)

		_, err := a.Authenticate(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("bearer token", func(t *testing.T) {
		token, _, err := tokens.IssueToken(&Principal{Name: "alice", Roles: []string{models.RoleManager}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		principal, err := a.Authenticate(req)
		require.NoError(t, err)
		require.Equal(t, "alice", principal.Name)
	})

	t.Run("invalid bearer does not fall back to basic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.Header.Set("Authorization", "Bearer nope")

		_, err := a.Authenticate(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("no credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)

		_, err := a.Authenticate(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestHeaderAuthenticator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	_, err := HeaderAuthenticator{}.Authenticate(req)
	require.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set(PrincipalHeader, " bob ")
	principal, err := HeaderAuthenticator{}.Authenticate(req)
	require.NoError(t, err)
	require.Equal(t, "bob", principal.Name)
	require.True(t, principal.HasRole(models.RoleManager))
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, PrincipalFromContext(ctx))

	ctx = WithPrincipal(ctx, &Principal{Name: "alice"})
	require.Equal(t, "alice", PrincipalFromContext(ctx).Name)

	var nilPrincipal *Principal
	require.False(t, nilPrincipal.HasRole(models.RoleManager))
}
