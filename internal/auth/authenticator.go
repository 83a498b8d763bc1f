package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// PrincipalHeader carries the caller name when authentication is disabled.
const PrincipalHeader = "X-Principal"

// ErrUnauthenticated is returned when a request carries no usable credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// OwnerLookup is the slice of store.OwnerStore needed to check passwords.
type OwnerLookup interface {
	GetOwnerByName(ctx context.Context, name string) (*models.Owner, error)
}

// CredentialAuthenticator accepts bearer tokens issued by a TokenManager or
// HTTP Basic credentials checked against bcrypt hashes of stored owners.
type CredentialAuthenticator struct {
	owners OwnerLookup
	tokens *TokenManager
}

// NewCredentialAuthenticator creates an authenticator backed by the owner store.
func NewCredentialAuthenticator(owners OwnerLookup, tokens *TokenManager) *CredentialAuthenticator {
	return &CredentialAuthenticator{
		owners: owners,
		tokens: tokens,
	}
}

// Authenticate resolves the principal of the request.
// A bearer token that fails verification is rejected without trying Basic.
func (a *CredentialAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	if tokenString, ok := bearerToken(r); ok {
		principal, err := a.tokens.VerifyToken(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("Bearer token rejected")
			return nil, ErrUnauthenticated
		}
		return principal, nil
	}

	name, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	return a.CheckPassword(r.Context(), name, password)
}

// CheckPassword verifies a name and password pair against the stored owner.
// Owners holding the placeholder credential can never log in with a password.
func (a *CredentialAuthenticator) CheckPassword(ctx context.Context, name, password string) (*Principal, error) {
	if name == "" || password == "" {
		return nil, ErrUnauthenticated
	}

	owner, err := a.owners.GetOwnerByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrOwnerNotFound) {
			log.Debug().Str("owner", name).Msg("Unknown owner")
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	if owner.CredentialHash == models.PlaceholderCredential {
		return nil, ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(owner.CredentialHash), []byte(password)); err != nil {
		log.Debug().Str("owner", name).Msg("Password mismatch")
		return nil, ErrUnauthenticated
	}

	return &Principal{Name: owner.Name, Roles: owner.Roles}, nil
}

// IssueToken exchanges a verified principal for a bearer token.
func (a *CredentialAuthenticator) IssueToken(principal *Principal) (string, time.Time, error) {
	return a.tokens.IssueToken(principal)
}

// HeaderAuthenticator trusts the X-Principal header. Development use only.
type HeaderAuthenticator struct{}

// Authenticate returns a MANAGER principal named by the header.
func (HeaderAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	name := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	if name == "" {
		return nil, ErrUnauthenticated
	}
	return &Principal{Name: name, Roles: []string{models.RoleManager}}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}

	return token, true
}
