// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/crypto/bcrypt"

	"datausage/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the bearer token was not accepted.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials indicates that no bearer token was supplied.
	ErrMissingCredentials = errors.New("missing credentials")
)

// IDTokenVerifier verifies raw OIDC ID tokens. *oidc.IDTokenVerifier
// satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// AuthService authenticates remote API callers, either by static device
// tokens stored as bcrypt hashes or by OIDC ID tokens.
type AuthService struct {
	tokenHashes [][]byte
	verifier    IDTokenVerifier
}

// NewAuthService creates an authentication service. verifier may be nil to
// disable OIDC.
func NewAuthService(tokenHashes []string, verifier IDTokenVerifier) *AuthService {
	hashes := make([][]byte, 0, len(tokenHashes))
	for _, h := range tokenHashes {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, []byte(h))
		}
	}
	return &AuthService{tokenHashes: hashes, verifier: verifier}
}

// NewOIDCVerifier discovers issuer and returns a verifier for ID tokens
// issued to audience.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return provider.Verifier(&oidc.Config{ClientID: audience}), nil
}

// Authenticate validates a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}

	for _, h := range s.tokenHashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			return &domain.Principal{Subject: "device", Method: "token"}, nil
		}
	}

	if s.verifier == nil {
		return nil, ErrInvalidCredentials
	}
	idToken, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	subject := idToken.Subject
	if err := idToken.Claims(&claims); err == nil && claims.Email != "" {
		subject = claims.Email
	}
	return &domain.Principal{Subject: subject, Method: "oidc"}, nil
}

// HashToken returns the bcrypt hash to configure for a device token.
func HashToken(token string) (string, error) {
	if len(token) < 16 {
		return "", errors.New("token must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
