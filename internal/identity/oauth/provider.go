// Package oauth holds the external OAuth/OIDC providers used by the identity
// adapter. Providers return identity facts only; sessions and profiles are
// decided elsewhere.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// ExternalIdentity is what a provider asserts about the signed-in user.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type Provider interface {
	Name() string
	// AuthCodeURL returns the authorization URL for the given state and
	// S256 PKCE challenge.
	AuthCodeURL(state string, codeChallenge string) string
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*ExternalIdentity, error)
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider)
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewState returns an unguessable OAuth state value.
func NewState() (string, error) {
	return randomToken()
}

// NewPKCE returns a code verifier and its S256 challenge.
func NewPKCE() (verifier string, challenge string, err error) {
	verifier, err = randomToken()
	if err != nil {
		return "", "", err
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])
	return verifier, challenge, nil
}
