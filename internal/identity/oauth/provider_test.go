package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) AuthCodeURL(state, challenge string) string { return "https://idp.test/auth?state=" + state }
func (s stubProvider) ExchangeCode(ctx context.Context, code, verifier string) (*ExternalIdentity, error) {
	return &ExternalIdentity{Provider: s.name, Subject: code}, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(stubProvider{name: "google"})

	p, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = reg.Get("myspace")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewPKCE(t *testing.T) {
	verifier, challenge, err := NewPKCE()
	require.NoError(t, err)

	hash := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), challenge)
	assert.Len(t, verifier, 43)

	other, _, err := NewPKCE()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, other)
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
