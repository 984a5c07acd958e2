package domain

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrOAuthStateNotFound = errors.New("oauth state not found or expired")
)

// Session is a live sign-in. Token is the bearer credential handed to the
// client; the identity is kept server side so that OAuth identities, which
// have no credential row, resolve the same way password ones do.
type Session struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// OAuthState is what must survive the provider redirect.
type OAuthState struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectTo   string    `json:"redirect_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignUpMetadata is attached to a new credential and handed back on every
// identity built from it.
type SignUpMetadata struct {
	DisplayName  string
	Registration *RegistrationContext
}

type SignUpResult struct {
	Identity Identity `json:"identity"`
	// Session is set only when the credential needs no confirmation.
	Session          *Session `json:"session,omitempty"`
	ConfirmationSent bool     `json:"confirmation_sent"`
}
