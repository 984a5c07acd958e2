package domain

import "context"

// Identity is the normalized result of authentication, independent of the
// provider that issued it. It contains facts only.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Provider      string `json:"provider,omitempty"` // "password", "google", ...

	// Metadata is sign-up form data attached by the provider, if any.
	Metadata *RegistrationContext `json:"metadata,omitempty"`
}

type AuthEvent string

const (
	AuthEventSignedIn  AuthEvent = "SIGNED_IN"
	AuthEventSignedOut AuthEvent = "SIGNED_OUT"
)

// AuthListener receives auth events. identity is nil for SIGNED_OUT when the
// session was already gone.
type AuthListener func(ctx context.Context, event AuthEvent, identity *Identity)
