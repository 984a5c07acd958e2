package auth

import (
	"context"
	"fmt"
	"qittMarket/business/provisioning"
	"qittMarket/domain"
	"qittMarket/pkg/logger"
	"strings"
)

// IdentityProvider contract interface
type IdentityProvider interface {
	SignUpWithPassword(ctx context.Context, email, password string, meta domain.SignUpMetadata) (domain.SignUpResult, error)
	BeginOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	CompleteOAuth(ctx context.Context, provider, state, code string) (domain.Session, string, error)
	Subscribe(fn domain.AuthListener) func()
}

const checkEmailMessage = "Registration successful. Please check your email and click the confirmation link to complete registration."

// FormError lists the registration fields that are missing or invalid.
type FormError struct {
	Fields []string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("please fill in all required fields: %s", strings.Join(e.Fields, ", "))
}

type RegisterInput struct {
	Email        string
	Password     string
	Registration domain.RegistrationContext
}

type RegisterResult struct {
	Identity domain.Identity `json:"identity"`
	Session  *domain.Session `json:"session,omitempty"`
	Snapshot domain.Snapshot `json:"provisioning"`
}

// RegistrationFlow is the password sign-up entry point.
type RegistrationFlow struct {
	idp      IdentityProvider
	contexts *Contexts
}

func NewRegistrationFlow(idp IdentityProvider, contexts *Contexts) *RegistrationFlow {
	return &RegistrationFlow{idp: idp, contexts: contexts}
}

// Register validates the whole form before touching the provider. When the
// provider sends a confirmation email the flow stops there; provisioning
// then happens through session resume once the email is confirmed.
func (f *RegistrationFlow) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	rc := provisioning.NormalizeContext(in.Registration)

	missing, err := f.contexts.Engine().MissingFields(&rc)
	if err != nil {
		return RegisterResult{}, err
	}
	if len(missing) > 0 {
		return RegisterResult{}, &FormError{Fields: missing}
	}

	res, err := f.idp.SignUpWithPassword(ctx, in.Email, in.Password, domain.SignUpMetadata{
		DisplayName:  rc.Name,
		Registration: &rc,
	})
	if err != nil {
		logger.Error("Failed to sign up", err)
		return RegisterResult{}, err
	}

	result := RegisterResult{Identity: res.Identity, Session: res.Session}

	if !res.Identity.EmailVerified && res.ConfirmationSent {
		result.Snapshot = domain.Snapshot{
			State: domain.StateAwaitingEmailConfirmation,
			LastError: &domain.ProvisioningError{
				Kind:        domain.ErrorKindEmailUnconfirmed,
				Message:     checkEmailMessage,
				Recoverable: true,
			},
		}
		return result, nil
	}

	_, machine := f.contexts.Get(res.Identity)
	result.Snapshot = machine.SubmitProfileContext(ctx, rc)
	return result, nil
}

type OAuthResult struct {
	Session    domain.Session  `json:"session"`
	RedirectTo string          `json:"redirect_to,omitempty"`
	Snapshot   domain.Snapshot `json:"provisioning"`
}

// OAuthCompletionFlow is the OAuth entry point. New OAuth identities halt in
// AWAITING_PROFILE_INPUT until SubmitProfile supplies the form.
type OAuthCompletionFlow struct {
	idp      IdentityProvider
	contexts *Contexts
}

func NewOAuthCompletionFlow(idp IdentityProvider, contexts *Contexts) *OAuthCompletionFlow {
	return &OAuthCompletionFlow{idp: idp, contexts: contexts}
}

func (f *OAuthCompletionFlow) Begin(ctx context.Context, provider, redirectTo string) (string, error) {
	return f.idp.BeginOAuth(ctx, provider, redirectTo)
}

func (f *OAuthCompletionFlow) Complete(ctx context.Context, provider, state, code string) (OAuthResult, error) {
	session, redirectTo, err := f.idp.CompleteOAuth(ctx, provider, state, code)
	if err != nil {
		logger.Error("Failed to complete oauth", err)
		return OAuthResult{}, err
	}

	_, machine := f.contexts.Get(session.Identity)
	return OAuthResult{
		Session:    session,
		RedirectTo: redirectTo,
		Snapshot:   machine.Run(ctx),
	}, nil
}

// SubmitProfile resumes a machine halted in AWAITING_PROFILE_INPUT. For an
// identity that is already READY it performs no writes.
func (f *OAuthCompletionFlow) SubmitProfile(ctx context.Context, identity domain.Identity, rc domain.RegistrationContext) domain.Snapshot {
	_, machine := f.contexts.Get(identity)
	return machine.SubmitProfileContext(ctx, rc)
}

// SessionResumeFlow re-enters provisioning for an existing session: on app
// start, after a redirect, and on every SIGNED_IN event.
type SessionResumeFlow struct {
	idp      IdentityProvider
	contexts *Contexts
}

func NewSessionResumeFlow(idp IdentityProvider, contexts *Contexts) *SessionResumeFlow {
	return &SessionResumeFlow{idp: idp, contexts: contexts}
}

// Resume is re-entrant; overlapping calls for one identity converge.
func (f *SessionResumeFlow) Resume(ctx context.Context, identity *domain.Identity) domain.Snapshot {
	if identity == nil {
		return domain.Snapshot{State: domain.StateUnauthenticated}
	}

	_, machine := f.contexts.Get(*identity)
	return machine.Run(ctx)
}

// Retry re-runs provisioning after a recoverable error with the last
// submitted profile context.
func (f *SessionResumeFlow) Retry(ctx context.Context, identity domain.Identity) domain.Snapshot {
	_, machine := f.contexts.Get(identity)
	return machine.Retry(ctx)
}

// Start subscribes to provider events and returns the unsubscribe function.
func (f *SessionResumeFlow) Start() func() {
	return f.idp.Subscribe(func(ctx context.Context, event domain.AuthEvent, identity *domain.Identity) {
		switch event {
		case domain.AuthEventSignedIn:
			snap := f.Resume(ctx, identity)
			logger.Info("Session resumed", "state", snap.State)
		case domain.AuthEventSignedOut:
			if identity != nil {
				f.contexts.Clear(identity.ID)
			}
		}
	})
}
