// Package identity is the application's identity provider: password
// credentials, email confirmation, OAuth sign-in and bearer sessions. It
// produces domain.Identity values and auth events, and knows nothing about
// profiles or wallets.
package identity

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"
	"qittMarket/internal/identity/oauth"
	"qittMarket/pkg/logger"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already registered")
	ErrEmailUnconfirmed   = errors.New("email address has not been confirmed")
	ErrNetwork            = errors.New("identity provider unavailable")
	ErrInvalidCode        = errInvalidCode
	ErrInvalidOAuthState  = errors.New("invalid or expired oauth state")
	ErrUnknownProvider    = oauth.ErrUnknownProvider
)

const (
	ProviderPassword = "password"

	SubjectConfirmEmail   = "Confirm your Qitt account"
	EmailBodyConfirmEmail = `Hi %v, confirm your email address by opening the link below</br></br>%v</br>note: the link is valid for %v minutes`
)

// oauthNamespace seeds the stable user ids derived from OAuth subjects.
var oauthNamespace = uuid.MustParse("6f2d6d54-4b0b-4c0e-9a55-3c1f6a2f7e10")

// CredentialRepository contract interface
type CredentialRepository interface {
	Create(ctx context.Context, credential *domain.Credential) error
	FindByEmail(ctx context.Context, email string) (domain.Credential, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// SessionStore contract interface
type SessionStore interface {
	Store(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// OAuthStateStore contract interface
type OAuthStateStore interface {
	Save(ctx context.Context, state string, data domain.OAuthState, ttl time.Duration) error
	Take(ctx context.Context, state string) (domain.OAuthState, error)
}

// NotificationRepository contract interface
type NotificationRepository interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, body string) error
}

// OAuthProviders contract interface
type OAuthProviders interface {
	Get(name string) (oauth.Provider, error)
}

type Config struct {
	JWTSecret            string
	EmailVerificationKey string
	DeploymentURL        string
	SessionTTL           time.Duration
	ConfirmationTTL      time.Duration
	OAuthStateTTL        time.Duration
	// AutoConfirmEmail creates password credentials already confirmed and
	// signs them in immediately. Meant for local development.
	AutoConfirmEmail bool
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.ConfirmationTTL <= 0 {
		c.ConfirmationTTL = 30 * time.Minute
	}
	if c.OAuthStateTTL <= 0 {
		c.OAuthStateTTL = 10 * time.Minute
	}
	return c
}

type Provider struct {
	cfg         Config
	credentials CredentialRepository
	sessions    SessionStore
	states      OAuthStateStore
	notifier    NotificationRepository
	oauth       OAuthProviders
	validate    *validator.Validate
	events      *broker
	now         func() time.Time
}

func NewProvider(
	cfg Config,
	credentials CredentialRepository,
	sessions SessionStore,
	states OAuthStateStore,
	notifier NotificationRepository,
	oauthProviders OAuthProviders,
) *Provider {
	return &Provider{
		cfg:         cfg.withDefaults(),
		credentials: credentials,
		sessions:    sessions,
		states:      states,
		notifier:    notifier,
		oauth:       oauthProviders,
		validate:    validator.New(),
		events:      newBroker(),
		now:         time.Now,
	}
}

func (p *Provider) SignUpWithPassword(ctx context.Context, email, password string, meta domain.SignUpMetadata) (domain.SignUpResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := p.validate.Var(email, "required,email"); err != nil {
		return domain.SignUpResult{}, fmt.Errorf("%w: invalid email format", ErrInvalidCredentials)
	}
	if err := p.validate.Var(password, "required,min=6"); err != nil {
		return domain.SignUpResult{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidCredentials)
	}

	_, err := p.credentials.FindByEmail(ctx, email)
	if err == nil {
		return domain.SignUpResult{}, ErrEmailInUse
	}
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		logger.Error("Failed to check existing credential", err)
		return domain.SignUpResult{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return domain.SignUpResult{}, errors.New("failed to hash password")
	}

	credential := domain.Credential{
		UserID:        uuid.New(),
		Email:         email,
		PasswordHash:  passwordHash,
		DisplayName:   strings.TrimSpace(meta.DisplayName),
		EmailVerified: p.cfg.AutoConfirmEmail,
	}
	if meta.Registration != nil {
		credential.Metadata = datatypes.NewJSONType(*meta.Registration)
	}

	if err := p.credentials.Create(ctx, &credential); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return domain.SignUpResult{}, ErrEmailInUse
		}
		logger.Error("Failed to create credential", err)
		return domain.SignUpResult{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	identity := identityFromCredential(credential)
	result := domain.SignUpResult{Identity: identity}

	if credential.EmailVerified {
		session, err := p.issueSession(ctx, identity)
		if err != nil {
			return domain.SignUpResult{}, err
		}
		result.Session = &session
		p.events.emit(ctx, domain.AuthEventSignedIn, &session.Identity)
		return result, nil
	}

	if err := p.sendConfirmation(ctx, credential); err != nil {
		logger.Warn("Failed to send confirmation email", "user_id", identity.ID, "error", err)
	} else {
		result.ConfirmationSent = true
	}

	return result, nil
}

func (p *Provider) sendConfirmation(ctx context.Context, credential domain.Credential) error {
	code, err := confirmationCode([]byte(p.cfg.EmailVerificationKey), credential.Email, p.now().Add(p.cfg.ConfirmationTTL))
	if err != nil {
		return err
	}

	link := p.cfg.DeploymentURL + "/api/v1/auth/email-verification/" + code
	name := credential.DisplayName
	if name == "" {
		name = credential.Email
	}

	body := fmt.Sprintf(EmailBodyConfirmEmail, name, link, int(p.cfg.ConfirmationTTL.Minutes()))
	return p.notifier.SendEmail(ctx, name, credential.Email, SubjectConfirmEmail, body)
}

// ResendConfirmation sends a fresh confirmation link for an unconfirmed
// credential. It is a no-op for unknown or already confirmed addresses so
// that it does not reveal which emails are registered.
func (p *Provider) ResendConfirmation(ctx context.Context, email string) error {
	credential, err := p.credentials.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if credential.EmailVerified {
		return nil
	}

	if err := p.sendConfirmation(ctx, credential); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

// ConfirmEmail verifies a confirmation code and marks the credential
// confirmed. Confirming twice returns the identity again.
func (p *Provider) ConfirmEmail(ctx context.Context, code string) (domain.Identity, error) {
	email, err := parseConfirmationCode([]byte(p.cfg.EmailVerificationKey), code, p.now())
	if err != nil {
		logger.Error("Invalid confirmation code", err)
		return domain.Identity{}, ErrInvalidCode
	}

	credential, err := p.credentials.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return domain.Identity{}, ErrInvalidCode
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if !credential.EmailVerified {
		if err := p.credentials.MarkEmailVerified(ctx, credential.UserID); err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
			logger.Error("Failed to confirm email", err)
			return domain.Identity{}, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		credential.EmailVerified = true
		logger.Info("Email confirmed", "user_id", credential.UserID.String())
	}

	return identityFromCredential(credential), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	credential, err := p.credentials.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return domain.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		logger.Error("Failed to load credential", err)
		return domain.Session{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if !checkPassword(password, credential.PasswordHash) {
		return domain.Session{}, ErrInvalidCredentials
	}

	if !credential.EmailVerified {
		return domain.Session{}, ErrEmailUnconfirmed
	}

	session, err := p.issueSession(ctx, identityFromCredential(credential))
	if err != nil {
		return domain.Session{}, err
	}

	p.events.emit(ctx, domain.AuthEventSignedIn, &session.Identity)
	return session, nil
}

// BeginOAuth returns the provider URL the client must be redirected to.
// State and PKCE verifier are persisted so the callback can be completed by
// any process.
func (p *Provider) BeginOAuth(ctx context.Context, providerName, redirectTo string) (string, error) {
	provider, err := p.oauth.Get(providerName)
	if err != nil {
		return "", err
	}

	state, err := oauth.NewState()
	if err != nil {
		return "", err
	}
	verifier, challenge, err := oauth.NewPKCE()
	if err != nil {
		return "", err
	}

	data := domain.OAuthState{
		Provider:     provider.Name(),
		CodeVerifier: verifier,
		RedirectTo:   redirectTo,
		CreatedAt:    p.now(),
	}
	if err := p.states.Save(ctx, state, data, p.cfg.OAuthStateTTL); err != nil {
		logger.Error("Failed to store oauth state", err)
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	return provider.AuthCodeURL(state, challenge), nil
}

// CompleteOAuth finishes the callback of BeginOAuth. The returned session's
// identity may have no profile yet; provisioning decides that.
func (p *Provider) CompleteOAuth(ctx context.Context, providerName, state, code string) (domain.Session, string, error) {
	if state == "" || code == "" {
		return domain.Session{}, "", ErrInvalidOAuthState
	}

	saved, err := p.states.Take(ctx, state)
	if errors.Is(err, domain.ErrOAuthStateNotFound) {
		return domain.Session{}, "", ErrInvalidOAuthState
	}
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if saved.Provider != providerName {
		return domain.Session{}, "", ErrInvalidOAuthState
	}

	provider, err := p.oauth.Get(providerName)
	if err != nil {
		return domain.Session{}, "", err
	}

	external, err := provider.ExchangeCode(ctx, code, saved.CodeVerifier)
	if err != nil {
		logger.Error("OAuth code exchange failed", err)
		return domain.Session{}, "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	identity := domain.Identity{
		ID:            OAuthUserID(external.Provider, external.Subject),
		Email:         strings.ToLower(external.Email),
		DisplayName:   external.Name,
		EmailVerified: external.EmailVerified,
		Provider:      external.Provider,
	}

	session, err := p.issueSession(ctx, identity)
	if err != nil {
		return domain.Session{}, "", err
	}

	p.events.emit(ctx, domain.AuthEventSignedIn, &session.Identity)
	return session, saved.RedirectTo, nil
}

// OAuthUserID maps a provider subject to a stable user id.
func OAuthUserID(provider, subject string) string {
	return uuid.NewSHA1(oauthNamespace, []byte(provider+":"+subject)).String()
}

// GetCurrentSession returns the identity behind token, or nil when there is
// no live session. Only store failures are errors.
func (p *Provider) GetCurrentSession(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := parseToken([]byte(p.cfg.JWTSecret), token)
	if err != nil {
		logger.Debug("Rejected session token", err)
		return nil, nil
	}

	session, err := p.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to load session", err)
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if session.Identity.ID != claims.UserID {
		logger.Warn("Session user mismatch", "token_user", claims.UserID, "session_user", session.Identity.ID)
		return nil, nil
	}

	identity := session.Identity
	return &identity, nil
}

// SignOut ends the session behind token. SIGNED_OUT is emitted even when the
// session had already expired.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	identity, err := p.GetCurrentSession(ctx, token)
	if err != nil {
		return err
	}

	if err := p.sessions.Delete(ctx, token); err != nil {
		logger.Error("Failed to delete session", err)
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	p.events.emit(ctx, domain.AuthEventSignedOut, identity)
	return nil
}

// Subscribe registers fn for auth events and returns its unsubscribe
// function.
func (p *Provider) Subscribe(fn domain.AuthListener) func() {
	return p.events.subscribe(fn)
}

func (p *Provider) issueSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	now := p.now()
	token, err := generateToken([]byte(p.cfg.JWTSecret), identity.ID, identity.Provider, now, p.cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to generate token", err)
		return domain.Session{}, errors.New("failed to generate token")
	}

	session := domain.Session{
		Token:     token,
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.cfg.SessionTTL),
	}
	if err := p.sessions.Store(ctx, session, p.cfg.SessionTTL); err != nil {
		logger.Error("Failed to store session", err)
		return domain.Session{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	return session, nil
}

func identityFromCredential(c domain.Credential) domain.Identity {
	identity := domain.Identity{
		ID:            c.UserID.String(),
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		EmailVerified: c.EmailVerified,
		Provider:      ProviderPassword,
	}

	if rc := c.Metadata.Data(); rc != (domain.RegistrationContext{}) {
		identity.Metadata = &rc
	}

	return identity
}
