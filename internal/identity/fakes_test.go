package identity

import (
	"context"
	"errors"
	"net/url"
	"qittMarket/domain"
	"qittMarket/internal/identity/oauth"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeCredentials struct {
	mu        sync.Mutex
	byEmail   map[string]domain.Credential
	createErr error
	findErr   error
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{byEmail: make(map[string]domain.Credential)}
}

func (f *fakeCredentials) Create(ctx context.Context, c *domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[c.Email]; ok {
		return domain.ErrDuplicateKey
	}
	f.byEmail[c.Email] = *c
	return nil
}

func (f *fakeCredentials) FindByEmail(ctx context.Context, email string) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return domain.Credential{}, f.findErr
	}
	c, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return c, nil
}

func (f *fakeCredentials) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, c := range f.byEmail {
		if c.UserID == id && !c.EmailVerified {
			c.EmailVerified = true
			f.byEmail[email] = c
			return nil
		}
	}
	return domain.ErrCredentialNotFound
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]domain.Session)}
}

func (f *fakeSessions) Store(ctx context.Context, s domain.Session, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.Token] = s
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, token string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

type fakeStates struct {
	mu     sync.Mutex
	states map[string]domain.OAuthState
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]domain.OAuthState)}
}

func (f *fakeStates) Save(ctx context.Context, state string, data domain.OAuthState, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = data
	return nil
}

func (f *fakeStates) Take(ctx context.Context, state string) (domain.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.states[state]
	if !ok {
		return domain.OAuthState{}, domain.ErrOAuthStateNotFound
	}
	delete(f.states, state)
	return data, nil
}

type sentEmail struct {
	toEmail string
	subject string
	body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeNotifier) SendEmail(ctx context.Context, toName, toEmail, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{toEmail: toEmail, subject: subject, body: body})
	return nil
}

// lastCode extracts the confirmation code from the last email sent.
func (f *fakeNotifier) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	body := f.sent[len(f.sent)-1].body
	const marker = "/api/v1/auth/email-verification/"
	i := strings.Index(body, marker)
	if i < 0 {
		return ""
	}
	code := body[i+len(marker):]
	if j := strings.Index(code, "</br>"); j >= 0 {
		code = code[:j]
	}
	return code
}

// fakeOAuth records the verifier it was given and treats the code as the
// provider subject.
type fakeOAuth struct {
	verifiedEmail bool
	lastVerifier  string
	exchangeErr   error
}

func (f *fakeOAuth) Name() string { return "google" }

func (f *fakeOAuth) AuthCodeURL(state string, codeChallenge string) string {
	v := url.Values{}
	v.Set("state", state)
	v.Set("code_challenge", codeChallenge)
	return "https://accounts.example.test/auth?" + v.Encode()
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth.ExternalIdentity, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	f.lastVerifier = codeVerifier
	return &oauth.ExternalIdentity{
		Provider:      "google",
		Subject:       code,
		Email:         "Ada@Gmail.com",
		EmailVerified: f.verifiedEmail,
		Name:          "Ada Lovelace",
	}, nil
}

var errStoreDown = errors.New("dial tcp: connection refused")
