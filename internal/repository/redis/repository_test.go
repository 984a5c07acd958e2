package redis

import (
	"context"
	"qittMarket/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionRepository(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewSessionRepository(client)
	ctx := context.Background()

	session := domain.Session{
		Token: "tok-1",
		Identity: domain.Identity{
			ID:            "u-1",
			Email:         "ada@uni.edu",
			EmailVerified: true,
			Metadata:      &domain.RegistrationContext{Name: "Ada", School: "UNILAG", Department: "Law", Level: "200"},
		},
	}
	require.NoError(t, repo.Store(ctx, session, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("session:token:tok-1"))

	got, err := repo.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.Identity.ID)
	require.NotNil(t, got.Identity.Metadata)
	assert.Equal(t, "Law", got.Identity.Metadata.Department)

	_, err = repo.Get(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "tok-1"))
	require.NoError(t, repo.Delete(ctx, "tok-1"))
	_, err = repo.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_ExpiresWithTTL(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewSessionRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, domain.Session{Token: "tok-2", Identity: domain.Identity{ID: "u-2"}}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, "tok-2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestOAuthStateRepository(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		takes   int
		wantErr []error
	}{
		{name: "taken once", takes: 1, wantErr: []error{nil}},
		{name: "second take fails", takes: 2, wantErr: []error{nil, domain.ErrOAuthStateNotFound}},
		{name: "expired", advance: 11 * time.Minute, takes: 1, wantErr: []error{domain.ErrOAuthStateNotFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, client := newTestClient(t)
			repo := NewOAuthStateRepository(client)
			ctx := context.Background()

			data := domain.OAuthState{Provider: "google", CodeVerifier: "verifier", RedirectTo: "/home"}
			require.NoError(t, repo.Save(ctx, "state-1", data, 10*time.Minute))
			mr.FastForward(tt.advance)

			for i := 0; i < tt.takes; i++ {
				got, err := repo.Take(ctx, "state-1")
				if tt.wantErr[i] != nil {
					assert.ErrorIs(t, err, tt.wantErr[i])
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, "verifier", got.CodeVerifier)
				assert.Equal(t, "/home", got.RedirectTo)
			}
		})
	}
}

func TestOAuthStateRepository_SaveRejectsReusedState(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewOAuthStateRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "state-1", domain.OAuthState{Provider: "google"}, time.Minute))
	assert.Error(t, repo.Save(ctx, "state-1", domain.OAuthState{Provider: "google"}, time.Minute))
}
