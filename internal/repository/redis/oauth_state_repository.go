package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"qittMarket/domain"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthStateRepository keeps the state and PKCE verifier of an OAuth
// redirect. Nothing about the redirect lives in process memory.
type OAuthStateRepository struct {
	client *redis.Client
}

func NewOAuthStateRepository(client *redis.Client) *OAuthStateRepository {
	return &OAuthStateRepository{
		client: client,
	}
}

func oauthStateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}

func (r *OAuthStateRepository) Save(ctx context.Context, state string, data domain.OAuthState, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}

	ok, err := r.client.SetNX(ctx, oauthStateKey(state), jsonData, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	if !ok {
		return errors.New("oauth state already exists")
	}

	return nil
}

// Take returns the state and deletes it, so a callback can only be
// completed once.
func (r *OAuthStateRepository) Take(ctx context.Context, state string) (domain.OAuthState, error) {
	val, err := r.client.GetDel(ctx, oauthStateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OAuthState{}, domain.ErrOAuthStateNotFound
		}
		return domain.OAuthState{}, fmt.Errorf("failed to read oauth state: %w", err)
	}

	var data domain.OAuthState
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return domain.OAuthState{}, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}

	return data, nil
}
