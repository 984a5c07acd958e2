package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_DEPLOYMENT_URL", "https://qitt.test")
	t.Setenv("APP_EMAIL_VERIFICATION_KEY", "0123456789abcdef")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.JWT.OAuthStateTTL)
	assert.False(t, cfg.App.AutoConfirmEmail)
	assert.False(t, cfg.GoogleOAuth.Enabled())
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Empty(t, cfg.Redis.RedisUsername)
	assert.False(t, cfg.Redis.TLS)
}

func TestLoad_RedisSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_USERNAME", "qitt")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("REDIS_POOL_SIZE", "25")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "notanumber")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qitt", cfg.Redis.RedisUsername)
	assert.True(t, cfg.Redis.TLS)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
	assert.Equal(t, 2, cfg.Redis.MinIdleConns)
}

func TestLoad_GoogleRedirectDefaultsToDeployment(t *testing.T) {
	setRequired(t)
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://qitt.test/api/v1/auth/oauth/google/callback", cfg.GoogleOAuth.RedirectURL)
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "bad redis db", env: map[string]string{"REDIS_DB": "zero"}},
		{name: "auto confirm in production", env: map[string]string{"APP_ENV": "production", "APP_AUTO_CONFIRM_EMAIL": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
