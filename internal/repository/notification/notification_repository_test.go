package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail(t *testing.T) {
	var got sendPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3.1/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := NewMailjetRepository(MailjetConfig{
		BaseURL:           srv.URL,
		BasicAuthUsername: "key",
		BasicAuthPassword: "secret",
		SenderEmail:       "no-reply@qitt.test",
		SenderName:        "Qitt",
	})

	err := repo.SendEmail(context.Background(), "Ada", "ada@uni.edu", "Confirm", "hello")

	require.NoError(t, err)
	assert.Equal(t, "Basic a2V5OnNlY3JldA==", auth)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "ada@uni.edu", got.Messages[0].To[0].Email)
	assert.Equal(t, "Qitt", got.Messages[0].From.Name)
	assert.Equal(t, "Confirm", got.Messages[0].Subject)
}

func TestSendEmail_NegativeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ErrorMessage":"bad key"}`))
	}))
	defer srv.Close()

	repo := NewMailjetRepository(MailjetConfig{BaseURL: srv.URL})

	err := repo.SendEmail(context.Background(), "Ada", "ada@uni.edu", "Confirm", "hello")

	assert.ErrorContains(t, err, "401")
}
