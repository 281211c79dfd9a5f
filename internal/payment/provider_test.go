package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/checkout/internal/model"
)

func TestHTTPProvider_CreateIntent_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/intents", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 2500, req["amount_cents"])

		_ = json.NewEncoder(w).Encode(intentPayload{
			ID:           "pi_123",
			OrderID:      "order-1",
			AmountCents:  2500,
			Currency:     "USD",
			Status:       "created",
			ClientSecret: "pi_123_secret",
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", time.Second)
	intent, err := p.CreateIntent(context.Background(), "order-1", 2500, "USD")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, model.IntentCreated, intent.Status)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
}

func TestHTTPProvider_CreateIntent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", time.Second)
	_, err := p.CreateIntent(context.Background(), "order-1", 2500, "USD")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestHTTPProvider_CreateIntent_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", 20*time.Millisecond)
	_, err := p.CreateIntent(context.Background(), "order-1", 2500, "USD")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestHTTPProvider_GetIntent_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/intents/pi_123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(intentPayload{ID: "pi_123", Status: "succeeded"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", time.Second)
	intent, err := p.GetIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, model.IntentSucceeded, intent.Status)
}

func TestHTTPProvider_GetIntent_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", time.Second)
	_, err := p.GetIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestHTTPProvider_CancelIntent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", time.Second)
	require.NoError(t, p.CancelIntent(context.Background(), "pi_123"))
	assert.Equal(t, "/v1/intents/pi_123/cancel", gotPath)
}
