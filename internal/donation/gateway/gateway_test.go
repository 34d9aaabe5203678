package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrantydesk/warrantydesk/internal/config"
)

func testClient(baseURL string) *Client {
	return New(config.Config{
		Gateway: config.GatewayConfig{
			SecretKey:     "sk_test_key",
			WebhookSecret: "whsec_test",
			BaseURL:       baseURL,
		},
	})
}

func TestCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2500", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_payment_method"}`))
	}))
	defer srv.Close()

	intent, err := testClient(srv.URL).CreateIntent(context.Background(), 2500, "usd", "donor@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
}

func TestCreateIntentGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateIntent(context.Background(), 2500, "usd", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	c := testClient("")
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"type":"payment_intent.succeeded"}`)

	header := c.Sign(payload, now)
	assert.NoError(t, c.VerifySignature(payload, header, now))
	assert.NoError(t, c.VerifySignature(payload, header, now.Add(time.Minute)))
}

func TestVerifySignatureRejections(t *testing.T) {
	c := testClient("")
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	header := c.Sign(payload, now)

	assert.ErrorIs(t, c.VerifySignature(payload, "", now), ErrMissingSignature)
	assert.ErrorIs(t, c.VerifySignature(payload, "t=abc,v1=deadbeef", now), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature([]byte(`{"tampered":true}`), header, now), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature(payload, header, now.Add(10*time.Minute)), ErrStaleSignature)

	other := New(config.Config{Gateway: config.GatewayConfig{WebhookSecret: "whsec_other"}})
	assert.ErrorIs(t, other.VerifySignature(payload, header, now), ErrInvalidSignature)
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","amount":2500,"currency":"usd","status":"succeeded"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSucceeded, event.Type)
	assert.Equal(t, "pi_123", event.Intent.ID)
	assert.Equal(t, int64(2500), event.Intent.Amount)

	_, err = ParseEvent([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}
