package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/pkg/logger"
)

func newTestClient(t *testing.T, cfg config.BillingConfig) *Client {
	t.Helper()
	return NewClient(cfg, logger.NewNop())
}

// signWebhook produces a Stripe-Signature header for the payload.
func signWebhook(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhook(t *testing.T) {
	c := newTestClient(t, config.BillingConfig{
		StripeSecretKey:     "sk_test",
		StripeWebhookSecret: "whsec_test",
	})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"paid","metadata":{"user_id":"u1"}}}}`)
	now := time.Now().Unix()

	t.Run("valid signature", func(t *testing.T) {
		event, err := c.VerifyWebhook(payload, signWebhook("whsec_test", now, payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "checkout.session.completed", event.Type)
		assert.NotEmpty(t, event.Data.Object)
	})

	t.Run("extra unknown header parts tolerated", func(t *testing.T) {
		header := signWebhook("whsec_test", now, payload) + ",v0=deadbeef"
		_, err := c.VerifyWebhook(payload, header)
		assert.NoError(t, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := signWebhook("whsec_test", now, payload)
		tampered := []byte(`{"id":"evt_2","type":"checkout.session.completed"}`)
		_, err := c.VerifyWebhook(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := c.VerifyWebhook(payload, signWebhook("whsec_other", now, payload))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := time.Now().Add(-10 * time.Minute).Unix()
		_, err := c.VerifyWebhook(payload, signWebhook("whsec_test", old, payload))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("future timestamp outside tolerance", func(t *testing.T) {
		future := time.Now().Add(10 * time.Minute).Unix()
		_, err := c.VerifyWebhook(payload, signWebhook("whsec_test", future, payload))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("missing header fields", func(t *testing.T) {
		_, err := c.VerifyWebhook(payload, "v1=abc")
		assert.ErrorIs(t, err, ErrInvalidSignature)

		_, err = c.VerifyWebhook(payload, fmt.Sprintf("t=%d", now))
		assert.ErrorIs(t, err, ErrInvalidSignature)

		_, err = c.VerifyWebhook(payload, "t=notanumber,v1=abc")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("no webhook secret configured", func(t *testing.T) {
		unconfigured := newTestClient(t, config.BillingConfig{StripeSecretKey: "sk_test"})
		_, err := unconfigured.VerifyWebhook(payload, signWebhook("whsec_test", now, payload))
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestVerifyWebhookCustomTolerance(t *testing.T) {
	c := newTestClient(t, config.BillingConfig{
		StripeSecretKey:      "sk_test",
		StripeWebhookSecret:  "whsec_test",
		WebhookToleranceSecs: 60,
	})

	payload := []byte(`{"id":"evt_1","type":"ping"}`)
	twoMinutesAgo := time.Now().Add(-2 * time.Minute).Unix()
	_, err := c.VerifyWebhook(payload, signWebhook("whsec_test", twoMinutesAgo, payload))
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestGetCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_paid":
			fmt.Fprint(w, `{"id":"cs_paid","payment_status":"paid","status":"complete","metadata":{"user_id":"11111111-1111-1111-1111-111111111111"}}`)
		case "/v1/checkout/sessions/cs_unpaid":
			fmt.Fprint(w, `{"id":"cs_unpaid","payment_status":"unpaid","status":"open","metadata":{}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"message":"No such session"}}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, config.BillingConfig{
		StripeSecretKey:  "sk_test",
		StripeAPIBaseURL: srv.URL,
	})

	t.Run("paid session", func(t *testing.T) {
		session, err := c.GetCheckoutSession(context.Background(), "cs_paid")
		require.NoError(t, err)
		assert.True(t, session.Paid())
		assert.Equal(t, "11111111-1111-1111-1111-111111111111", session.UserID())
	})

	t.Run("unpaid session", func(t *testing.T) {
		session, err := c.GetCheckoutSession(context.Background(), "cs_unpaid")
		require.NoError(t, err)
		assert.False(t, session.Paid())
		assert.Empty(t, session.UserID())
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := c.GetCheckoutSession(context.Background(), "cs_missing")
		assert.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		unconfigured := newTestClient(t, config.BillingConfig{})
		_, err := unconfigured.GetCheckoutSession(context.Background(), "cs_paid")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}
