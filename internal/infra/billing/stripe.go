// Package billing talks to the payment provider. Payment processing
// itself happens elsewhere; this package only verifies checkout
// sessions and webhook signatures so credits can be granted safely.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/pkg/logger"
)

// Verification errors.
var (
	ErrNotConfigured    = errors.New("billing: provider not configured")
	ErrSessionNotPaid   = errors.New("billing: checkout session not paid")
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrStaleTimestamp   = errors.New("billing: webhook timestamp outside tolerance")
)

// CheckoutSession is the subset of a provider checkout session the
// credit ledger needs.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata"`
}

// Paid reports whether the session completed with payment.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// UserID returns the purchasing user's id from session metadata.
func (s *CheckoutSession) UserID() string {
	return s.Metadata["user_id"]
}

// Event is a provider webhook event.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Client is a minimal Stripe API client.
type Client struct {
	baseURL          string
	secretKey        string
	webhookSecret    string
	toleranceSeconds int
	httpClient       *http.Client
	log              *logger.Logger
}

// NewClient creates a billing client from configuration.
func NewClient(cfg config.BillingConfig, log *logger.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.StripeAPIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	tolerance := cfg.WebhookToleranceSecs
	if tolerance <= 0 {
		tolerance = 300
	}
	return &Client{
		baseURL:          baseURL,
		secretKey:        cfg.StripeSecretKey,
		webhookSecret:    cfg.StripeWebhookSecret,
		toleranceSeconds: tolerance,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		log:              log.With("component", "billing"),
	}
}

// Configured reports whether a provider secret key is set.
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// GetCheckoutSession fetches a checkout session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read session response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.WithContext(ctx).Warn("checkout session lookup failed",
			"status", resp.StatusCode,
			"session_id", sessionID)
		return nil, fmt.Errorf("billing API returned status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	return &session, nil
}

// VerifyWebhook checks the provider signature header against the raw
// payload and decodes the event. The header carries a unix timestamp
// and one or more v1 signatures over "timestamp.payload".
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age < 0 {
		age = -age
	}
	if age > time.Duration(c.toleranceSeconds)*time.Second {
		return nil, ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	return &event, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp  int64
		signatures []string
	)

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
