package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/internal/infra/billing"
	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/logger"
)

// maxWebhookBody caps webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler handles billing provider webhooks.
type WebhookHandler struct {
	billing *billing.Client
	credits *app.CreditService
	logger  *logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingClient *billing.Client, credits *app.CreditService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingClient,
		credits: credits,
		logger:  log.With("handler", "webhook"),
	}
}

// HandleBilling verifies the signature and applies the event. Unknown
// event types are acknowledged so the provider stops retrying them.
func (h *WebhookHandler) HandleBilling(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, apierror.BadRequest("Failed to read webhook payload"))
		return
	}

	event, err := h.billing.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature), errors.Is(err, billing.ErrStaleTimestamp):
			h.logger.WithContext(r.Context()).Warn("webhook signature verification failed", "error", err)
			writeError(w, r, apierror.BadRequest("Invalid webhook signature"))
		case errors.Is(err, billing.ErrNotConfigured):
			writeError(w, r, apierror.BadRequest("Webhooks are not configured"))
		default:
			writeError(w, r, apierror.BadRequest("Invalid webhook payload"))
		}
		return
	}

	result, err := h.credits.HandleWebhookEvent(r.Context(), event)
	if err != nil {
		// The provider retries on non-2xx; only infrastructure failures
		// should provoke that.
		handleServiceError(w, r, h.logger, "Webhook", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"credited": result.Credited,
	})
}
