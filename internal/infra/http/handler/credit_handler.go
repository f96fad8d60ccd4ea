package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/internal/infra/billing"
	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/logger"
	"github.com/vibescan/api/pkg/validator"
)

// CreditHandler handles credit balance reads and grant paths.
type CreditHandler struct {
	credits   *app.CreditService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(credits *app.CreditService, v *validator.Validator, log *logger.Logger) *CreditHandler {
	return &CreditHandler{
		credits:   credits,
		validator: v,
		logger:    log.With("handler", "credit"),
	}
}

// BalanceResponse is the credit balance representation.
type BalanceResponse struct {
	CreditsRemaining int `json:"credits_remaining"`
}

// FromSessionRequest is the body for the client-side confirmation
// grant path.
type FromSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
}

// CouponRequest is the body for a coupon redemption.
type CouponRequest struct {
	Token string `json:"token" validate:"required,max=1024"`
}

// GetBalance returns the user's credit balance.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, "Balance", err)
		return
	}

	respondJSON(w, http.StatusOK, BalanceResponse{CreditsRemaining: balance.CreditsRemaining})
}

// GrantFromSession verifies a checkout session as paid and grants a
// credit. Duplicate confirmations are acknowledged as already granted.
func (h *CreditHandler) GrantFromSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	var req FromSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	result, err := h.credits.GrantFromSession(r.Context(), userID, req.SessionID)
	if err != nil {
		h.handleBillingError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RedeemCoupon redeems a signed coupon token.
func (h *CreditHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUserID(w, r)
	if !ok {
		return
	}

	var req CouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	result, err := h.credits.RedeemCoupon(r.Context(), userID, req.Token)
	if err != nil {
		handleServiceError(w, r, h.logger, "Coupon", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *CreditHandler) handleBillingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billing.ErrSessionNotPaid):
		writeError(w, r, apierror.BadRequest("Checkout session has not been paid"))
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, r, apierror.BadRequest("Billing is not configured on this server"))
	default:
		handleServiceError(w, r, h.logger, "Session", err)
	}
}
