package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/billing"
	"github.com/vibescan/api/internal/metrics"
	"github.com/vibescan/api/pkg/domain/credit"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
)

// CreditService manages the scan credit ledger. Grants are idempotent
// per billing session and per (user, coupon); duplicates are no-ops.
type CreditService struct {
	credits credit.Repository
	billing *billing.Client
	cfg     config.BillingConfig
	log     *logger.Logger
}

// NewCreditService creates a CreditService.
func NewCreditService(credits credit.Repository, billingClient *billing.Client, cfg config.BillingConfig, log *logger.Logger) *CreditService {
	return &CreditService{
		credits: credits,
		billing: billingClient,
		cfg:     cfg,
		log:     log.With("service", "credit"),
	}
}

// Balance returns the user's credit balance.
func (s *CreditService) Balance(ctx context.Context, userID shared.ID) (*credit.Balance, error) {
	return s.credits.Balance(ctx, userID)
}

// GrantFromSession is the client-side confirmation path: the checkout
// session is verified as paid against the billing API before the grant
// is applied. Safe to race with the webhook path; only one +1 lands.
func (s *CreditService) GrantFromSession(ctx context.Context, userID shared.ID, sessionID string) (credit.GrantResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return credit.GrantResult{}, fmt.Errorf("%w: session id is required", shared.ErrValidation)
	}

	session, err := s.billing.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return credit.GrantResult{}, err
	}
	if !session.Paid() {
		return credit.GrantResult{}, billing.ErrSessionNotPaid
	}

	result, err := s.credits.GrantForSession(ctx, sessionID, userID)
	if err != nil {
		return credit.GrantResult{}, err
	}

	s.recordGrant(ctx, result, "session", sessionID)
	return result, nil
}

// HandleWebhookEvent applies a verified billing webhook event. Only
// completed, paid checkout sessions grant a credit; everything else is
// acknowledged and ignored.
func (s *CreditService) HandleWebhookEvent(ctx context.Context, event *billing.Event) (credit.GrantResult, error) {
	if event.Type != "checkout.session.completed" {
		return credit.GrantResult{}, nil
	}

	var session billing.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return credit.GrantResult{}, fmt.Errorf("%w: malformed checkout session payload", shared.ErrValidation)
	}
	if !session.Paid() {
		return credit.GrantResult{}, nil
	}

	userID, err := shared.ParseID(session.UserID())
	if err != nil {
		return credit.GrantResult{}, fmt.Errorf("%w: session metadata has no valid user id", shared.ErrValidation)
	}

	result, err := s.credits.GrantForSession(ctx, session.ID, userID)
	if err != nil {
		return credit.GrantResult{}, err
	}

	s.recordGrant(ctx, result, "webhook", session.ID)
	return result, nil
}

// RedeemCoupon applies a signed coupon token, at most once per
// (user, code).
func (s *CreditService) RedeemCoupon(ctx context.Context, userID shared.ID, token string) (credit.GrantResult, error) {
	code, ok := credit.VerifyCouponToken(s.cfg.EffectiveCouponSecret(), token)
	if !ok {
		return credit.GrantResult{}, fmt.Errorf("%w: invalid coupon token", shared.ErrValidation)
	}

	result, err := s.credits.GrantCoupon(ctx, userID, code)
	if err != nil {
		return credit.GrantResult{}, err
	}

	s.recordGrant(ctx, result, "coupon", code)
	return result, nil
}

func (s *CreditService) recordGrant(ctx context.Context, result credit.GrantResult, source, ref string) {
	outcome := "credited"
	if result.Already {
		outcome = "duplicate"
	}
	metrics.CreditGrants.WithLabelValues(outcome).Inc()
	s.log.WithContext(ctx).Info("credit grant processed",
		"source", source,
		"ref", ref,
		"outcome", outcome)
}
