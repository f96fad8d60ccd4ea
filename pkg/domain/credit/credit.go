// Package credit defines the scan-credit ledger: per-user balances and
// the append-only set of billing sessions already credited.
package credit

import (
	"context"
	"time"

	"github.com/vibescan/api/pkg/domain/shared"
)

// Balance is one user's scan credit balance.
type Balance struct {
	UserID           shared.ID
	CreditsRemaining int
	UpdatedAt        time.Time
}

// GrantResult reports the outcome of an idempotent session grant.
type GrantResult struct {
	// Credited is true when this call applied the +1.
	Credited bool `json:"credited"`
	// Already is true when the session had been credited before.
	Already bool `json:"already"`
}

// Repository defines the interface for credit ledger persistence.
//
// GrantForSession must be idempotent per session id regardless of
// concurrency. Implementations anchor this on a uniqueness constraint
// over the credited-sessions table, not on a prior existence check.
type Repository interface {
	// GrantForSession records the session as credited and increments
	// the user's balance by one, at most once per session id.
	GrantForSession(ctx context.Context, sessionID string, userID shared.ID) (GrantResult, error)

	// GrantCoupon increments the user's balance by one for a redeemed
	// coupon code, at most once per (user, code).
	GrantCoupon(ctx context.Context, userID shared.ID, code string) (GrantResult, error)

	// Consume decrements the user's balance by one. Returns
	// shared.ErrInsufficientCredits when the balance is zero or the
	// balance row does not exist.
	Consume(ctx context.Context, userID shared.ID) error

	// Balance returns the user's balance; a missing row reads as zero.
	Balance(ctx context.Context, userID shared.ID) (*Balance, error)
}
