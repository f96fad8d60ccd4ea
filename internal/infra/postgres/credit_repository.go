package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vibescan/api/pkg/domain/credit"
	"github.com/vibescan/api/pkg/domain/shared"
)

// CreditRepository implements credit.Repository using PostgreSQL.
//
// Grant idempotence rides on unique constraints, not on read-then-write
// checks, so concurrent duplicate webhooks collapse to a single +1.
type CreditRepository struct {
	db *DB
}

// NewCreditRepository creates a new CreditRepository.
func NewCreditRepository(db *DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GrantForSession records the billing session as credited and adds one
// credit, at most once per session id.
func (r *CreditRepository) GrantForSession(ctx context.Context, sessionID string, userID shared.ID) (credit.GrantResult, error) {
	var result credit.GrantResult

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO stripe_credited_sessions (session_id, user_id, credited_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (session_id) DO NOTHING
		`, sessionID, userID.String())
		if err != nil {
			return fmt.Errorf("failed to record credited session: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check session insert: %w", err)
		}
		if rows == 0 {
			// A concurrent or earlier request already claimed this session.
			result = credit.GrantResult{Credited: false, Already: true}
			return nil
		}

		if err := incrementBalance(ctx, tx, userID); err != nil {
			return err
		}

		result = credit.GrantResult{Credited: true, Already: false}
		return nil
	})
	if err != nil {
		return credit.GrantResult{}, err
	}

	return result, nil
}

// GrantCoupon adds one credit for a redeemed coupon code, at most once
// per (user, code).
func (r *CreditRepository) GrantCoupon(ctx context.Context, userID shared.ID, code string) (credit.GrantResult, error) {
	var result credit.GrantResult

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO coupon_redemptions (user_id, code, redeemed_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id, code) DO NOTHING
		`, userID.String(), code)
		if err != nil {
			return fmt.Errorf("failed to record coupon redemption: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check redemption insert: %w", err)
		}
		if rows == 0 {
			result = credit.GrantResult{Credited: false, Already: true}
			return nil
		}

		if err := incrementBalance(ctx, tx, userID); err != nil {
			return err
		}

		result = credit.GrantResult{Credited: true, Already: false}
		return nil
	})
	if err != nil {
		return credit.GrantResult{}, err
	}

	return result, nil
}

// Consume decrements the user's balance by one. The guard in the WHERE
// clause makes the decrement atomic under concurrency.
func (r *CreditRepository) Consume(ctx context.Context, userID shared.ID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scan_credits
		SET credits_remaining = credits_remaining - 1,
		    updated_at = NOW()
		WHERE user_id = $1 AND credits_remaining > 0
	`, userID.String())
	if err != nil {
		return fmt.Errorf("failed to consume credit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check consume result: %w", err)
	}
	if rows == 0 {
		return shared.ErrInsufficientCredits
	}

	return nil
}

// Balance returns the user's balance; a missing row reads as zero.
func (r *CreditRepository) Balance(ctx context.Context, userID shared.ID) (*credit.Balance, error) {
	var (
		remaining int
		updatedAt time.Time
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT credits_remaining, updated_at
		FROM scan_credits
		WHERE user_id = $1
	`, userID.String()).Scan(&remaining, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &credit.Balance{UserID: userID, CreditsRemaining: 0, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return &credit.Balance{UserID: userID, CreditsRemaining: remaining, UpdatedAt: updatedAt}, nil
}

func incrementBalance(ctx context.Context, tx *sql.Tx, userID shared.ID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO scan_credits (user_id, credits_remaining, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET credits_remaining = scan_credits.credits_remaining + 1,
		    updated_at = NOW()
	`, userID.String())
	if err != nil {
		return fmt.Errorf("failed to increment credit balance: %w", err)
	}
	return nil
}
