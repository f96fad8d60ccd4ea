package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/domain/shared"
)

// FeedbackRepository implements finding.FeedbackRepository using
// PostgreSQL.
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create persists a false-positive verdict.
func (r *FeedbackRepository) Create(ctx context.Context, fb *finding.Feedback) error {
	if fb.ID.IsZero() {
		fb.ID = shared.NewID()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO finding_feedback (id, finding_id, user_id, verdict, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		fb.ID.String(),
		fb.FindingID.String(),
		fb.UserID.String(),
		string(fb.Verdict),
		nullString(fb.Note),
		fb.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: feedback for finding %s", shared.ErrAlreadyExists, fb.FindingID)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

// ListByFinding returns all feedback for one finding, newest first.
func (r *FeedbackRepository) ListByFinding(ctx context.Context, findingID shared.ID) ([]finding.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, finding_id, user_id, verdict, note, created_at
		FROM finding_feedback
		WHERE finding_id = $1
		ORDER BY created_at DESC
	`, findingID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	feedback := make([]finding.Feedback, 0)
	for rows.Next() {
		var (
			fb      finding.Feedback
			verdict string
			note    sql.NullString
		)
		if err := rows.Scan(&fb.ID, &fb.FindingID, &fb.UserID, &verdict, &note, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		fb.Verdict = finding.FeedbackVerdict(verdict)
		fb.Note = nullStringValue(note)
		feedback = append(feedback, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}

	return feedback, nil
}
