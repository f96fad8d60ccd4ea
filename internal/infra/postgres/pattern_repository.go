package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vibescan/api/pkg/domain/finding"
)

// PatternRepository implements finding.PatternRepository using
// PostgreSQL.
type PatternRepository struct {
	db *DB
}

// NewPatternRepository creates a new PatternRepository.
func NewPatternRepository(db *DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// ListActive returns active patterns ordered by priority then id, the
// order in which enrichment evaluates them.
func (r *PatternRepository) ListActive(ctx context.Context) ([]finding.FalsePositivePattern, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, context_clue, explanation, confidence
		FROM false_positive_patterns
		WHERE active = TRUE
		ORDER BY priority, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	patterns := make([]finding.FalsePositivePattern, 0)
	for rows.Next() {
		var (
			p           finding.FalsePositivePattern
			ruleID      sql.NullString
			contextClue sql.NullString
			explanation sql.NullString
		)
		if err := rows.Scan(&ruleID, &contextClue, &explanation, &p.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		p.RuleID = nullStringValue(ruleID)
		p.ContextClue = nullStringValue(contextClue)
		p.Explanation = nullStringValue(explanation)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}

	return patterns, nil
}

// Create inserts a new pattern. Used by the admin CLI.
func (r *PatternRepository) Create(ctx context.Context, p finding.FalsePositivePattern, priority int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO false_positive_patterns (rule_id, context_clue, explanation, confidence, priority, active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
	`, nullString(p.RuleID), nullString(p.ContextClue), nullString(p.Explanation), p.Confidence, priority)
	if err != nil {
		return fmt.Errorf("failed to create pattern: %w", err)
	}
	return nil
}
