package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/domain/shared"
)

// FindingRepository implements finding.Repository using PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `id, project_id, scan_id, rule_id, scanner, file_path, line,
	title, explanation, why_it_matters, fix_suggestion, fix_prompt,
	severity, status, summary_text, details_text, generated_by, generated_at,
	false_positive_likelihood, false_positive_reason,
	first_seen_at, last_seen_at, resolved_at`

// InsertBatch persists all enriched findings of one scan inside a
// single transaction, preserving input order.
func (r *FindingRepository) InsertBatch(ctx context.Context, projectID, scanID shared.ID, findings []finding.Stored) ([]finding.Record, error) {
	records := make([]finding.Record, 0, len(findings))
	if len(findings) == 0 {
		return records, nil
	}

	query := `
		INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	now := time.Now().UTC()

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range findings {
			record := finding.Record{
				ID:          shared.NewID(),
				ProjectID:   projectID,
				ScanID:      scanID,
				Status:      finding.StatusOpen,
				Stored:      f,
				FirstSeenAt: now,
				LastSeenAt:  now,
			}

			if _, err := stmt.ExecContext(ctx,
				record.ID.String(),
				projectID.String(),
				scanID.String(),
				nullString(f.CheckID),
				string(f.Scanner),
				nullString(f.File),
				nullInt(f.Line),
				f.Title,
				f.Explanation,
				f.WhyItMatters,
				f.FixSuggestion,
				nullString(f.FixPrompt),
				string(f.Severity),
				string(record.Status),
				f.SummaryText,
				f.DetailsText,
				string(f.GeneratedBy),
				f.GeneratedAt,
				likelihoodValue(f.FalsePositiveLikelihood),
				nullStringPtr(f.FalsePositiveReason),
				record.FirstSeenAt,
				record.LastSeenAt,
				nullTime(nil),
			); err != nil {
				return fmt.Errorf("failed to insert finding: %w", err)
			}

			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetByID retrieves a single finding row.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Record, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`

	record, err := scanFindingRow(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: finding %s", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}

	return record, nil
}

// ListByScan retrieves all finding rows of one scan, most severe first,
// stable within a severity level.
func (r *FindingRepository) ListByScan(ctx context.Context, scanID shared.ID) ([]finding.Record, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE scan_id = $1
		ORDER BY
			CASE severity
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
				ELSE 4
			END,
			first_seen_at,
			id
	`

	rows, err := r.db.QueryContext(ctx, query, scanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	records := make([]finding.Record, 0)
	for rows.Next() {
		record, err := scanFindingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate findings: %w", err)
	}

	return records, nil
}

// UpdateStatus updates the workflow status of a finding. Moving to
// fixed or false_positive stamps resolved_at; moving back clears it.
func (r *FindingRepository) UpdateStatus(ctx context.Context, id shared.ID, status finding.Status) error {
	query := `
		UPDATE findings
		SET status = $2,
		    resolved_at = CASE WHEN $2 IN ('fixed', 'false_positive') THEN NOW() ELSE NULL END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id.String(), string(status))
	if err != nil {
		return fmt.Errorf("failed to update finding status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: finding %s", shared.ErrNotFound, id)
	}

	return nil
}

func scanFindingRow(row rowScanner) (*finding.Record, error) {
	var (
		record      finding.Record
		ruleID      sql.NullString
		scanner     string
		filePath    sql.NullString
		line        sql.NullInt64
		fixPrompt   sql.NullString
		severity    string
		status      string
		generatedBy string
		likelihood  sql.NullString
		fpReason    sql.NullString
		resolvedAt  sql.NullTime
	)

	if err := row.Scan(
		&record.ID, &record.ProjectID, &record.ScanID,
		&ruleID, &scanner, &filePath, &line,
		&record.Title, &record.Explanation, &record.WhyItMatters, &record.FixSuggestion, &fixPrompt,
		&severity, &status,
		&record.SummaryText, &record.DetailsText, &generatedBy, &record.GeneratedAt,
		&likelihood, &fpReason,
		&record.FirstSeenAt, &record.LastSeenAt, &resolvedAt,
	); err != nil {
		return nil, err
	}

	record.CheckID = nullStringValue(ruleID)
	record.Scanner = finding.Scanner(scanner)
	record.File = nullStringValue(filePath)
	record.Line = nullIntValue(line)
	record.FixPrompt = nullStringValue(fixPrompt)
	record.Severity = finding.Severity(severity)
	record.Status = finding.Status(status)
	record.GeneratedBy = finding.GeneratedBy(generatedBy)
	if likelihood.Valid {
		l := finding.FalsePositiveLikelihood(likelihood.String)
		record.FalsePositiveLikelihood = &l
	}
	record.FalsePositiveReason = nullStringPtrValue(fpReason)
	record.ResolvedAt = nullTimeValue(resolvedAt)

	return &record, nil
}

func likelihoodValue(l *finding.FalsePositiveLikelihood) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*l), Valid: true}
}
