package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vibescan/api/pkg/domain/scan"
	"github.com/vibescan/api/pkg/domain/shared"
)

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, user_id, project_name, source, git_url, status, findings_count, failure_reason, legacy_findings, created_at, completed_at`

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID().String(),
		s.UserID().String(),
		s.ProjectName(),
		string(s.Source()),
		nullString(s.GitURL()),
		string(s.Status()),
		s.FindingsCount(),
		nullString(s.Failure()),
		legacyFindingsValue(s.LegacyFindings()),
		s.CreatedAt(),
		nullTime(s.CompletedAt()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: scan %s", shared.ErrAlreadyExists, s.ID())
		}
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// Update persists scan state changes.
func (r *ScanRepository) Update(ctx context.Context, s *scan.Scan) error {
	query := `
		UPDATE scans
		SET status = $2,
		    findings_count = $3,
		    failure_reason = $4,
		    legacy_findings = $5,
		    completed_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID().String(),
		string(s.Status()),
		s.FindingsCount(),
		nullString(s.Failure()),
		legacyFindingsValue(s.LegacyFindings()),
		nullTime(s.CompletedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: scan %s", shared.ErrNotFound, s.ID())
	}

	return nil
}

// GetByID retrieves a scan by its id.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`

	s, err := scanRow(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: scan %s", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	return s, nil
}

// ListByUser retrieves a user's scans, newest first.
func (r *ScanRepository) ListByUser(ctx context.Context, userID shared.ID, limit int) ([]*scan.Scan, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}

	return scans, nil
}

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*scan.Scan, error) {
	var (
		id, userID     shared.ID
		projectName    string
		source, status string
		gitURL         sql.NullString
		findings       int
		failure        sql.NullString
		legacy         []byte
		createdAt      sql.NullTime
		completedAt    sql.NullTime
	)

	if err := row.Scan(
		&id, &userID, &projectName, &source, &gitURL, &status,
		&findings, &failure, &legacy, &createdAt, &completedAt,
	); err != nil {
		return nil, err
	}

	parsedStatus, err := scan.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	return scan.Reconstitute(
		id, userID,
		projectName,
		scan.Source(source),
		nullStringValue(gitURL),
		parsedStatus,
		findings,
		nullStringValue(failure),
		json.RawMessage(legacy),
		createdAt.Time,
		nullTimeValue(completedAt),
	), nil
}

// legacyFindingsValue maps an empty raw blob to SQL NULL for the JSONB
// column.
func legacyFindingsValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
