// Package scan defines the scan aggregate: one uploaded codebase run
// through the scanner and enrichment pipeline.
package scan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vibescan/api/pkg/domain/shared"
)

// Status is the lifecycle state of a scan.
type Status string

// Scan lifecycle states.
const (
	StatusQueued    Status = "queued"
	StatusScanning  Status = "scanning"
	StatusEnriching Status = "enriching"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusQueued, StatusScanning, StatusEnriching, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: invalid scan status %q", shared.ErrValidation, s)
}

// Source says where the scanned code came from.
type Source string

// Scan sources.
const (
	SourceUpload Source = "upload"
	SourceGit    Source = "git"
)

// Scan is one pipeline run over an uploaded or cloned codebase.
type Scan struct {
	id          shared.ID
	userID      shared.ID
	projectName string
	source      Source
	gitURL      string
	status      Status
	findings    int
	failure     string

	// legacyFindings carries the findings JSON blob for scans created
	// before the relational findings table existed. Empty for new scans.
	legacyFindings json.RawMessage

	createdAt   time.Time
	completedAt *time.Time
}

// NewScan creates a queued scan.
func NewScan(userID shared.ID, projectName string, source Source, gitURL string) (*Scan, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrValidation)
	}
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return nil, fmt.Errorf("%w: project name is required", shared.ErrValidation)
	}
	if len(projectName) > 200 {
		return nil, fmt.Errorf("%w: project name exceeds 200 characters", shared.ErrValidation)
	}
	switch source {
	case SourceUpload:
	case SourceGit:
		if strings.TrimSpace(gitURL) == "" {
			return nil, fmt.Errorf("%w: git url is required for git scans", shared.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: invalid scan source %q", shared.ErrValidation, source)
	}

	return &Scan{
		id:          shared.NewID(),
		userID:      userID,
		projectName: projectName,
		source:      source,
		gitURL:      strings.TrimSpace(gitURL),
		status:      StatusQueued,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstitute rebuilds a scan from persistence without validation.
func Reconstitute(
	id, userID shared.ID,
	projectName string,
	source Source,
	gitURL string,
	status Status,
	findings int,
	failure string,
	legacyFindings json.RawMessage,
	createdAt time.Time,
	completedAt *time.Time,
) *Scan {
	return &Scan{
		id:             id,
		userID:         userID,
		projectName:    projectName,
		source:         source,
		gitURL:         gitURL,
		status:         status,
		findings:       findings,
		failure:        failure,
		legacyFindings: legacyFindings,
		createdAt:      createdAt,
		completedAt:    completedAt,
	}
}

// Getters.

func (s *Scan) ID() shared.ID                  { return s.id }
func (s *Scan) UserID() shared.ID              { return s.userID }
func (s *Scan) ProjectName() string            { return s.projectName }
func (s *Scan) Source() Source                 { return s.source }
func (s *Scan) GitURL() string                 { return s.gitURL }
func (s *Scan) Status() Status                 { return s.status }
func (s *Scan) FindingsCount() int             { return s.findings }
func (s *Scan) Failure() string                { return s.failure }
func (s *Scan) LegacyFindings() json.RawMessage { return s.legacyFindings }
func (s *Scan) CreatedAt() time.Time           { return s.createdAt }
func (s *Scan) CompletedAt() *time.Time        { return s.completedAt }

// HasLegacyFindings reports whether findings live as a JSON blob on the
// scan record instead of the findings table.
func (s *Scan) HasLegacyFindings() bool {
	return len(s.legacyFindings) > 0
}

// StartScanning transitions a queued scan to scanning.
func (s *Scan) StartScanning() error {
	if s.status != StatusQueued {
		return fmt.Errorf("%w: cannot start scanning from status %q", shared.ErrConflict, s.status)
	}
	s.status = StatusScanning
	return nil
}

// StartEnriching transitions a scanning scan to enriching.
func (s *Scan) StartEnriching() error {
	if s.status != StatusScanning {
		return fmt.Errorf("%w: cannot start enriching from status %q", shared.ErrConflict, s.status)
	}
	s.status = StatusEnriching
	return nil
}

// Complete marks the scan finished with the given findings count.
func (s *Scan) Complete(findings int) error {
	if s.status != StatusScanning && s.status != StatusEnriching {
		return fmt.Errorf("%w: cannot complete from status %q", shared.ErrConflict, s.status)
	}
	now := time.Now().UTC()
	s.status = StatusCompleted
	s.findings = findings
	s.completedAt = &now
	return nil
}

// Fail marks the scan failed. The reason is stored for operators; the
// API maps it to a safe message.
func (s *Scan) Fail(reason string) {
	now := time.Now().UTC()
	s.status = StatusFailed
	s.failure = reason
	s.completedAt = &now
}
