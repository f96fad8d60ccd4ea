package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibescan/api/internal/app/report"
	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/domain/scan"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
)

// FindingService is the read path over scans and findings. It builds
// dashboard views purely from stored fields and rule tables; it has no
// access to the model.
type FindingService struct {
	scans    scan.Repository
	findings finding.Repository
	feedback finding.FeedbackRepository
	log      *logger.Logger
}

// NewFindingService creates a FindingService.
func NewFindingService(
	scans scan.Repository,
	findings finding.Repository,
	feedback finding.FeedbackRepository,
	log *logger.Logger,
) *FindingService {
	return &FindingService{
		scans:    scans,
		findings: findings,
		feedback: feedback,
		log:      log.With("service", "finding"),
	}
}

// GetScan returns one scan owned by the user.
func (s *FindingService) GetScan(ctx context.Context, userID, scanID shared.ID) (*scan.Scan, error) {
	sc, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !sc.UserID().Equals(userID) {
		return nil, fmt.Errorf("%w: scan %s", shared.ErrNotFound, scanID)
	}
	return sc, nil
}

// ListScans returns the user's scans, newest first.
func (s *FindingService) ListScans(ctx context.Context, userID shared.ID, limit int) ([]*scan.Scan, error) {
	return s.scans.ListByUser(ctx, userID, limit)
}

// ListFindings returns the dashboard view of one scan's findings.
// Scans persisted before row-level findings existed carry their report
// as a JSON blob on the scan record; those go through the same
// normalizer so both shapes serve identically.
func (s *FindingService) ListFindings(ctx context.Context, userID, scanID shared.ID) ([]report.Normalized, error) {
	sc, err := s.GetScan(ctx, userID, scanID)
	if err != nil {
		return nil, err
	}

	detailsURL := detailsURLFor(scanID)

	if sc.HasLegacyFindings() {
		return s.legacyFindings(sc, detailsURL)
	}

	records, err := s.findings.ListByScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	stored := make([]finding.Stored, len(records))
	ids := make([]string, len(records))
	for i, record := range records {
		stored[i] = record.Stored
		ids[i] = record.ID.String()
	}

	return report.ToNormalized(scanID.String(), detailsURL, stored, ids), nil
}

// legacyFindings serves a pre-migration scan whose findings live as a
// raw JSON report on the scan row.
func (s *FindingService) legacyFindings(sc *scan.Scan, detailsURL string) ([]report.Normalized, error) {
	raw := report.ParseRaw(sc.LegacyFindings())
	findings := report.Build(raw)

	stored := make([]finding.Stored, len(findings))
	for i, f := range findings {
		stored[i] = finding.Stored{Finding: f, DetailsText: f.Explanation}
	}

	return report.ToNormalized(sc.ID().String(), detailsURL, stored, nil), nil
}

// UpdateFindingStatus sets the workflow status of one finding.
func (s *FindingService) UpdateFindingStatus(ctx context.Context, userID, findingID shared.ID, status finding.Status) error {
	if _, err := s.ownedFinding(ctx, userID, findingID); err != nil {
		return err
	}
	return s.findings.UpdateStatus(ctx, findingID, status)
}

// SubmitFeedback records a user verdict on a finding's false-positive
// classification.
func (s *FindingService) SubmitFeedback(ctx context.Context, userID, findingID shared.ID, verdict, note string) (*finding.Feedback, error) {
	parsed, err := finding.ParseFeedbackVerdict(verdict)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedFinding(ctx, userID, findingID); err != nil {
		return nil, err
	}

	fb := &finding.Feedback{
		ID:        shared.NewID(),
		FindingID: findingID,
		UserID:    userID,
		Verdict:   parsed,
		Note:      strings.TrimSpace(note),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("false-positive feedback recorded",
		"finding_id", findingID.String(),
		"verdict", string(parsed))

	return fb, nil
}

func (s *FindingService) ownedFinding(ctx context.Context, userID, findingID shared.ID) (*finding.Record, error) {
	record, err := s.findings.GetByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	sc, err := s.scans.GetByID(ctx, record.ScanID)
	if err != nil {
		return nil, err
	}
	if !sc.UserID().Equals(userID) {
		return nil, fmt.Errorf("%w: finding %s", shared.ErrNotFound, findingID)
	}

	return record, nil
}
