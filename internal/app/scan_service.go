// Package app holds the application services that orchestrate the scan
// pipeline, the read paths, and the credit ledger.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vibescan/api/internal/app/enrich"
	"github.com/vibescan/api/internal/app/report"
	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/scanner"
	"github.com/vibescan/api/internal/infra/storage"
	"github.com/vibescan/api/internal/infra/websocket"
	"github.com/vibescan/api/internal/metrics"
	"github.com/vibescan/api/pkg/domain/credit"
	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/domain/scan"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
)

// ScanService runs the scan pipeline end to end: credit consumption,
// tool invocation, normalization, enrichment, and persistence. It is
// the only service holding an Enricher; every other surface is
// read-only with respect to enrichment.
type ScanService struct {
	scans    scan.Repository
	findings finding.Repository
	patterns finding.PatternRepository
	credits  credit.Repository
	runner   scanner.Runner
	enricher *enrich.Enricher
	archive  *storage.ArchiveStore
	hub      *websocket.Hub
	cfg      config.ScannerConfig
	log      *logger.Logger
}

// NewScanService creates a ScanService.
func NewScanService(
	scans scan.Repository,
	findings finding.Repository,
	patterns finding.PatternRepository,
	credits credit.Repository,
	runner scanner.Runner,
	enricher *enrich.Enricher,
	archive *storage.ArchiveStore,
	hub *websocket.Hub,
	cfg config.ScannerConfig,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		scans:    scans,
		findings: findings,
		patterns: patterns,
		credits:  credits,
		runner:   runner,
		enricher: enricher,
		archive:  archive,
		hub:      hub,
		cfg:      cfg,
		log:      log.With("service", "scan"),
	}
}

// ScanResult is the outcome of a completed scan pipeline.
type ScanResult struct {
	Scan     *scan.Scan
	Findings []report.Normalized
}

// CreateScanFromArchive runs the pipeline over an uploaded zip.
func (s *ScanService) CreateScanFromArchive(ctx context.Context, userID shared.ID, projectName string, archive io.ReaderAt, size int64) (*ScanResult, error) {
	if s.cfg.MaxZipSize > 0 && size > s.cfg.MaxZipSize {
		return nil, fmt.Errorf("%w: archive exceeds upload size limit", shared.ErrInvalidInput)
	}

	newScan, err := scan.NewScan(userID, projectName, scan.SourceUpload, "")
	if err != nil {
		return nil, err
	}

	var archiveBytes []byte
	if s.archive != nil {
		archiveBytes = make([]byte, size)
		if _, err := archive.ReadAt(archiveBytes, 0); err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
	}

	return s.run(ctx, newScan, archiveBytes, func(workdir string) error {
		return scanner.ExtractZip(archive, size, workdir, s.cfg.MaxExtractedSize)
	})
}

// CreateScanFromGit runs the pipeline over a shallow clone of a public
// repository.
func (s *ScanService) CreateScanFromGit(ctx context.Context, userID shared.ID, projectName, gitURL string) (*ScanResult, error) {
	newScan, err := scan.NewScan(userID, projectName, scan.SourceGit, gitURL)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, newScan, nil, func(workdir string) error {
		return scanner.CloneRepo(ctx, gitURL, workdir)
	})
}

// run executes the pipeline for one scan. The credit is consumed up
// front; a scan that fails afterwards is recorded as failed, and the
// credit is not refunded here.
func (s *ScanService) run(ctx context.Context, sc *scan.Scan, archiveBytes []byte, prepare func(workdir string) error) (*ScanResult, error) {
	log := s.log.WithContext(ctx).With("scan_id", sc.ID().String(), "source", string(sc.Source()))
	started := time.Now()

	if err := s.credits.Consume(ctx, sc.UserID()); err != nil {
		return nil, err
	}
	metrics.CreditsConsumed.Inc()

	if err := s.scans.Create(ctx, sc); err != nil {
		return nil, err
	}
	s.publish(sc)

	result, err := s.pipeline(ctx, sc, archiveBytes, prepare)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		sc.Fail(safeFailureReason(err))
		if updErr := s.scans.Update(ctx, sc); updErr != nil {
			log.WithError(updErr).Error("failed to record scan failure")
		}
		s.publish(sc)
		log.WithError(err).Warn("scan failed", "duration", time.Since(started))
	} else {
		log.Info("scan completed",
			"findings", sc.FindingsCount(),
			"duration", time.Since(started))
	}

	metrics.ScansTotal.WithLabelValues(string(sc.Source()), outcome).Inc()
	metrics.ScanDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ScanService) pipeline(ctx context.Context, sc *scan.Scan, archiveBytes []byte, prepare func(workdir string) error) (*ScanResult, error) {
	workdir, err := scanner.NewWorkDir(s.cfg.WorkRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scanner.RemoveWorkDir(workdir); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("failed to remove scan workdir")
		}
	}()

	if err := prepare(workdir); err != nil {
		return nil, err
	}

	if err := sc.StartScanning(); err != nil {
		return nil, err
	}
	if err := s.scans.Update(ctx, sc); err != nil {
		return nil, err
	}
	s.publish(sc)

	raw, err := s.runner.Run(ctx, workdir)
	if err != nil {
		return nil, err
	}

	findings := report.Build(report.ParseRaw(raw))

	if err := sc.StartEnriching(); err != nil {
		return nil, err
	}
	if err := s.scans.Update(ctx, sc); err != nil {
		return nil, err
	}
	s.publish(sc)

	patterns := s.activePatterns(ctx)
	stored := s.enricher.EnrichOnce(ctx, findings, patterns)

	records, err := s.findings.InsertBatch(ctx, sc.UserID(), sc.ID(), stored)
	if err != nil {
		return nil, fmt.Errorf("failed to persist findings: %w", err)
	}

	if err := sc.Complete(len(stored)); err != nil {
		return nil, err
	}
	if err := s.scans.Update(ctx, sc); err != nil {
		return nil, err
	}
	s.publish(sc)

	if s.archive != nil && len(archiveBytes) > 0 {
		if err := s.archive.StoreArchive(ctx, sc.ID().String(), archiveBytes); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("archive retention failed")
		}
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID.String()
	}
	detailsURL := detailsURLFor(sc.ID())

	return &ScanResult{
		Scan:     sc,
		Findings: report.ToNormalized(sc.ID().String(), detailsURL, stored, ids),
	}, nil
}

// activePatterns fetches the pattern table. Pattern availability is
// never allowed to fail a scan.
func (s *ScanService) activePatterns(ctx context.Context) []finding.FalsePositivePattern {
	if s.patterns == nil {
		return nil
	}
	patterns, err := s.patterns.ListActive(ctx)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to load false-positive patterns")
		return nil
	}
	return patterns
}

func (s *ScanService) publish(sc *scan.Scan) {
	s.hub.Publish(websocket.Event{
		ScanID:        sc.ID().String(),
		Status:        string(sc.Status()),
		FindingsCount: sc.FindingsCount(),
		Failure:       sc.Failure(),
	})
}

func detailsURLFor(scanID shared.ID) string {
	return fmt.Sprintf("/api/v1/scans/%s/findings", scanID.String())
}

// safeFailureReason maps pipeline errors to a short reason safe to
// store and show. Internal detail stays in the logs.
func safeFailureReason(err error) string {
	switch {
	case shared.IsValidation(err):
		return "invalid input"
	case isScannerUnavailable(err):
		return "scanning unavailable"
	default:
		return "scan failed"
	}
}

func isScannerUnavailable(err error) bool {
	return errors.Is(err, shared.ErrScannerUnavailable)
}
