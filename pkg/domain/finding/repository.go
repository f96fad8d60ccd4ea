package finding

import (
	"context"
	"time"

	"github.com/vibescan/api/pkg/domain/shared"
)

// Record is a persisted, enriched finding together with its row
// identity and workflow state.
type Record struct {
	ID        shared.ID
	ProjectID shared.ID
	ScanID    shared.ID
	Status    Status
	Stored
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	ResolvedAt  *time.Time
}

// Repository defines the interface for finding persistence.
type Repository interface {
	// InsertBatch persists all enriched findings of one scan.
	InsertBatch(ctx context.Context, projectID, scanID shared.ID, findings []Stored) ([]Record, error)

	// GetByID retrieves a single finding row.
	GetByID(ctx context.Context, id shared.ID) (*Record, error)

	// ListByScan retrieves all finding rows of one scan, ordered by
	// severity rank then insertion order.
	ListByScan(ctx context.Context, scanID shared.ID) ([]Record, error)

	// UpdateStatus updates the workflow status of a finding.
	UpdateStatus(ctx context.Context, id shared.ID, status Status) error
}

// PatternRepository provides the active false-positive pattern table.
type PatternRepository interface {
	// ListActive returns active patterns in their defined order.
	ListActive(ctx context.Context) ([]FalsePositivePattern, error)
}

// FeedbackRepository persists user verdicts on false-positive
// classifications.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *Feedback) error
	ListByFinding(ctx context.Context, findingID shared.ID) ([]Feedback, error)
}
