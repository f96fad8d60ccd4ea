package scan

import (
	"context"

	"github.com/vibescan/api/pkg/domain/shared"
)

// Repository defines the interface for scan persistence.
type Repository interface {
	// Create persists a new scan record.
	Create(ctx context.Context, s *Scan) error

	// Update persists status, findings count, and completion fields.
	Update(ctx context.Context, s *Scan) error

	// GetByID retrieves a scan by its ID.
	GetByID(ctx context.Context, id shared.ID) (*Scan, error)

	// ListByUser retrieves a user's scans, newest first.
	ListByUser(ctx context.Context, userID shared.ID, limit int) ([]*Scan, error)
}
