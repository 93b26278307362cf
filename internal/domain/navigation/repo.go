package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a step does not exist under the tenant.
var ErrNotFound = errors.New("navigation step not found")

// Repository is the step store contract. Every method is scoped by tenant.
type Repository interface {
	// CreateBatch persists a set of steps in one transaction; journey
	// initialization is all-or-nothing.
	CreateBatch(ctx context.Context, steps []*Step) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Step, error)
	Update(ctx context.Context, s *Step) error
	ListByPatient(ctx context.Context, tenantID string, patientID uuid.UUID) ([]*Step, error)
	// ListCandidates returns overdue-scan candidates for one tenant: open,
	// not completed, due before the given instant. Ordered by due date so a
	// capped scan drops the least-late steps first.
	ListCandidates(ctx context.Context, tenantID string, before time.Time, limit int) ([]*Step, error)
	ListCandidatesByPatient(ctx context.Context, tenantID string, patientID uuid.UUID, before time.Time) ([]*Step, error)
	DeleteByPatient(ctx context.Context, tenantID string, patientID uuid.UUID) (int, error)
}
