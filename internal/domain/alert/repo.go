package alert

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows an alert listing. Zero values mean "no filter".
type ListFilter struct {
	PatientID uuid.UUID
	Status    Status
	Severity  Severity
	// OnlyOpen keeps PENDING and ACKNOWLEDGED alerts only. It composes with
	// Severity but is mutually exclusive with Status.
	OnlyOpen bool
}

// Repository is the alert store contract. Every method is scoped by tenant;
// there is no way to read or write an alert without naming its tenant.
type Repository interface {
	// Create persists a new alert. It returns ErrDuplicateOpen when the
	// store's open-alert uniqueness guard rejects the row.
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	// ListOpen returns alerts with an open status for the given patient and
	// alert type, the working set of the deduplication engine.
	ListOpen(ctx context.Context, tenantID string, patientID uuid.UUID, t Type) ([]*Alert, error)
	List(ctx context.Context, tenantID string, f ListFilter, limit, offset int) ([]*Alert, int, error)
	CountOpen(ctx context.Context, tenantID string) (int, error)
	CountOpenCritical(ctx context.Context, tenantID string) (int, error)
}
