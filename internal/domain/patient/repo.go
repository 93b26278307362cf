package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the patient store contract, tenant-scoped throughout.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// List returns patients ordered by priority score descending, so the
	// navigator worklist surfaces the most urgent patients first.
	List(ctx context.Context, tenantID string, limit, offset int) ([]*Patient, int, error)
	// BumpPriority atomically adds delta to the patient's priority score and
	// returns the new value.
	BumpPriority(ctx context.Context, tenantID string, id uuid.UUID, delta int) (int, error)
}
