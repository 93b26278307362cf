package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/navcare/navcare/internal/domain/navigation"
)

// JourneyInitializer seeds the pathway steps for a newly registered
// patient. *navigation.Service satisfies it.
type JourneyInitializer interface {
	InitializeJourney(ctx context.Context, tenantID string, patientID uuid.UUID, cancerType string) ([]*navigation.Step, error)
}

// Service implements patient registration and the priority score updates
// driven by alerting.
type Service struct {
	repo    Repository
	journey JourneyInitializer
	logger  zerolog.Logger
}

func NewService(repo Repository, journey JourneyInitializer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, journey: journey, logger: logger}
}

// Register creates the patient and seeds their journey steps for the
// assigned cancer type.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full name is required")
	}
	if p.CancerType == "" {
		return fmt.Errorf("cancer type is required")
	}
	if p.CurrentStage == "" {
		p.CurrentStage = navigation.StageScreening
	}
	if !navigation.ValidStage(p.CurrentStage) {
		return fmt.Errorf("invalid journey stage %q", p.CurrentStage)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	if _, err := s.journey.InitializeJourney(ctx, p.TenantID, p.ID, p.CancerType); err != nil {
		return fmt.Errorf("seed journey: %w", err)
	}

	s.logger.Info().
		Str("tenant_id", p.TenantID).
		Str("patient_id", p.ID.String()).
		Str("cancer_type", p.CancerType).
		Msg("patient registered")
	return nil
}

// Get returns one patient under the tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns a worklist page ordered by priority.
func (s *Service) List(ctx context.Context, tenantID string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

// Update applies demographic and pathway changes. The priority score is not
// writable here; it only moves through BumpPriority.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.CurrentStage != "" && !navigation.ValidStage(p.CurrentStage) {
		return fmt.Errorf("invalid journey stage %q", p.CurrentStage)
	}
	return s.repo.Update(ctx, p)
}

// BumpPriority raises the patient's priority score when an alert opens
// against them.
func (s *Service) BumpPriority(ctx context.Context, tenantID string, id uuid.UUID, delta int) (int, error) {
	score, err := s.repo.BumpPriority(ctx, tenantID, id, delta)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().
		Str("tenant_id", tenantID).
		Str("patient_id", id.String()).
		Int("delta", delta).
		Int("priority_score", score).
		Msg("patient priority bumped")
	return score, nil
}
