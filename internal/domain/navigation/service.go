package navigation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service implements journey initialization and step updates on top of the
// step repository and the transition table.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// InitializeJourney replaces the patient's steps with a fresh pathway batch
// for the given cancer type. Due dates are anchored at the call instant.
func (s *Service) InitializeJourney(ctx context.Context, tenantID string, patientID uuid.UUID, cancerType string) ([]*Step, error) {
	now := time.Now().UTC()

	templates := TemplatesFor(cancerType)
	steps := make([]*Step, 0, len(templates))
	for _, t := range templates {
		steps = append(steps, t.Instantiate(tenantID, patientID, now))
	}

	removed, err := s.repo.DeleteByPatient(ctx, tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("clear existing journey: %w", err)
	}
	if err := s.repo.CreateBatch(ctx, steps); err != nil {
		return nil, fmt.Errorf("initialize journey: %w", err)
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("patient_id", patientID.String()).
		Str("cancer_type", cancerType).
		Int("steps", len(steps)).
		Int("replaced", removed).
		Msg("journey initialized")
	return steps, nil
}

// AddStep creates a single ad-hoc step outside the pathway templates.
func (s *Service) AddStep(ctx context.Context, step *Step) error {
	if !ValidStage(step.JourneyStage) {
		return fmt.Errorf("invalid journey stage %q", step.JourneyStage)
	}
	if step.StepKey == "" || step.StepName == "" {
		return fmt.Errorf("step key and name are required")
	}
	if step.Status == "" {
		step.Status = StatusPending
	}
	if step.Status != StatusPending {
		return fmt.Errorf("new steps start as %s", StatusPending)
	}
	return s.repo.CreateBatch(ctx, []*Step{step})
}

// GetStep returns one step under the tenant.
func (s *Service) GetStep(ctx context.Context, tenantID string, id uuid.UUID) (*Step, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// ListPatientSteps returns all of a patient's steps in pathway order.
func (s *Service) ListPatientSteps(ctx context.Context, tenantID string, patientID uuid.UUID) ([]*Step, error) {
	return s.repo.ListByPatient(ctx, tenantID, patientID)
}

// StepUpdate carries the mutable step fields. Nil pointers leave the field
// untouched; Status empty means no transition was requested.
type StepUpdate struct {
	Status           StepStatus `json:"status,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	InstitutionName  *string    `json:"institution_name,omitempty"`
	ProfessionalName *string    `json:"professional_name,omitempty"`
	Result           *string    `json:"result,omitempty"`
	Findings         []string   `json:"findings,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

// UpdateStep applies a partial update. A requested status goes through the
// transition table; a due date change immediately reconciles the advisory
// OVERDUE hint in both directions, so a corrected date takes effect without
// waiting for the next scan.
func (s *Service) UpdateStep(ctx context.Context, tenantID string, id uuid.UUID, upd StepUpdate) (*Step, error) {
	step, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if upd.Status != "" && upd.Status != step.Status {
		if err := ApplyTransition(step, upd.Status, upd.CompletedAt, now); err != nil {
			return nil, err
		}
	}
	if upd.DueDate != nil {
		step.DueDate = upd.DueDate
	}
	if upd.InstitutionName != nil {
		step.InstitutionName = upd.InstitutionName
	}
	if upd.ProfessionalName != nil {
		step.ProfessionalName = upd.ProfessionalName
	}
	if upd.Result != nil {
		step.Result = upd.Result
	}
	if upd.Findings != nil {
		step.Findings = upd.Findings
	}
	if upd.Notes != nil {
		step.Notes = upd.Notes
	}

	reconcileOverdueHint(step, now)
	step.UpdatedAt = now

	if err := s.repo.Update(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// reconcileOverdueHint keeps the stored OVERDUE hint consistent with the
// live clock after an edit. It only moves between PENDING and OVERDUE; an
// IN_PROGRESS step that is late keeps its status until the scan marks it.
func reconcileOverdueHint(step *Step, now time.Time) {
	switch {
	case step.Status == StatusOverdue && !step.Late(now):
		step.Status = StatusPending
	case step.Status == StatusPending && step.Late(now) && step.DaysOverdue(now) >= 1:
		step.Status = StatusOverdue
	}
}
