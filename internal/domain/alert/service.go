package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/navcare/navcare/internal/platform/fanout"
)

// Publisher is the contract the service needs from the websocket layer.
// *fanout.Hub satisfies it.
type Publisher interface {
	PublishData(tenantID, eventType string, payload interface{})
}

// DelayCandidate describes one overdue step as observed by the detector.
// The service turns it into an alert candidate; whether an alert is
// actually created is the dedup engine's call.
type DelayCandidate struct {
	PatientID    uuid.UUID
	StepID       uuid.UUID
	StepKey      string
	StepName     string
	JourneyStage string
	DueDate      time.Time
	DaysOverdue  int
	IsRequired   bool
}

// Service implements the alert lifecycle on top of the repository, the
// deduplication engine, and the fan-out hub.
type Service struct {
	repo       Repository
	dedup      *Deduper
	publisher  Publisher
	thresholds Thresholds
	logger     zerolog.Logger
}

func NewService(repo Repository, publisher Publisher, thresholds Thresholds, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		dedup:      NewDeduper(repo, logger),
		publisher:  publisher,
		thresholds: thresholds,
		logger:     logger,
	}
}

// EnsureNavigationDelay classifies the candidate and hands it to the dedup
// engine. When a new alert is created it is pushed to the tenant's live
// subscribers; a suppressed candidate produces no events at all.
func (s *Service) EnsureNavigationDelay(ctx context.Context, tenantID string, c DelayCandidate) (EnsureResult, error) {
	severity := s.thresholds.ClassifyDelay(c.DaysOverdue, c.IsRequired)

	candidate := &Alert{
		TenantID:  tenantID,
		PatientID: c.PatientID,
		Type:      TypeNavigationDelay,
		Severity:  severity,
		Message:   delayMessage(c),
		Context: NavigationDelay{
			StepID:       c.StepID,
			StepKey:      c.StepKey,
			JourneyStage: c.JourneyStage,
			DueDate:      c.DueDate,
			DaysOverdue:  c.DaysOverdue,
		},
	}

	result, err := s.dedup.EnsureOpen(ctx, candidate)
	if err != nil {
		return EnsureResult{}, err
	}
	if result.Suppressed() {
		return result, nil
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("alert_id", result.Created.ID.String()).
		Str("severity", string(severity)).
		Int("days_overdue", c.DaysOverdue).
		Msg("navigation delay alert created")

	s.publisher.PublishData(tenantID, fanout.EventNewAlert, result.Created)
	if severity == SeverityCritical {
		s.publisher.PublishData(tenantID, fanout.EventCriticalAlert, result.Created)
	}
	s.publishOpenCount(ctx, tenantID)
	return result, nil
}

func delayMessage(c DelayCandidate) string {
	name := c.StepName
	if name == "" {
		name = c.StepKey
	}
	unit := "days"
	if c.DaysOverdue == 1 {
		unit = "day"
	}
	return fmt.Sprintf("Navigation step %q is %d %s overdue", name, c.DaysOverdue, unit)
}

// Get returns one alert under the tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Alert, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns a filtered page of alerts plus the unpaged total.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, limit, offset int) ([]*Alert, int, error) {
	return s.repo.List(ctx, tenantID, f, limit, offset)
}

// ListCritical returns open CRITICAL alerts, the escalation worklist.
func (s *Service) ListCritical(ctx context.Context, tenantID string, limit, offset int) ([]*Alert, int, error) {
	return s.repo.List(ctx, tenantID, ListFilter{Severity: SeverityCritical, OnlyOpen: true}, limit, offset)
}

// OpenCount reports open and open-critical alert totals for the tenant.
func (s *Service) OpenCount(ctx context.Context, tenantID string) (open, critical int, err error) {
	open, err = s.repo.CountOpen(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	critical, err = s.repo.CountOpenCritical(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	return open, critical, nil
}

// Acknowledge marks a PENDING alert as seen by the given actor. Already
// acknowledged alerts are left as-is; closed alerts are rejected.
func (s *Service) Acknowledge(ctx context.Context, tenantID string, id uuid.UUID, actor string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.Open() {
		return nil, ErrClosed
	}
	if a.Status == StatusAcknowledged {
		return a, nil
	}

	now := time.Now().UTC()
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = &actor
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.publisher.PublishData(tenantID, fanout.EventAlertUpdated, a)
	return a, nil
}

// Resolve closes an open alert as handled.
func (s *Service) Resolve(ctx context.Context, tenantID string, id uuid.UUID, actor string) (*Alert, error) {
	return s.close(ctx, tenantID, id, actor, StatusResolved)
}

// Dismiss closes an open alert as not actionable.
func (s *Service) Dismiss(ctx context.Context, tenantID string, id uuid.UUID, actor string) (*Alert, error) {
	return s.close(ctx, tenantID, id, actor, StatusDismissed)
}

func (s *Service) close(ctx context.Context, tenantID string, id uuid.UUID, actor string, status Status) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.Open() {
		return nil, ErrClosed
	}

	now := time.Now().UTC()
	a.Status = status
	a.ResolvedAt = &now
	a.ResolvedBy = &actor
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("alert_id", a.ID.String()).
		Str("status", string(status)).
		Str("actor", actor).
		Msg("alert closed")

	s.publisher.PublishData(tenantID, fanout.EventAlertUpdated, a)
	s.publishOpenCount(ctx, tenantID)
	return a, nil
}

// publishOpenCount pushes the current open totals so dashboards can update
// their badges without polling. Count failures are logged, never surfaced;
// the lifecycle change already succeeded.
func (s *Service) publishOpenCount(ctx context.Context, tenantID string) {
	open, critical, err := s.OpenCount(ctx, tenantID)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("open alert count unavailable")
		return
	}
	s.publisher.PublishData(tenantID, fanout.EventOpenAlertCount, map[string]int{
		"open":     open,
		"critical": critical,
	})
}
