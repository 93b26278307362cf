// Package alert owns the alert lifecycle: creation through the deduplication
// engine, severity classification, acknowledgement and resolution, and the
// fan-out of new and updated alerts to live subscribers.
package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type identifies the triggering condition class of an alert.
type Type string

const (
	TypeNavigationDelay    Type = "NAVIGATION_DELAY"
	TypeCriticalSymptom    Type = "CRITICAL_SYMPTOM"
	TypeNoResponse         Type = "NO_RESPONSE"
	TypeDelayedAppointment Type = "DELAYED_APPOINTMENT"
	TypeScoreChange        Type = "SCORE_CHANGE"
	TypeSymptomWorsening   Type = "SYMPTOM_WORSENING"
)

// Severity orders alerts by clinical urgency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank returns a comparable weight, higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Status is the lifecycle state of an alert. PENDING and ACKNOWLEDGED are
// the open states; dedup only considers open alerts.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
	StatusDismissed    Status = "DISMISSED"
)

// Open reports whether the status counts as open for deduplication.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusAcknowledged
}

var (
	// ErrNotFound is returned when an alert does not exist under the tenant.
	ErrNotFound = errors.New("alert not found")
	// ErrDuplicateOpen is returned by the store when the open-alert
	// uniqueness guard rejects a create. The dedup engine treats it as a
	// suppression, never as a failure.
	ErrDuplicateOpen = errors.New("open alert already exists for this key")
	// ErrClosed is returned when acknowledging or resolving an alert that
	// is already RESOLVED or DISMISSED.
	ErrClosed = errors.New("alert is already closed")
)

// Alert maps to the alert table. Alerts are never deleted; they end in
// RESOLVED or DISMISSED.
type Alert struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Type           Type       `db:"type" json:"type"`
	Severity       Severity   `db:"severity" json:"severity"`
	Status         Status     `db:"status" json:"status"`
	Message        string     `db:"message" json:"message"`
	Context        Context    `db:"-" json:"context"`
	ContextKey     string     `db:"context_key" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *string    `db:"resolved_by" json:"resolved_by,omitempty"`
}
