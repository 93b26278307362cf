// Package navigation tracks each patient's journey steps: the per-stage step
// templates, the step status state machine, and the overdue detector that
// feeds the alerting engine.
package navigation

import (
	"time"

	"github.com/google/uuid"
)

// JourneyStage is the coarse phase of a patient's care pathway.
type JourneyStage string

const (
	StageScreening  JourneyStage = "SCREENING"
	StageNavigation JourneyStage = "NAVIGATION"
	StageDiagnosis  JourneyStage = "DIAGNOSIS"
	StageTreatment  JourneyStage = "TREATMENT"
	StageFollowUp   JourneyStage = "FOLLOW_UP"
)

// Stages lists all journey stages in pathway order.
var Stages = []JourneyStage{
	StageScreening,
	StageNavigation,
	StageDiagnosis,
	StageTreatment,
	StageFollowUp,
}

// ValidStage reports whether s is a known journey stage.
func ValidStage(s JourneyStage) bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// StepStatus is the lifecycle state of a navigation step.
type StepStatus string

const (
	StatusPending       StepStatus = "PENDING"
	StatusInProgress    StepStatus = "IN_PROGRESS"
	StatusCompleted     StepStatus = "COMPLETED"
	StatusOverdue       StepStatus = "OVERDUE"
	StatusCancelled     StepStatus = "CANCELLED"
	StatusNotApplicable StepStatus = "NOT_APPLICABLE"
)

// Step maps to the navigation_step table. Steps are never physically
// deleted once a journey is underway; they end in a terminal status.
type Step struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	TenantID         string       `db:"tenant_id" json:"tenant_id"`
	PatientID        uuid.UUID    `db:"patient_id" json:"patient_id"`
	JourneyStage     JourneyStage `db:"journey_stage" json:"journey_stage"`
	StepKey          string       `db:"step_key" json:"step_key"`
	StepName         string       `db:"step_name" json:"step_name"`
	StepDescription  *string      `db:"step_description" json:"step_description,omitempty"`
	Status           StepStatus   `db:"status" json:"status"`
	IsCompleted      bool         `db:"is_completed" json:"is_completed"`
	IsRequired       bool         `db:"is_required" json:"is_required"`
	DueDate          *time.Time   `db:"due_date" json:"due_date,omitempty"`
	CompletedAt      *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	InstitutionName  *string      `db:"institution_name" json:"institution_name,omitempty"`
	ProfessionalName *string      `db:"professional_name" json:"professional_name,omitempty"`
	Result           *string      `db:"result" json:"result,omitempty"`
	Findings         []string     `db:"findings" json:"findings,omitempty"`
	Notes            *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Open reports whether the step is still actionable: not completed and not
// in a terminal status.
func (s *Step) Open() bool {
	return !IsTerminal(s.Status)
}

// Late reports whether the step's due date has passed at the given instant.
// This is the authoritative overdue check; the stored OVERDUE status is only
// a denormalized hint and is never trusted on its own.
func (s *Step) Late(now time.Time) bool {
	return s.Open() && s.DueDate != nil && s.DueDate.Before(now)
}

// DaysOverdue returns how many whole calendar days the step's due date lies
// in the past, comparing midnights so that a step due earlier today counts
// as 0 days overdue until midnight passes. Steps without a due date are
// never overdue.
func (s *Step) DaysOverdue(now time.Time) int {
	if s.DueDate == nil {
		return 0
	}
	due := midnight(*s.DueDate, now.Location())
	today := midnight(now, now.Location())
	if !due.Before(today) {
		return 0
	}
	return int(today.Sub(due) / (24 * time.Hour))
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
