package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Context is the typed payload carrying an alert's triggering condition.
// Each variant declares its own identifying key: the field that decides
// whether a new candidate is equivalent to an already-open alert. Display
// fields (days overdue, symptom lists) are deliberately excluded from the
// key, since they change from observation to observation without the
// underlying condition changing.
type Context interface {
	AlertType() Type
	// Key returns the identifying key used by the deduplication engine.
	Key() string
}

// NavigationDelay is the context for NAVIGATION_DELAY alerts. Identifying
// key: the step.
type NavigationDelay struct {
	StepID       uuid.UUID `json:"step_id"`
	StepKey      string    `json:"step_key,omitempty"`
	JourneyStage string    `json:"journey_stage,omitempty"`
	DueDate      time.Time `json:"due_date"`
	DaysOverdue  int       `json:"days_overdue"`
}

func (c NavigationDelay) AlertType() Type { return TypeNavigationDelay }
func (c NavigationDelay) Key() string     { return c.StepID.String() }

// CriticalSymptom is the context for CRITICAL_SYMPTOM alerts. Identifying
// key: the symptom report.
type CriticalSymptom struct {
	ReportID uuid.UUID `json:"report_id"`
	Symptoms []string  `json:"symptoms,omitempty"`
}

func (c CriticalSymptom) AlertType() Type { return TypeCriticalSymptom }
func (c CriticalSymptom) Key() string     { return c.ReportID.String() }

// SymptomWorsening is the context for SYMPTOM_WORSENING alerts. Identifying
// key: the symptom report that showed the worsening.
type SymptomWorsening struct {
	ReportID uuid.UUID `json:"report_id"`
	Symptoms []string  `json:"symptoms,omitempty"`
}

func (c SymptomWorsening) AlertType() Type { return TypeSymptomWorsening }
func (c SymptomWorsening) Key() string     { return c.ReportID.String() }

// NoResponse is the context for NO_RESPONSE alerts. Identifying key: the
// conversation that went quiet.
type NoResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	SilentSince    time.Time `json:"silent_since"`
}

func (c NoResponse) AlertType() Type { return TypeNoResponse }
func (c NoResponse) Key() string     { return c.ConversationID.String() }

// DelayedAppointment is the context for DELAYED_APPOINTMENT alerts.
// Identifying key: the appointment.
type DelayedAppointment struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

func (c DelayedAppointment) AlertType() Type { return TypeDelayedAppointment }
func (c DelayedAppointment) Key() string     { return c.AppointmentID.String() }

// ScoreChange is the context for SCORE_CHANGE alerts. Identifying key: the
// assessment whose score moved.
type ScoreChange struct {
	AssessmentID  uuid.UUID `json:"assessment_id"`
	PreviousScore int       `json:"previous_score"`
	NewScore      int       `json:"new_score"`
}

func (c ScoreChange) AlertType() Type { return TypeScoreChange }
func (c ScoreChange) Key() string     { return c.AssessmentID.String() }

// DecodeContext deserializes a stored context payload into the variant for
// the given alert type. The switch is exhaustive over all alert types;
// adding a type without a variant is a compile-visible gap here rather than
// a silent run-time probe.
func DecodeContext(t Type, raw []byte) (Context, error) {
	var (
		ctx Context
		err error
	)
	switch t {
	case TypeNavigationDelay:
		var c NavigationDelay
		err = json.Unmarshal(raw, &c)
		ctx = c
	case TypeCriticalSymptom:
		var c CriticalSymptom
		err = json.Unmarshal(raw, &c)
		ctx = c
	case TypeSymptomWorsening:
		var c SymptomWorsening
		err = json.Unmarshal(raw, &c)
		ctx = c
	case TypeNoResponse:
		var c NoResponse
		err = json.Unmarshal(raw, &c)
		ctx = c
	case TypeDelayedAppointment:
		var c DelayedAppointment
		err = json.Unmarshal(raw, &c)
		ctx = c
	case TypeScoreChange:
		var c ScoreChange
		err = json.Unmarshal(raw, &c)
		ctx = c
	default:
		return nil, fmt.Errorf("unknown alert type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s context: %w", t, err)
	}
	return ctx, nil
}

// EncodeContext serializes a context payload for storage after checking it
// matches the declared alert type.
func EncodeContext(t Type, ctx Context) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("alert context is required")
	}
	if ctx.AlertType() != t {
		return nil, fmt.Errorf("context type %s does not match alert type %s", ctx.AlertType(), t)
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode %s context: %w", t, err)
	}
	return data, nil
}
