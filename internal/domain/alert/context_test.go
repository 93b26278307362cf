package alert

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestContextKeys(t *testing.T) {
	stepID := uuid.New()
	reportID := uuid.New()
	convID := uuid.New()
	apptID := uuid.New()
	assessID := uuid.New()

	cases := []struct {
		ctx  Context
		typ  Type
		want string
	}{
		{NavigationDelay{StepID: stepID, DaysOverdue: 3}, TypeNavigationDelay, stepID.String()},
		{CriticalSymptom{ReportID: reportID, Symptoms: []string{"hemoptysis"}}, TypeCriticalSymptom, reportID.String()},
		{SymptomWorsening{ReportID: reportID}, TypeSymptomWorsening, reportID.String()},
		{NoResponse{ConversationID: convID, SilentSince: time.Now()}, TypeNoResponse, convID.String()},
		{DelayedAppointment{AppointmentID: apptID}, TypeDelayedAppointment, apptID.String()},
		{ScoreChange{AssessmentID: assessID, PreviousScore: 4, NewScore: 8}, TypeScoreChange, assessID.String()},
	}
	for _, tc := range cases {
		if got := tc.ctx.AlertType(); got != tc.typ {
			t.Errorf("%T.AlertType() = %s, want %s", tc.ctx, got, tc.typ)
		}
		if got := tc.ctx.Key(); got != tc.want {
			t.Errorf("%T.Key() = %s, want %s", tc.ctx, got, tc.want)
		}
	}
}

func TestContextKey_IgnoresDisplayFields(t *testing.T) {
	stepID := uuid.New()
	a := NavigationDelay{StepID: stepID, DaysOverdue: 3}
	b := NavigationDelay{StepID: stepID, DaysOverdue: 9, StepKey: "renamed"}
	if a.Key() != b.Key() {
		t.Error("key must depend only on the identifying field")
	}
}

func TestDecodeContext_RoundTrip(t *testing.T) {
	orig := NavigationDelay{
		StepID:       uuid.New(),
		StepKey:      "biopsy",
		JourneyStage: "DIAGNOSIS",
		DueDate:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DaysOverdue:  12,
	}
	raw, err := EncodeContext(TypeNavigationDelay, orig)
	if err != nil {
		t.Fatalf("EncodeContext: %v", err)
	}
	decoded, err := DecodeContext(TypeNavigationDelay, raw)
	if err != nil {
		t.Fatalf("DecodeContext: %v", err)
	}
	if decoded.(NavigationDelay) != orig {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, orig)
	}
}

func TestDecodeContext_UnknownType(t *testing.T) {
	if _, err := DecodeContext(Type("BOGUS"), []byte(`{}`)); err == nil {
		t.Error("expected error for unknown alert type")
	}
}

func TestEncodeContext_TypeMismatch(t *testing.T) {
	if _, err := EncodeContext(TypeNavigationDelay, CriticalSymptom{ReportID: uuid.New()}); err == nil {
		t.Error("expected error when context does not match the alert type")
	}
	if _, err := EncodeContext(TypeNavigationDelay, nil); err == nil {
		t.Error("expected error for nil context")
	}
}
