package navigation

import (
	"fmt"
	"strings"
	"time"
)

// transitions is the authoritative step status transition table. Terminal
// states have no entry and reject everything. OVERDUE is reachable from any
// open state as an advisory hint and can fall back to PENDING when a due
// date is corrected forward.
var transitions = map[StepStatus][]StepStatus{
	StatusPending:    {StatusInProgress, StatusCompleted, StatusCancelled, StatusNotApplicable, StatusOverdue},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNotApplicable, StatusOverdue},
	StatusOverdue:    {StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusNotApplicable},
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s StepStatus) bool {
	_, ok := transitions[s]
	return !ok
}

// ValidNext returns the statuses reachable from the given one.
func ValidNext(s StepStatus) []StepStatus {
	return transitions[s]
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to StepStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned when a requested status is not
// reachable from the step's current status. It carries the valid next
// states so callers can report them.
type InvalidTransitionError struct {
	From  StepStatus
	To    StepStatus
	Valid []StepStatus
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Valid) == 0 {
		return fmt.Sprintf("invalid transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	names := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s: valid next states are %s",
		e.From, e.To, strings.Join(names, ", "))
}

// ApplyTransition validates and applies a status transition in place,
// maintaining the completion invariants: IsCompleted is true iff the status
// is COMPLETED, and CompletedAt is set iff IsCompleted. A transition to
// COMPLETED stamps completedAt when the caller supplies one, else now.
func ApplyTransition(step *Step, requested StepStatus, completedAt *time.Time, now time.Time) error {
	if !CanTransition(step.Status, requested) {
		return &InvalidTransitionError{
			From:  step.Status,
			To:    requested,
			Valid: ValidNext(step.Status),
		}
	}

	step.Status = requested
	if requested == StatusCompleted {
		step.IsCompleted = true
		if completedAt != nil {
			t := *completedAt
			step.CompletedAt = &t
		} else {
			t := now
			step.CompletedAt = &t
		}
	} else {
		step.IsCompleted = false
		step.CompletedAt = nil
	}
	step.UpdatedAt = now
	return nil
}
