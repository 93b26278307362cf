package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EnsureResult reports what the deduplication engine did with a candidate:
// exactly one of Created / SuppressedBy is set.
type EnsureResult struct {
	Created      *Alert
	SuppressedBy uuid.UUID
}

// Suppressed reports whether an equivalent open alert already existed.
func (r EnsureResult) Suppressed() bool {
	return r.Created == nil
}

// Deduper enforces the core invariant: at most one open alert per
// (tenant, patient, type, identifying key). It is read-then-create, so the
// store's uniqueness guard is the backstop for races; a rejected duplicate
// create is reported as a suppression, not an error.
type Deduper struct {
	alerts Repository
	logger zerolog.Logger
}

func NewDeduper(alerts Repository, logger zerolog.Logger) *Deduper {
	return &Deduper{alerts: alerts, logger: logger}
}

// EnsureOpen creates the candidate alert unless an equivalent open alert
// already exists. Equivalence is exact match on the context's identifying
// key among open alerts of the same (tenant, patient, type); display fields
// such as days overdue are ignored, and an existing alert is left untouched
// when suppressing.
func (d *Deduper) EnsureOpen(ctx context.Context, candidate *Alert) (EnsureResult, error) {
	if candidate.TenantID == "" {
		return EnsureResult{}, fmt.Errorf("candidate alert has no tenant")
	}
	if candidate.Context == nil {
		return EnsureResult{}, fmt.Errorf("candidate alert has no context")
	}
	key := candidate.Context.Key()

	open, err := d.alerts.ListOpen(ctx, candidate.TenantID, candidate.PatientID, candidate.Type)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("list open alerts: %w", err)
	}
	for _, existing := range open {
		if existing.ContextKey == key {
			return EnsureResult{SuppressedBy: existing.ID}, nil
		}
	}

	candidate.Status = StatusPending
	candidate.ContextKey = key
	err = d.alerts.Create(ctx, candidate)
	if err == nil {
		return EnsureResult{Created: candidate}, nil
	}
	if err != ErrDuplicateOpen {
		return EnsureResult{}, fmt.Errorf("create alert: %w", err)
	}

	// A concurrent create won the race. Find the winner so callers still
	// learn which alert covers the condition.
	d.logger.Debug().
		Str("tenant_id", candidate.TenantID).
		Str("type", string(candidate.Type)).
		Str("key", key).
		Msg("dedup: concurrent create suppressed by store guard")

	open, listErr := d.alerts.ListOpen(ctx, candidate.TenantID, candidate.PatientID, candidate.Type)
	if listErr != nil {
		return EnsureResult{}, fmt.Errorf("list open alerts after duplicate create: %w", listErr)
	}
	for _, existing := range open {
		if existing.ContextKey == key {
			return EnsureResult{SuppressedBy: existing.ID}, nil
		}
	}
	// The winner closed in between; report suppression without an id
	// rather than looping.
	return EnsureResult{SuppressedBy: uuid.Nil}, nil
}
