// Package patient holds the patient subset the navigation core needs:
// identity, pathway assignment, and the priority score that open alerts
// feed.
package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/navcare/navcare/internal/domain/navigation"
)

// ErrNotFound is returned when a patient does not exist under the tenant.
var ErrNotFound = errors.New("patient not found")

// Patient maps to the patient table. PriorityScore orders navigator
// worklists; it grows as the patient accumulates open alerts.
type Patient struct {
	ID            uuid.UUID               `db:"id" json:"id"`
	TenantID      string                  `db:"tenant_id" json:"tenant_id"`
	FullName      string                  `db:"full_name" json:"full_name"`
	BirthDate     *time.Time              `db:"birth_date" json:"birth_date,omitempty"`
	Phone         *string                 `db:"phone" json:"phone,omitempty"`
	CancerType    string                  `db:"cancer_type" json:"cancer_type"`
	CurrentStage  navigation.JourneyStage `db:"current_stage" json:"current_stage"`
	PriorityScore int                     `db:"priority_score" json:"priority_score"`
	CreatedAt     time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time               `db:"updated_at" json:"updated_at"`
}
