package navigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stepRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &stepRepoPG{pool: pool}
}

const stepCols = `id, tenant_id, patient_id, journey_stage, step_key, step_name,
	step_description, status, is_completed, is_required, due_date, completed_at,
	institution_name, professional_name, result, findings, notes,
	created_at, updated_at`

func scanStep(row pgx.Row) (*Step, error) {
	var s Step
	err := row.Scan(&s.ID, &s.TenantID, &s.PatientID, &s.JourneyStage, &s.StepKey,
		&s.StepName, &s.StepDescription, &s.Status, &s.IsCompleted, &s.IsRequired,
		&s.DueDate, &s.CompletedAt, &s.InstitutionName, &s.ProfessionalName,
		&s.Result, &s.Findings, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *stepRepoPG) CreateBatch(ctx context.Context, steps []*Step) error {
	if len(steps) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range steps {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO navigation_step (id, tenant_id, patient_id, journey_stage,
				step_key, step_name, step_description, status, is_completed,
				is_required, due_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at, updated_at`,
			s.ID, s.TenantID, s.PatientID, s.JourneyStage, s.StepKey, s.StepName,
			s.StepDescription, s.Status, s.IsCompleted, s.IsRequired, s.DueDate,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create step %s: %w", s.StepKey, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *stepRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Step, error) {
	return scanStep(r.pool.QueryRow(ctx,
		`SELECT `+stepCols+` FROM navigation_step WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

func (r *stepRepoPG) Update(ctx context.Context, s *Step) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE navigation_step SET
			status=$3, is_completed=$4, due_date=$5, completed_at=$6,
			institution_name=$7, professional_name=$8, result=$9, findings=$10,
			notes=$11, updated_at=now()
		WHERE tenant_id = $1 AND id = $2`,
		s.TenantID, s.ID, s.Status, s.IsCompleted, s.DueDate, s.CompletedAt,
		s.InstitutionName, s.ProfessionalName, s.Result, s.Findings, s.Notes)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *stepRepoPG) ListByPatient(ctx context.Context, tenantID string, patientID uuid.UUID) ([]*Step, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY journey_stage, due_date NULLS LAST, created_at`,
		tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient steps: %w", err)
	}
	defer rows.Close()
	return collectSteps(rows)
}

// Candidate filter: the stored OVERDUE status stays in the candidate set so
// every scan re-evaluates against the live clock; the dedup engine, not the
// status column, is what keeps repeat scans from re-alerting.
const candidateWhere = `tenant_id = $1
	  AND status IN ('PENDING','IN_PROGRESS','OVERDUE')
	  AND is_completed = false
	  AND due_date IS NOT NULL AND due_date < $2`

func (r *stepRepoPG) ListCandidates(ctx context.Context, tenantID string, before time.Time, limit int) ([]*Step, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step
		WHERE `+candidateWhere+`
		ORDER BY due_date
		LIMIT $3`, tenantID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	defer rows.Close()
	return collectSteps(rows)
}

func (r *stepRepoPG) ListCandidatesByPatient(ctx context.Context, tenantID string, patientID uuid.UUID, before time.Time) ([]*Step, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step
		WHERE `+candidateWhere+` AND patient_id = $3
		ORDER BY due_date`, tenantID, before, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient overdue candidates: %w", err)
	}
	defer rows.Close()
	return collectSteps(rows)
}

func (r *stepRepoPG) DeleteByPatient(ctx context.Context, tenantID string, patientID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM navigation_step WHERE tenant_id = $1 AND patient_id = $2`,
		tenantID, patientID)
	if err != nil {
		return 0, fmt.Errorf("delete patient steps: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectSteps(rows pgx.Rows) ([]*Step, error) {
	var steps []*Step
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
