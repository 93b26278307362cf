package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the Postgres error code raised when the partial
// unique index over open alerts rejects a duplicate create.
const pgUniqueViolation = "23505"

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &alertRepoPG{pool: pool}
}

const alertCols = `id, tenant_id, patient_id, type, severity, status, message,
	context, context_key, created_at, acknowledged_at, acknowledged_by,
	resolved_at, resolved_by`

func (r *alertRepoPG) scanAlert(row pgx.Row) (*Alert, error) {
	var (
		a   Alert
		raw []byte
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.Type, &a.Severity, &a.Status,
		&a.Message, &raw, &a.ContextKey, &a.CreatedAt,
		&a.AcknowledgedAt, &a.AcknowledgedBy, &a.ResolvedAt, &a.ResolvedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ctx, err := DecodeContext(a.Type, raw)
	if err != nil {
		return nil, err
	}
	a.Context = ctx
	return &a, nil
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	raw, err := EncodeContext(a.Type, a.Context)
	if err != nil {
		return err
	}
	a.ContextKey = a.Context.Key()

	err = r.pool.QueryRow(ctx, `
		INSERT INTO alert (id, tenant_id, patient_id, type, severity, status, message, context, context_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		a.ID, a.TenantID, a.PatientID, a.Type, a.Severity, a.Status, a.Message, raw, a.ContextKey,
	).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateOpen
		}
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (r *alertRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Alert, error) {
	return r.scanAlert(r.pool.QueryRow(ctx,
		`SELECT `+alertCols+` FROM alert WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *alertRepoPG) Update(ctx context.Context, a *Alert) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE alert SET severity=$3, status=$4, message=$5,
			acknowledged_at=$6, acknowledged_by=$7, resolved_at=$8, resolved_by=$9
		WHERE tenant_id = $1 AND id = $2`,
		a.TenantID, a.ID, a.Severity, a.Status, a.Message,
		a.AcknowledgedAt, a.AcknowledgedBy, a.ResolvedAt, a.ResolvedBy)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *alertRepoPG) ListOpen(ctx context.Context, tenantID string, patientID uuid.UUID, t Type) ([]*Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertCols+` FROM alert
		WHERE tenant_id = $1 AND patient_id = $2 AND type = $3
		  AND status IN ('PENDING','ACKNOWLEDGED')
		ORDER BY created_at`, tenantID, patientID, t)
	if err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *alertRepoPG) List(ctx context.Context, tenantID string, f ListFilter, limit, offset int) ([]*Alert, int, error) {
	where := `tenant_id = $1`
	args := []interface{}{tenantID}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	} else if f.OnlyOpen {
		where += ` AND status IN ('PENDING','ACKNOWLEDGED')`
	}
	if f.Severity != "" {
		args = append(args, f.Severity)
		where += fmt.Sprintf(` AND severity = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alert WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	// Critical first, then most recent, matching the dashboard ordering.
	query := `SELECT ` + alertCols + ` FROM alert WHERE ` + where + `
		ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1
		END DESC, created_at DESC`
	args = append(args, limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *alertRepoPG) CountOpen(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM alert
		WHERE tenant_id = $1 AND status IN ('PENDING','ACKNOWLEDGED')`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return n, nil
}

func (r *alertRepoPG) CountOpenCritical(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM alert
		WHERE tenant_id = $1 AND severity = 'CRITICAL'
		  AND status IN ('PENDING','ACKNOWLEDGED')`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open critical alerts: %w", err)
	}
	return n, nil
}

func (r *alertRepoPG) collect(rows pgx.Rows) ([]*Alert, error) {
	var alerts []*Alert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
