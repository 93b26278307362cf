package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type registryPG struct{ pool *pgxpool.Pool }

func NewRegistryPG(pool *pgxpool.Pool) Registry {
	return &registryPG{pool: pool}
}

func (r *registryPG) Create(ctx context.Context, id, name string) (*Tenant, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid tenant identifier: %s", id)
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tenant (id, name) VALUES ($1, $2)
		RETURNING id, name, created_at`, id, name)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", id, err)
	}
	return &t, nil
}

func (r *registryPG) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM tenant ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (r *registryPG) Get(ctx context.Context, id string) (*Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM tenant WHERE id = $1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}
