// Package tenant holds the tenant registry and the request-scoping middleware.
// Every entity in the system is partitioned by tenant; repositories take the
// tenant ID as an explicit parameter and the middleware is the only place a
// request's tenant is resolved.
package tenant

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const idKey contextKey = "tenant_id"

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Tenant is a row in the tenant registry.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry lists and manages known tenants. The overdue detector iterates
// this to scope each scan batch.
type Registry interface {
	Create(ctx context.Context, id, name string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	Get(ctx context.Context, id string) (*Tenant, error)
}

// ValidID reports whether id is an acceptable tenant identifier.
func ValidID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

// Middleware resolves the request's tenant (JWT claim set by an upstream
// gateway, then X-Tenant-ID header, then tenant_id query param, then the
// configured default) and stores it in the request context. Requests with a
// malformed tenant identifier are rejected outright.
func Middleware(defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := resolveID(c, defaultTenant)
			if !ValidID(id) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := context.WithValue(c.Request().Context(), idKey, id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", id)

			return next(c)
		}
	}
}

func resolveID(c echo.Context, defaultTenant string) string {
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}
	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}
	return defaultTenant
}

// FromContext retrieves the tenant ID from a request context. The empty
// string means the context never passed through Middleware.
func FromContext(ctx context.Context) string {
	tid, _ := ctx.Value(idKey).(string)
	return tid
}

// WithID returns a context carrying the given tenant ID. Used by background
// jobs that operate outside an HTTP request.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}
