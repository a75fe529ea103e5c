package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ScopeProvider yields request contexts carrying a tenant-scoped database
// connection. database.ScopeProvider is the production implementation.
type ScopeProvider interface {
	WithCompanyScope(ctx context.Context, companyID int) (context.Context, func(), error)
	WithAdminScope(ctx context.Context) (context.Context, func(), error)
}

// parseOptionalInt reads an optional integer query parameter. A missing
// parameter yields (nil, true); a malformed one yields (nil, false).
func parseOptionalInt(r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &value, true
}

// scopedContext resolves the request context against the scope provider:
// company-scoped when a company id is present, admin-scoped otherwise.
func scopedContext(ctx context.Context, scopes ScopeProvider, companyID *int) (context.Context, func(), error) {
	if companyID != nil {
		return scopes.WithCompanyScope(ctx, *companyID)
	}
	return scopes.WithAdminScope(ctx)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
