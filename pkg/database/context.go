package database

import (
	"context"
)

type contextKey string

const (
	// CompanyScopeKey is the context key for storing the scoped database connection.
	CompanyScopeKey contextKey = "companyScope"
)

// GetCompanyScope retrieves the scoped database connection from context.
// Returns nil and false if not present.
func GetCompanyScope(ctx context.Context) (*CompanyScope, bool) {
	scope, ok := ctx.Value(CompanyScopeKey).(*CompanyScope)
	return scope, ok
}

// SetCompanyScope stores the scoped database connection in context.
func SetCompanyScope(ctx context.Context, scope *CompanyScope) context.Context {
	return context.WithValue(ctx, CompanyScopeKey, scope)
}

// ScopeProvider creates scoped contexts for database operations.
type ScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithCompanyScope returns a context scoped to the given company. The
// cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithCompanyScope(ctx context.Context, companyID int) (context.Context, func(), error) {
	scope, err := p.db.WithCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	return SetCompanyScope(ctx, scope), func() { scope.Close() }, nil
}

// WithAdminScope returns a context with a connection that spans tenants.
// The cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithAdminScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.WithoutCompany(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetCompanyScope(ctx, scope), func() { scope.Close() }, nil
}
