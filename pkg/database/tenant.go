package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyScope wraps a connection with tenant context and ensures cleanup.
// The connection has app.current_company_id set for RLS policy evaluation.
type CompanyScope struct {
	Conn *pgxpool.Conn
}

// Close resets tenant context and releases the connection to the pool.
// This MUST be called to prevent tenant context from leaking to the next
// request.
func (s *CompanyScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_company_id")
	s.Conn.Release()
}

// WithCompany acquires a connection and sets the tenant context for RLS.
// The returned CompanyScope MUST be closed with defer scope.Close().
func (db *DB) WithCompany(ctx context.Context, companyID int) (*CompanyScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_company_id', $1::text, false)", companyID)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &CompanyScope{Conn: conn}, nil
}

// WithoutCompany acquires a connection without tenant context. Use this for
// administrative operations that span tenants, such as migration runs and
// integrity repairs. The returned CompanyScope MUST be closed with
// defer scope.Close().
func (db *DB) WithoutCompany(ctx context.Context) (*CompanyScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &CompanyScope{Conn: conn}, nil
}
