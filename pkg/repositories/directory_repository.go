package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// DirectoryRepository provides read-only id -> label lookups over the user
// and company directories. Directory CRUD lives elsewhere in the platform.
type DirectoryRepository interface {
	// UserLabelMap returns id -> name/role for every user.
	UserLabelMap(ctx context.Context) (map[int]models.UserLabels, error)

	// CompanyLabelMap returns id -> bilingual names for every company.
	CompanyLabelMap(ctx context.Context) (map[int]models.CompanyLabels, error)

	// FindUser returns one user's labels. apperrors.ErrNotFound on miss.
	FindUser(ctx context.Context, id int) (*models.UserLabels, error)

	// FindCompany returns one company's labels. apperrors.ErrNotFound on
	// miss.
	FindCompany(ctx context.Context, id int) (*models.CompanyLabels, error)
}

type directoryRepository struct{}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository() DirectoryRepository {
	return &directoryRepository{}
}

var _ DirectoryRepository = (*directoryRepository)(nil)

func (r *directoryRepository) UserLabelMap(ctx context.Context) (map[int]models.UserLabels, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT id, COALESCE(name, ''), COALESCE(role, '') FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	labels := make(map[int]models.UserLabels)
	for rows.Next() {
		var id int
		var user models.UserLabels
		if err := rows.Scan(&id, &user.Name, &user.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		labels[id] = user
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return labels, nil
}

func (r *directoryRepository) CompanyLabelMap(ctx context.Context) (map[int]models.CompanyLabels, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT id, COALESCE(name_ar, ''), COALESCE(name_en, '') FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	labels := make(map[int]models.CompanyLabels)
	for rows.Next() {
		var id int
		var company models.CompanyLabels
		if err := rows.Scan(&id, &company.NameAr, &company.NameEn); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		labels[id] = company
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}

	return labels, nil
}

func (r *directoryRepository) FindUser(ctx context.Context, id int) (*models.UserLabels, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	var user models.UserLabels
	err := scope.Conn.QueryRow(ctx,
		`SELECT COALESCE(name, ''), COALESCE(role, '') FROM users WHERE id = $1`, id).
		Scan(&user.Name, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}

	return &user, nil
}

func (r *directoryRepository) FindCompany(ctx context.Context, id int) (*models.CompanyLabels, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	var company models.CompanyLabels
	err := scope.Conn.QueryRow(ctx,
		`SELECT COALESCE(name_ar, ''), COALESCE(name_en, '') FROM companies WHERE id = $1`, id).
		Scan(&company.NameAr, &company.NameEn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query company %d: %w", id, err)
	}

	return &company, nil
}
